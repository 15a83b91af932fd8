package driver

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// Status represents the outcome class of a controller operation
type Status int

// Controller status codes
const (
	StatusSuccess               Status = 0
	StatusTimeout               Status = 1
	StatusContractViolation     Status = 2
	StatusInvalidDevice         Status = 3
	StatusUnsupportedVersion    Status = 4
	StatusMisaligned            Status = 5
	StatusInvalidArgument       Status = 6
	StatusNotFound              Status = 7
	StatusMapFailed             Status = 8
	StatusInvalidImage          Status = 9
	StatusOutOfMemory           Status = 10
	StatusPermissionDenied      Status = 11
	StatusDriverOperationFailed Status = 12
)

var statusMessages = map[Status]string{
	StatusSuccess:               "success",
	StatusTimeout:               "hardware timeout",
	StatusContractViolation:     "contract violation",
	StatusInvalidDevice:         "invalid device",
	StatusUnsupportedVersion:    "unsupported controller version",
	StatusMisaligned:            "misaligned buffer",
	StatusInvalidArgument:       "invalid argument",
	StatusNotFound:              "not found",
	StatusMapFailed:             "register mapping failed",
	StatusInvalidImage:          "invalid configuration ROM image",
	StatusOutOfMemory:           "out of memory",
	StatusPermissionDenied:      "permission denied",
	StatusDriverOperationFailed: "driver operation failed",
}

// String returns the human-readable status message
func (s Status) String() string {
	if msg, ok := statusMessages[s]; ok {
		return msg
	}
	return fmt.Sprintf("unknown status (%d)", int(s))
}

// Error represents a failed controller operation
type Error struct {
	Status  Status
	Context string
	Cause   error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Context != "" {
		if e.Cause != nil {
			return fmt.Sprintf("%s: %s: %v", e.Context, e.Status.String(), e.Cause)
		}
		return fmt.Sprintf("%s: %s", e.Context, e.Status.String())
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Status.String(), e.Cause)
	}
	return e.Status.String()
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches a target status
func (e *Error) Is(target error) bool {
	var drvErr *Error
	if errors.As(target, &drvErr) {
		return e.Status == drvErr.Status
	}
	return false
}

// NewError creates a new Error with the given status
func NewError(status Status, context string) *Error {
	return &Error{
		Status:  status,
		Context: context,
	}
}

// NewErrorWithCause creates a new Error with an underlying cause
func NewErrorWithCause(status Status, context string, cause error) *Error {
	return &Error{
		Status:  status,
		Context: context,
		Cause:   cause,
	}
}

// Sentinels for errors.Is comparisons against a status class
var (
	ErrTimeout           = NewError(StatusTimeout, "")
	ErrContractViolation = NewError(StatusContractViolation, "")
	ErrInvalidDevice     = NewError(StatusInvalidDevice, "")
	ErrInvalidImage      = NewError(StatusInvalidImage, "")
)

// StatusOf extracts the status of err, or StatusDriverOperationFailed when
// err did not come from this package.
func StatusOf(err error) Status {
	if err == nil {
		return StatusSuccess
	}
	var drvErr *Error
	if errors.As(err, &drvErr) {
		return drvErr.Status
	}
	return StatusDriverOperationFailed
}

// ErrnoToStatus converts a Linux errno to a controller status
func ErrnoToStatus(errno unix.Errno) Status {
	switch errno {
	case unix.ENOMEM:
		return StatusOutOfMemory
	case unix.ENOENT, unix.ENODEV, unix.ENXIO:
		return StatusNotFound
	case unix.EACCES, unix.EPERM:
		return StatusPermissionDenied
	case unix.EINVAL:
		return StatusInvalidArgument
	case unix.ETIMEDOUT:
		return StatusTimeout
	default:
		return StatusDriverOperationFailed
	}
}

// StatusFromErrno creates an Error from an errno
func StatusFromErrno(errno unix.Errno, context string) *Error {
	return &Error{
		Status:  ErrnoToStatus(errno),
		Context: context,
		Cause:   errno,
	}
}
