//go:build !linux

package main

import (
	"errors"
	"io"
)

func bringUp([]string, io.Writer, io.Writer) error {
	return errors.New("up needs linux")
}
