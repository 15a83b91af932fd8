// Package config parses the boot command line of the driver program.
package config

import (
	"fmt"

	"github.com/anmitsu/go-shlex"
	"github.com/go-logr/logr"

	"github.com/emergingrobotics/go-ohci/pkg/ohci"
)

// Config holds the recognized command line switches
type Config struct {
	Quiet        bool // log step lines only
	KeepGoing    bool // continue after a failed bring-up
	PostedWrites bool
	Wait         bool // poll for events after bring-up
	NoAPIC       bool // accepted for boot loader compatibility, no effect

	Unknown []string
}

// Parse splits cmdline with shell quoting rules. The first word names the
// program and is skipped. Unrecognized words are collected in Unknown.
func Parse(cmdline string) (Config, error) {
	words, err := shlex.Split(cmdline, true)
	if err != nil {
		return Config{}, fmt.Errorf("failed to split command line: %w", err)
	}

	var c Config
	for i, w := range words {
		if i == 0 {
			continue
		}
		switch w {
		case "quiet":
			c.Quiet = true
		case "keepgoing":
			c.KeepGoing = true
		case "postedwrites":
			c.PostedWrites = true
		case "wait":
			c.Wait = true
		case "noapic":
			c.NoAPIC = true
		default:
			c.Unknown = append(c.Unknown, w)
		}
	}
	return c, nil
}

// Log reports the switches that change behaviour and every ignored word
func (c Config) Log(log logr.Logger) {
	if c.KeepGoing {
		log.Info("errors will be ignored")
	}
	if c.PostedWrites {
		log.Info("posted writes will be enabled, disable them if you experience problems")
	}
	if c.NoAPIC {
		log.V(1).Info("noapic has no effect, interrupts are not used")
	}
	for _, w := range c.Unknown {
		log.Info("ignoring unrecognized argument", "arg", w)
	}
}

// Apply copies the controller switches into opts. Only PostedWrites
// reaches the controller.
func (c Config) Apply(opts *ohci.Options) {
	opts.PostedWrites = c.PostedWrites
}

// Verbosity maps Quiet onto a logger verbosity
func (c Config) Verbosity(verbose int) int {
	if c.Quiet {
		return 0
	}
	return verbose
}
