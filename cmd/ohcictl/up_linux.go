//go:build linux

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/emergingrobotics/go-ohci/pkg/config"
	"github.com/emergingrobotics/go-ohci/pkg/driver"
	"github.com/emergingrobotics/go-ohci/pkg/ohci"
	"github.com/emergingrobotics/go-ohci/pkg/pci"
)

func bringUp(args []string, stdout, stderr io.Writer) error {
	fs, c := newFlags("up", stderr)
	cmdline := fs.String("cmdline", "ohcictl", "boot command line (quiet keepgoing postedwrites wait noapic)")
	wait := fs.Bool("wait", false, "poll events until a peer stores an entry point")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Parse(*cmdline)
	if err != nil {
		return err
	}
	cfg.Wait = cfg.Wait || *wait
	log := newLogger(stderr, cfg.Verbosity(c.verbosity))
	cfg.Log(log)

	r, err := pci.NewReaderWithMount(log, c.sys)
	if err != nil {
		return err
	}
	d, err := findController(r, fs.Args())
	if err != nil {
		return err
	}
	log.Info("found controller", "device", d.String(), "quirks", d.Entry.Quirks)

	regs, err := r.Map(d)
	if err != nil {
		return err
	}
	arena, err := driver.NewHostArena()
	if err != nil {
		regs.Close()
		return err
	}
	mb, err := ohci.NewMailbox(arena)
	if err != nil {
		regs.Close()
		arena.Close()
		return err
	}

	opts := ohci.Options{Log: log, Boot: mb.BootInfo()}
	cfg.Apply(&opts)
	ctl, err := ohci.New(regs, arena, opts)
	if err != nil {
		regs.Close()
		arena.Close()
		return err
	}
	defer ctl.Close()

	if err := ctl.Initialize(); err != nil {
		if !cfg.KeepGoing {
			return fmt.Errorf("could not initialize controller: %w", err)
		}
		log.Error(err, "initialization failed, continuing anyway")
		return nil
	}
	fmt.Fprintf(stdout, "Controller %s up, GUID %016x\n", d.Address, ctl.GUID())

	if !cfg.Wait {
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if node, err := ctl.WaitNodeID(); err == nil {
		fmt.Fprintf(stdout, "Node %d\n", node)
	} else {
		log.Info("no node id yet", "err", err.Error())
	}

	entry, err := ctl.AwaitEntryPoint(ctx, mb)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Entry point %s, descriptor %s\n", driver.Hex(entry), driver.Hex(mb.Descriptor()))
	return nil
}
