package driver

import (
	"fmt"
	"time"
)

// Never disables the tick budget of a bounded wait.
const Never uint32 = 0xFFFFFFFF

// DefaultTickInterval is the delay between two polls of a bounded wait.
const DefaultTickInterval = time.Millisecond

// Clock paces bounded waits.
type Clock interface {
	// Tick blocks for one polling interval.
	Tick()
}

// SleepClock is a Clock that sleeps for a fixed interval per tick.
type SleepClock time.Duration

// Tick sleeps for the clock interval
func (c SleepClock) Tick() {
	time.Sleep(time.Duration(c))
}

// Waiter polls registers until a masked value matches.
type Waiter struct {
	regs  Registers
	clock Clock
}

// NewWaiter creates a Waiter. A nil clock sleeps DefaultTickInterval per tick.
func NewWaiter(regs Registers, clock Clock) *Waiter {
	if clock == nil {
		clock = SleepClock(DefaultTickInterval)
	}
	return &Waiter{regs: regs, clock: clock}
}

// Wait re-reads reg until reg&mask == value and returns the number of reads
// performed. The condition is read at most ticks times with one clock tick
// between reads; Never removes the bound. On exhaustion the returned error
// has StatusTimeout and names the awaited condition.
func (w *Waiter) Wait(name string, reg Register, mask, value, ticks uint32) (int, error) {
	polls := 0
	for {
		polls++
		if w.regs.Read(reg)&mask == value {
			return polls, nil
		}
		if ticks != Never && uint32(polls) >= ticks {
			return polls, NewError(StatusTimeout,
				fmt.Sprintf("waiting for %s (%v & %#08x == %#08x) after %d polls", name, reg, mask, value, polls))
		}
		w.clock.Tick()
	}
}

// WaitSet waits for every bit in mask to read back set
func (w *Waiter) WaitSet(name string, reg Register, mask, ticks uint32) (int, error) {
	return w.Wait(name, reg, mask, mask, ticks)
}

// WaitClear waits for every bit in mask to read back clear
func (w *Waiter) WaitClear(name string, reg Register, mask, ticks uint32) (int, error) {
	return w.Wait(name, reg, mask, 0, ticks)
}

// Tick waits one polling interval on the waiter's clock
func (w *Waiter) Tick() {
	w.clock.Tick()
}
