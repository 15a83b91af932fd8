//go:build unit

package driver

import (
	"errors"
	"strings"
	"testing"
)

// becomesTrueAfter makes reg report mask from the k-th read on
func becomesTrueAfter(regs *stubRegisters, reg Register, mask uint32, k int) {
	regs.onRead = func(r Register, n int, v uint32) uint32 {
		if r == reg && n >= k {
			return v | mask
		}
		return v
	}
}

func TestWaitSucceedsAfterExactlyKPolls(t *testing.T) {
	for _, k := range []int{1, 2, 7, 99} {
		regs := newStubRegisters()
		clock := &countingClock{}
		becomesTrueAfter(regs, RegHCControlSet, HCControlLPS, k)

		polls, err := NewWaiter(regs, clock).WaitSet("LPS", RegHCControlSet, HCControlLPS, 100)
		if err != nil {
			t.Fatalf("k=%d: unexpected error: %v", k, err)
		}
		if polls != k {
			t.Errorf("k=%d: polls = %d", k, polls)
		}
		if regs.reads[RegHCControlSet] != k {
			t.Errorf("k=%d: register read %d times", k, regs.reads[RegHCControlSet])
		}
		if clock.ticks != k-1 {
			t.Errorf("k=%d: clock ticked %d times, expected %d", k, clock.ticks, k-1)
		}
	}
}

func TestWaitTimesOutAfterExactlyTheBudget(t *testing.T) {
	for _, budget := range []uint32{1, 10, 1000} {
		regs := newStubRegisters()
		clock := &countingClock{}

		polls, err := NewWaiter(regs, clock).WaitSet("selfIDComplete", RegIntEventSet, IntSelfIDComplete, budget)
		if err == nil {
			t.Fatalf("budget=%d: expected timeout", budget)
		}
		if !errors.Is(err, ErrTimeout) {
			t.Errorf("budget=%d: error %v is not a timeout", budget, err)
		}
		if !strings.Contains(err.Error(), "selfIDComplete") {
			t.Errorf("budget=%d: error %q does not name the condition", budget, err)
		}
		if polls != int(budget) || regs.reads[RegIntEventSet] != int(budget) {
			t.Errorf("budget=%d: polls = %d, reads = %d", budget, polls, regs.reads[RegIntEventSet])
		}
		if clock.ticks != int(budget)-1 {
			t.Errorf("budget=%d: clock ticked %d times", budget, clock.ticks)
		}
	}
}

func TestWaitSucceedsOnLastPollOfBudget(t *testing.T) {
	regs := newStubRegisters()
	becomesTrueAfter(regs, RegNodeID, NodeIDValid, 10)

	polls, err := NewWaiter(regs, &countingClock{}).WaitSet("idValid", RegNodeID, NodeIDValid, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if polls != 10 {
		t.Errorf("polls = %d, expected 10", polls)
	}
}

func TestWaitNeverHasNoBudget(t *testing.T) {
	regs := newStubRegisters()
	becomesTrueAfter(regs, RegNodeID, NodeIDValid, 50000)

	polls, err := NewWaiter(regs, &countingClock{}).WaitSet("idValid", RegNodeID, NodeIDValid, Never)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if polls != 50000 {
		t.Errorf("polls = %d, expected 50000", polls)
	}
}

func TestWaitClear(t *testing.T) {
	regs := newStubRegisters()
	regs.values[RegHCControlSet] = HCControlSoftReset | HCControlLPS
	regs.onRead = func(r Register, n int, v uint32) uint32 {
		if n >= 3 {
			return v &^ HCControlSoftReset
		}
		return v
	}

	polls, err := NewWaiter(regs, &countingClock{}).WaitClear("softReset", RegHCControlSet, HCControlSoftReset, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if polls != 3 {
		t.Errorf("polls = %d, expected 3", polls)
	}
}

func TestWaitMatchesMaskedValue(t *testing.T) {
	regs := newStubRegisters()
	regs.values[RegAsReqTrContextControlSet] = ContextControlRun | ContextControlActive

	_, err := NewWaiter(regs, &countingClock{}).Wait("active", RegAsReqTrContextControlSet,
		ContextControlActive, 0, 3)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected timeout while active is set, got %v", err)
	}

	regs.values[RegAsReqTrContextControlSet] = ContextControlRun
	polls, err := NewWaiter(regs, &countingClock{}).Wait("active", RegAsReqTrContextControlSet,
		ContextControlActive, 0, 3)
	if err != nil || polls != 1 {
		t.Errorf("polls = %d, err = %v", polls, err)
	}
}

func TestNewWaiterDefaultsToSleepClock(t *testing.T) {
	w := NewWaiter(newStubRegisters(), nil)
	if _, ok := w.clock.(SleepClock); !ok {
		t.Errorf("default clock is %T, expected SleepClock", w.clock)
	}
}
