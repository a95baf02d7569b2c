// Copyright 2026 The Agora Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"sync/atomic"
	"testing"
	"time"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeNowAdvances(t *testing.T) {
	fake := Fake(epoch)
	fake.Advance(90 * time.Second)
	if got, want := fake.Now(), epoch.Add(90*time.Second); !got.Equal(want) {
		t.Fatalf("Now() = %v, want %v", got, want)
	}
}

func TestFakeAfter(t *testing.T) {
	fake := Fake(epoch)
	channel := fake.After(time.Second)

	fake.Advance(999 * time.Millisecond)
	select {
	case <-channel:
		t.Fatal("After fired before its deadline")
	default:
	}

	fake.Advance(time.Millisecond)
	select {
	case fired := <-channel:
		if !fired.Equal(epoch.Add(time.Second)) {
			t.Errorf("fired at %v, want %v", fired, epoch.Add(time.Second))
		}
	default:
		t.Fatal("After did not fire at its deadline")
	}
}

func TestFakeAfterNonPositive(t *testing.T) {
	fake := Fake(epoch)
	select {
	case <-fake.After(0):
	default:
		t.Fatal("After(0) should deliver immediately")
	}
	if fake.PendingCount() != 0 {
		t.Errorf("PendingCount() = %d, want 0", fake.PendingCount())
	}
}

func TestFakeAfterFuncStopAndReset(t *testing.T) {
	fake := Fake(epoch)
	var calls atomic.Int32
	timer := fake.AfterFunc(300*time.Millisecond, func() { calls.Add(1) })

	fake.Advance(200 * time.Millisecond)
	if !timer.Reset(300 * time.Millisecond) {
		t.Error("Reset of a pending timer should report true")
	}

	fake.Advance(200 * time.Millisecond)
	if calls.Load() != 0 {
		t.Fatal("callback ran before the reset deadline")
	}

	fake.Advance(100 * time.Millisecond)
	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1", calls.Load())
	}

	if timer.Stop() {
		t.Error("Stop after firing should report false")
	}

	stopped := fake.AfterFunc(time.Second, func() { calls.Add(1) })
	if !stopped.Stop() {
		t.Error("Stop of a pending timer should report true")
	}
	fake.Advance(time.Hour)
	if calls.Load() != 1 {
		t.Errorf("stopped timer fired: calls = %d", calls.Load())
	}
}

func TestFakeAfterFuncOrder(t *testing.T) {
	fake := Fake(epoch)
	var order []int
	fake.AfterFunc(3*time.Second, func() { order = append(order, 3) })
	fake.AfterFunc(1*time.Second, func() { order = append(order, 1) })
	fake.AfterFunc(2*time.Second, func() { order = append(order, 2) })

	fake.Advance(5 * time.Second)
	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Errorf("callbacks fired in order %v, want [1 2 3]", order)
	}
}

func TestFakeTicker(t *testing.T) {
	fake := Fake(epoch)
	ticker := fake.NewTicker(time.Minute)
	defer ticker.Stop()

	fake.Advance(time.Minute)
	select {
	case <-ticker.C:
	default:
		t.Fatal("ticker did not tick after one period")
	}

	// Three periods with nobody reading: the one-slot buffer keeps a
	// single tick and the rest are dropped.
	fake.Advance(3 * time.Minute)
	<-ticker.C
	select {
	case <-ticker.C:
		t.Fatal("expected dropped ticks, got a second buffered tick")
	default:
	}

	ticker.Stop()
	fake.Advance(time.Hour)
	select {
	case <-ticker.C:
		t.Fatal("stopped ticker ticked")
	default:
	}
}

func TestFakeTickerPanicsOnNonPositive(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("NewTicker(0) should panic")
		}
	}()
	Fake(epoch).NewTicker(0)
}

func TestFakeWaitForTimers(t *testing.T) {
	fake := Fake(epoch)
	done := make(chan struct{})
	go func() {
		<-fake.After(time.Second)
		close(done)
	}()

	fake.WaitForTimers(1)
	fake.Advance(time.Second)
	select {
	case <-done:
	case <-time.After(5 * time.Second): //nolint:realclock test hang prevention
		t.Fatal("goroutine did not observe the fired timer")
	}
}

func TestImplementations(t *testing.T) {
	var _ Clock = Real()
	var _ Clock = Fake(epoch)
}
