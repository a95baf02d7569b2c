// Copyright 2026 The Agora Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"slices"
	"sync"
	"time"
)

// FakeClock is a manually advanced Clock. It is safe for concurrent
// use. AfterFunc callbacks run synchronously inside Advance, in
// deadline order, so a callback must not call Advance itself.
type FakeClock struct {
	mu      sync.Mutex
	now     time.Time
	pending []*alarm
	armed   *sync.Cond
}

// alarm is one registered timer, ticker or After channel.
type alarm struct {
	deadline time.Time
	period   time.Duration // non-zero for tickers
	channel  chan time.Time
	callback func()
	active   bool
}

// Fake returns a FakeClock frozen at start.
func Fake(start time.Time) *FakeClock {
	clock := &FakeClock{now: start}
	clock.armed = sync.NewCond(&clock.mu)
	return clock
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	channel := make(chan time.Time, 1)
	if d <= 0 {
		channel <- c.now
		return channel
	}
	c.addLocked(&alarm{deadline: c.now.Add(d), channel: channel, active: true})
	return channel
}

func (c *FakeClock) AfterFunc(d time.Duration, f func()) *Timer {
	entry := &alarm{callback: f}

	timer := &Timer{
		stop: func() bool {
			c.mu.Lock()
			defer c.mu.Unlock()
			wasActive := entry.active
			c.removeLocked(entry)
			return wasActive
		},
		reset: func(d time.Duration) bool {
			c.mu.Lock()
			defer c.mu.Unlock()
			wasActive := entry.active
			c.removeLocked(entry)
			entry.deadline = c.now.Add(d)
			entry.active = true
			c.addLocked(entry)
			return wasActive
		},
	}

	if d <= 0 {
		f()
		return timer
	}

	c.mu.Lock()
	entry.deadline = c.now.Add(d)
	entry.active = true
	c.addLocked(entry)
	c.mu.Unlock()
	return timer
}

func (c *FakeClock) NewTicker(d time.Duration) *Ticker {
	if d <= 0 {
		panic("clock: non-positive ticker period")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	channel := make(chan time.Time, 1)
	entry := &alarm{deadline: c.now.Add(d), period: d, channel: channel, active: true}
	c.addLocked(entry)

	return &Ticker{
		C: channel,
		stop: func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.removeLocked(entry)
		},
	}
}

// Advance moves time forward by d, firing every alarm whose deadline
// falls at or before the new time. Tickers fire once per elapsed
// period (subject to the one-slot channel buffer).
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	target := c.now
	c.mu.Unlock()

	for {
		due := c.popDue(target)
		if due == nil {
			return
		}
		if due.callback != nil {
			due.callback()
			continue
		}
		select {
		case due.channel <- due.deadline:
		default:
		}
	}
}

// WaitForTimers blocks until at least n alarms are pending.
func (c *FakeClock) WaitForTimers(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for len(c.pending) < n {
		c.armed.Wait()
	}
}

// PendingCount returns the number of pending alarms.
func (c *FakeClock) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// popDue removes and returns the earliest alarm due at or before
// target, rescheduling it first when it is a ticker.
func (c *FakeClock) popDue(target time.Time) *alarm {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.pending) == 0 || c.pending[0].deadline.After(target) {
		return nil
	}
	due := c.pending[0]
	c.pending = c.pending[1:]

	if due.period > 0 {
		fired := *due
		due.deadline = due.deadline.Add(due.period)
		c.insertLocked(due)
		return &fired
	}
	due.active = false
	return due
}

func (c *FakeClock) addLocked(entry *alarm) {
	c.insertLocked(entry)
	c.armed.Broadcast()
}

func (c *FakeClock) insertLocked(entry *alarm) {
	index, _ := slices.BinarySearchFunc(c.pending, entry, func(existing, target *alarm) int {
		if existing.deadline.After(target.deadline) {
			return 1
		}
		return -1
	})
	c.pending = slices.Insert(c.pending, index, entry)
}

func (c *FakeClock) removeLocked(entry *alarm) {
	entry.active = false
	c.pending = slices.DeleteFunc(c.pending, func(existing *alarm) bool {
		return existing == entry
	})
}
