// Copyright 2026 The Agora Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock is the injectable time source used by the search
// debouncer, the feed scroll cooldown and the relative-time refresh in
// the terminal UI.
//
// Production code holds a [Clock] and receives [Real]. Tests construct
// [Fake] and move time forward explicitly:
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	debouncer := search.NewDebouncer(fake, 300*time.Millisecond)
//	debouncer.Trigger("go")
//	fake.WaitForTimers(1)
//	fake.Advance(300 * time.Millisecond)
//
// WaitForTimers closes the race between a goroutine arming a timer and
// the test advancing past it.
package clock
