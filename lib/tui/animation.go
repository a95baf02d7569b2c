// Copyright 2026 The Agora Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"time"
)

// HeatDecayDuration is how long a freshly arrived item glows.
const HeatDecayDuration = 5 * time.Second

// HeatTickInterval is the re-render interval while anything glows.
const HeatTickInterval = 100 * time.Millisecond

// HeatTracker remembers when items arrived so live messages and
// comments can fade in. Intensity starts at 1 and decays linearly to 0
// over HeatDecayDuration.
type HeatTracker struct {
	ignitions map[int]time.Time
}

// NewHeatTracker creates an empty tracker.
func NewHeatTracker() *HeatTracker {
	return &HeatTracker{ignitions: make(map[int]time.Time)}
}

// Ignite marks id as just arrived.
func (tracker *HeatTracker) Ignite(id int, now time.Time) {
	tracker.ignitions[id] = now
}

// Heat returns the current intensity for id in [0, 1].
func (tracker *HeatTracker) Heat(id int, now time.Time) float64 {
	ignition, ok := tracker.ignitions[id]
	if !ok {
		return 0
	}
	elapsed := now.Sub(ignition)
	if elapsed >= HeatDecayDuration {
		return 0
	}
	return 1 - float64(elapsed)/float64(HeatDecayDuration)
}

// HasHot reports whether anything still glows, dropping entries that
// have fully decayed.
func (tracker *HeatTracker) HasHot(now time.Time) bool {
	hot := false
	for id, ignition := range tracker.ignitions {
		if now.Sub(ignition) < HeatDecayDuration {
			hot = true
			continue
		}
		delete(tracker.ignitions, id)
	}
	return hot
}
