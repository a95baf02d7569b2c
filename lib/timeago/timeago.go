// Copyright 2026 The Agora Authors
// SPDX-License-Identifier: Apache-2.0

package timeago

import (
	"math"
	"time"

	"github.com/dustin/go-humanize"
)

// RefreshInterval is how often relative times shown on screen should
// be recomputed.
const RefreshInterval = time.Minute

const (
	day   = 24 * time.Hour
	month = 30 * day
	year  = 12 * month
)

// magnitudes mirror the forum's own rounding: months are 30 days and
// years are twelve such months.
var magnitudes = []humanize.RelTimeMagnitude{
	{D: time.Minute, Format: "just now", DivBy: 1},
	{D: 2 * time.Minute, Format: "1 minute %s", DivBy: 1},
	{D: time.Hour, Format: "%d minutes %s", DivBy: time.Minute},
	{D: 2 * time.Hour, Format: "1 hour %s", DivBy: 1},
	{D: day, Format: "%d hours %s", DivBy: time.Hour},
	{D: 2 * day, Format: "1 day %s", DivBy: 1},
	{D: month, Format: "%d days %s", DivBy: day},
	{D: 2 * month, Format: "1 month %s", DivBy: 1},
	{D: year, Format: "%d months %s", DivBy: month},
	{D: 2 * year, Format: "1 year %s", DivBy: 1},
	{D: math.MaxInt64, Format: "%d years %s", DivBy: year},
}

// Format renders t relative to now: "just now", "5 minutes ago",
// "1 day ago", "3 months ago". Times in the future (clock skew between
// client and server) read as "just now". A zero t renders as "".
func Format(now, t time.Time) string {
	if t.IsZero() {
		return ""
	}
	if t.After(now) {
		return "just now"
	}
	return humanize.CustomRelTime(t, now, "ago", "from now", magnitudes)
}
