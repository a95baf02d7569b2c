// Copyright 2026 The Agora Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"cmp"
	"slices"
	"strings"
	"sync"

	"github.com/junegunn/fzf/src/algo"
	"github.com/junegunn/fzf/src/util"
)

var fzfInit sync.Once

// FuzzyResult is the outcome of matching one string. Score is zero
// when the pattern does not match. Positions are rune indexes of the
// matched characters in ascending order.
type FuzzyResult struct {
	Score     int
	Positions []int
}

// FuzzyMatch scores text against pattern with fzf's V2 algorithm.
// Matching is case-insensitive. An empty pattern never matches. slab
// may be nil; callers matching many strings should share one from
// util.MakeSlab to avoid allocation.
func FuzzyMatch(text string, pattern []rune, slab *util.Slab) FuzzyResult {
	if len(pattern) == 0 || text == "" {
		return FuzzyResult{}
	}
	fzfInit.Do(func() { algo.Init("default") })

	lowered := []rune(strings.ToLower(string(pattern)))
	chars := util.ToChars([]byte(strings.ToLower(text)))
	result, positions := algo.FuzzyMatchV2(false, true, true, &chars, lowered, true, slab)
	if result.Start < 0 || result.Score <= 0 {
		return FuzzyResult{}
	}
	match := FuzzyResult{Score: result.Score}
	if positions != nil {
		match.Positions = slices.Clone(*positions)
		slices.Sort(match.Positions)
	}
	return match
}

// Ranked pairs an item with its match against a filter.
type Ranked[T any] struct {
	Item  T
	Match FuzzyResult
}

// FuzzyFilter keeps the items whose text matches query, best score
// first with ties kept in input order. A blank query keeps everything
// in input order with zero scores.
func FuzzyFilter[T any](items []T, query string, text func(T) string) []Ranked[T] {
	query = strings.TrimSpace(query)
	ranked := make([]Ranked[T], 0, len(items))
	if query == "" {
		for _, item := range items {
			ranked = append(ranked, Ranked[T]{Item: item})
		}
		return ranked
	}
	pattern := []rune(query)
	slab := util.MakeSlab(100*1024, 2048)
	for _, item := range items {
		match := FuzzyMatch(text(item), pattern, slab)
		if match.Score > 0 {
			ranked = append(ranked, Ranked[T]{Item: item, Match: match})
		}
	}
	slices.SortStableFunc(ranked, func(a, b Ranked[T]) int {
		return cmp.Compare(b.Match.Score, a.Match.Score)
	})
	return ranked
}
