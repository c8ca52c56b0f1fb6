package games

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sushantdhakal00/discord-bot/internal/models"
	"github.com/sushantdhakal00/discord-bot/internal/provable"
)

var slotsSymbols = []string{"cherry", "lemon", "bell", "gem", "star", "seven"}

// Three of a kind pays per symbol; any pair pays 1.5x. With uniform reels
// this lands slightly house-favored even before the 1% win cut.
var slotsTriple = map[string]float64{
	"seven":  36,
	"gem":    16,
	"star":   9,
	"bell":   5,
	"lemon":  4,
	"cherry": 4,
}

// Slots spins three uniform reels, one nonce per reel.
func Slots(st *provable.Stream) (Result, error) {
	reels := make([]string, 3)
	for i := range reels {
		reels[i] = slotsSymbols[st.Next()%uint64(len(slotsSymbols))]
	}

	r := Result{Detail: strings.Join(reels, " | ")}
	if reels[0] == reels[1] && reels[1] == reels[2] {
		r.Kind = Win
		r.Raw = slotsTriple[reels[0]]
		return r, nil
	}
	for _, sym := range slotsSymbols {
		count := 0
		for _, reel := range reels {
			if reel == sym {
				count++
			}
		}
		if count == 2 {
			r.Kind = Win
			r.Raw = 1.5
			return r, nil
		}
	}
	return r, nil
}

// Uniform segments summing to 6.0, mean 1.0, tuned for ~1% edge after the
// win cut. Sub-1.0 segments are partial losses, not pushes.
var wheelSegments = []float64{0.2, 0.4, 0.7, 1.0, 1.6, 2.1}

// Wheel lands on one segment; the segment value is the raw multiplier.
func Wheel(st *provable.Stream) (Result, error) {
	seg := wheelSegments[st.Next()%uint64(len(wheelSegments))]
	return Result{
		Kind:   Win,
		Raw:    seg,
		Detail: fmt.Sprintf("landed %.2fx", seg),
	}, nil
}

const (
	minesCells = 25
	minesCount = 5
)

// Mines hides 5 mines on a 5x5 grid, then auto-reveals the requested number
// of distinct cells, all drawn from the stream. Every revealed cell must be
// safe to win; the raw multiplier is the inverse survival probability.
func Mines(st *provable.Stream, picks int) (Result, error) {
	if picks < 1 || picks > 10 {
		return Result{}, fmt.Errorf("%w: picks must be 1-10", models.ErrInvalidInput)
	}

	mines := make(map[int]bool, minesCount)
	for len(mines) < minesCount {
		mines[int(st.Next()%minesCells)] = true
	}

	var chosen []int
	hit := false
	for len(chosen) < picks {
		cell := int(st.Next() % minesCells)
		if containsInt(chosen, cell) {
			continue
		}
		chosen = append(chosen, cell)
		if mines[cell] {
			hit = true
		}
	}

	mineList := make([]int, 0, minesCount)
	for m := range mines {
		mineList = append(mineList, m)
	}
	sort.Ints(mineList)

	r := Result{Detail: fmt.Sprintf("mines %v, revealed %v", mineList, chosen)}
	if !hit {
		odds := 1.0
		for i := 0; i < picks; i++ {
			odds *= float64(minesCells-minesCount-i) / float64(minesCells-i)
		}
		r.Kind = Win
		r.Raw = 1 / odds
	}
	return r, nil
}

func containsInt(s []int, v int) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}
