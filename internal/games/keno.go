package games

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/sushantdhakal00/discord-bot/internal/models"
	"github.com/sushantdhakal00/discord-bot/internal/provable"
)

const (
	kenoPicks   = 6
	kenoPoolMin = 1
	kenoPoolMax = 40
	kenoDraws   = 8
)

// Base multipliers for exactly 6 picks by hit count; the house edge is
// applied on top at settlement.
var kenoPayouts = map[int]float64{
	2: 1.2,
	3: 2.5,
	4: 10,
	5: 100,
	6: 800,
}

// Keno draws 8 distinct numbers from 1-40 against the player's 6 picks. The
// whole round consumes one nonce: the digest for each chunk index is read in
// 8-hex-char windows, each mapped into the pool, until 8 uniques accumulate.
func Keno(st *provable.Stream, picks []int) (Result, error) {
	if err := validateKenoPicks(picks); err != nil {
		return Result{}, err
	}

	drawn, err := kenoDrawFromStream(st)
	if err != nil {
		return Result{}, err
	}

	pickSet := make(map[int]bool, len(picks))
	for _, p := range picks {
		pickSet[p] = true
	}
	hits := 0
	for _, n := range drawn {
		if pickSet[n] {
			hits++
		}
	}

	r := Result{Detail: fmt.Sprintf("drew %v, %d hits", drawn, hits)}
	if mult, ok := kenoPayouts[hits]; ok {
		r.Kind = Win
		r.Raw = mult
	}
	return r, nil
}

func validateKenoPicks(picks []int) error {
	if len(picks) != kenoPicks {
		return fmt.Errorf("%w: exactly %d picks required", models.ErrInvalidInput, kenoPicks)
	}
	seen := make(map[int]bool, len(picks))
	for _, p := range picks {
		if p < kenoPoolMin || p > kenoPoolMax {
			return fmt.Errorf("%w: picks must be %d-%d", models.ErrInvalidInput, kenoPoolMin, kenoPoolMax)
		}
		if seen[p] {
			return fmt.Errorf("%w: duplicate pick %d", models.ErrInvalidInput, p)
		}
		seen[p] = true
	}
	return nil
}

func kenoDrawFromStream(st *provable.Stream) ([]int, error) {
	drawSet := make(map[int]bool, kenoDraws)
	for chunk := 0; len(drawSet) < kenoDraws; chunk++ {
		digest, err := st.Digest(chunk)
		if err != nil {
			return nil, err
		}
		for i := 0; i+8 <= len(digest) && len(drawSet) < kenoDraws; i += 8 {
			val, _ := strconv.ParseUint(digest[i:i+8], 16, 64)
			drawSet[int(val%(kenoPoolMax-kenoPoolMin+1))+kenoPoolMin] = true
		}
	}
	drawn := make([]int, 0, kenoDraws)
	for n := range drawSet {
		drawn = append(drawn, n)
	}
	sort.Ints(drawn)
	return drawn, nil
}

// KenoDraw recomputes a past draw from disclosed seeds, for verification. A
// fresh stream cannot fail the mixed-draw check.
func KenoDraw(serverSeed, clientSeed string, nonce int64) []int {
	st := &provable.Stream{ServerSeed: serverSeed, ClientSeed: clientSeed, Start: nonce}
	drawn, _ := kenoDrawFromStream(st)
	return drawn
}
