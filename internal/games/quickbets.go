package games

import (
	"fmt"

	"github.com/sushantdhakal00/discord-bot/internal/models"
	"github.com/sushantdhakal00/discord-bot/internal/provable"
)

// Coinflip resolves a heads/tails call. Win pays 2x raw.
func Coinflip(st *provable.Stream, choice string) (Result, error) {
	if choice != "heads" && choice != "tails" {
		return Result{}, fmt.Errorf("%w: choice must be heads or tails", models.ErrInvalidInput)
	}
	result := "tails"
	if st.Next()%2 == 0 {
		result = "heads"
	}
	r := Result{Detail: fmt.Sprintf("landed %s", result)}
	if choice == result {
		r.Kind = Win
		r.Raw = 2
	}
	return r, nil
}

// Dice is roll-under: pick a target 2-100, win if the roll is at or under
// it. The raw multiplier is the inverse of the win odds.
func Dice(st *provable.Stream, target int) (Result, error) {
	if target < 2 || target > 100 {
		return Result{}, fmt.Errorf("%w: target must be 2-100", models.ErrInvalidInput)
	}
	roll := int(st.Next()%100) + 1
	r := Result{Detail: fmt.Sprintf("rolled %d vs target %d", roll, target)}
	if roll <= target {
		r.Kind = Win
		r.Raw = 100.0 / float64(target)
	}
	return r, nil
}

// Limbo wins when the draw lands under 0.99/target, paying the target as the
// raw multiplier. Higher targets are proportionally less likely.
func Limbo(st *provable.Stream, target float64) (Result, error) {
	if target < 1.02 || target > 100 {
		return Result{}, fmt.Errorf("%w: target must be 1.02-100", models.ErrInvalidInput)
	}
	rng := st.NextFloat()
	pWin := 0.99 / target
	r := Result{Detail: fmt.Sprintf("draw %.6f vs win chance %.4f", rng, pWin)}
	if rng <= pWin {
		r.Kind = Win
		r.Raw = target
	}
	return r, nil
}

// HiLo draws a card 1-13 against a pivot of 7; an exact 7 loses both calls.
func HiLo(st *provable.Stream, guess string) (Result, error) {
	if guess != "higher" && guess != "lower" {
		return Result{}, fmt.Errorf("%w: guess must be higher or lower", models.ErrInvalidInput)
	}
	card := int(st.Next()%13) + 1
	r := Result{Detail: fmt.Sprintf("drew %d vs pivot 7", card)}
	win := card != 7 && ((guess == "higher" && card > 7) || (guess == "lower" && card < 7))
	if win {
		r.Kind = Win
		r.Raw = 2
	}
	return r, nil
}
