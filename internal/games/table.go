package games

import (
	"fmt"
	"strconv"

	"github.com/sushantdhakal00/discord-bot/internal/models"
	"github.com/sushantdhakal00/discord-bot/internal/provable"
)

// Blackjack deals both hands from the stream, auto-drawing each to 17+.
// Cards are 1-13 scored at face value capped at 10; hand totals cap at 21,
// so an overdraw counts as 21 rather than busting. Beating the dealer pays
// 2x raw; equal totals push.
func Blackjack(st *provable.Stream) (Result, error) {
	player, playerScore := drawHand(st)
	dealer, dealerScore := drawHand(st)

	r := Result{Detail: fmt.Sprintf("player %v -> %d, dealer %v -> %d",
		player, playerScore, dealer, dealerScore)}

	switch {
	case playerScore == dealerScore:
		r.Kind = Push
	case playerScore > dealerScore:
		r.Kind = Win
		r.Raw = 2
	}
	return r, nil
}

func drawHand(st *provable.Stream) (cards []int, score int) {
	for score < 17 {
		card := int(st.Next()%13) + 1
		if card > 10 {
			card = 10
		}
		cards = append(cards, card)
		score += card
	}
	if score > 21 {
		score = 21
	}
	return cards, score
}

var rouletteRed = map[int]bool{
	1: true, 3: true, 5: true, 7: true, 9: true, 12: true, 14: true, 16: true,
	18: true, 19: true, 21: true, 23: true, 25: true, 27: true, 30: true,
	32: true, 34: true, 36: true,
}

// Roulette spins a single-zero wheel. A straight number bet pays 36x raw;
// red/black/even/odd pay 2x raw and all lose on zero.
func Roulette(st *provable.Stream, bet string) (Result, error) {
	numBet := -1
	switch bet {
	case "red", "black", "even", "odd":
	default:
		n, err := strconv.Atoi(bet)
		if err != nil || n < 0 || n > 36 {
			return Result{}, fmt.Errorf("%w: bet must be red/black/even/odd or a number 0-36", models.ErrInvalidInput)
		}
		numBet = n
	}

	result := int(st.Next() % 37)
	color := "green"
	if rouletteRed[result] {
		color = "red"
	} else if result != 0 {
		color = "black"
	}
	parity := "zero"
	if result != 0 {
		parity = "odd"
		if result%2 == 0 {
			parity = "even"
		}
	}

	r := Result{Detail: fmt.Sprintf("spun %d (%s, %s)", result, color, parity)}
	if numBet >= 0 {
		if result == numBet {
			r.Kind = Win
			r.Raw = 36
		}
		return r, nil
	}
	if bet == color || bet == parity {
		r.Kind = Win
		r.Raw = 2
	}
	return r, nil
}
