package games_test

import (
	"math"
	"strconv"
	"strings"
	"testing"

	"github.com/sushantdhakal00/discord-bot/internal/games"
	"github.com/sushantdhakal00/discord-bot/internal/provable"
)

func stream(nonce int64) *provable.Stream {
	return &provable.Stream{
		ServerSeed: "test-server-seed",
		ClientSeed: "test-client-seed",
		Start:      nonce,
	}
}

func TestCoinflip(t *testing.T) {
	if _, err := games.Coinflip(stream(0), "edge"); err == nil {
		t.Error("Invalid choice should be rejected")
	}

	// The outcome must agree with the pure derivation at the same nonce.
	for nonce := int64(0); nonce < 20; nonce++ {
		expected := "tails"
		if provable.Outcome("test-server-seed", "test-client-seed", nonce)%2 == 0 {
			expected = "heads"
		}
		res, err := games.Coinflip(stream(nonce), expected)
		if err != nil {
			t.Fatalf("Coinflip failed: %v", err)
		}
		if res.Kind != games.Win || res.Raw != 2 {
			t.Errorf("nonce %d: calling the derived side should win at 2x, got %v/%v",
				nonce, res.Kind, res.Raw)
		}

		other := "heads"
		if expected == "heads" {
			other = "tails"
		}
		res, _ = games.Coinflip(stream(nonce), other)
		if res.Kind != games.Lose {
			t.Errorf("nonce %d: calling the wrong side should lose", nonce)
		}
	}
}

func TestDice(t *testing.T) {
	if _, err := games.Dice(stream(0), 1); err == nil {
		t.Error("Target below 2 should be rejected")
	}
	if _, err := games.Dice(stream(0), 101); err == nil {
		t.Error("Target above 100 should be rejected")
	}

	// Target 100 always wins at 1x raw.
	res, err := games.Dice(stream(0), 100)
	if err != nil {
		t.Fatalf("Dice failed: %v", err)
	}
	if res.Kind != games.Win {
		t.Error("Roll-under 100 should always win")
	}
	if math.Abs(res.Raw-1.0) > 1e-9 {
		t.Errorf("Target 100 raw multiplier should be 1.0, got %f", res.Raw)
	}

	res, _ = games.Dice(stream(0), 50)
	if res.Kind == games.Win && math.Abs(res.Raw-2.0) > 1e-9 {
		t.Errorf("Target 50 raw multiplier should be 2.0, got %f", res.Raw)
	}

	// Same nonce, same outcome.
	a, _ := games.Dice(stream(5), 50)
	b, _ := games.Dice(stream(5), 50)
	if a != b {
		t.Error("Dice must be deterministic per nonce")
	}
}

func TestLimbo(t *testing.T) {
	if _, err := games.Limbo(stream(0), 1.0); err == nil {
		t.Error("Target below 1.02 should be rejected")
	}

	rng := provable.OutcomeFloat("test-server-seed", "test-client-seed", 3)

	// A target the draw clears must win and pay the target raw.
	winTarget := math.Max(1.02, 0.98/rng)
	if winTarget <= 100 && rng <= 0.99/winTarget {
		res, err := games.Limbo(stream(3), winTarget)
		if err != nil {
			t.Fatalf("Limbo failed: %v", err)
		}
		if res.Kind != games.Win || res.Raw != winTarget {
			t.Errorf("Expected win at %fx, got %v/%v", winTarget, res.Kind, res.Raw)
		}
	}

	// A target the draw cannot clear must lose.
	if rng > 0.99/100 {
		res, _ := games.Limbo(stream(3), 100)
		if res.Kind != games.Lose {
			t.Error("Draw above the win chance should lose")
		}
	}
}

func TestBlackjackDeterministicAndConsistent(t *testing.T) {
	a, err := games.Blackjack(stream(0))
	if err != nil {
		t.Fatalf("Blackjack failed: %v", err)
	}
	b, _ := games.Blackjack(stream(0))
	if a != b {
		t.Error("Blackjack must be deterministic per starting nonce")
	}

	for nonce := int64(0); nonce < 30; nonce++ {
		st := stream(nonce)
		res, _ := games.Blackjack(st)
		// Both hands draw to at least 17, so at least 4 cards total.
		if st.Used() < 4 {
			t.Errorf("nonce %d: blackjack should consume at least 4 nonces, used %d", nonce, st.Used())
		}
		if res.Kind == games.Win && res.Raw != 2 {
			t.Errorf("nonce %d: blackjack win should pay 2x raw", nonce)
		}
		if res.Kind == games.Push && res.Raw != 0 {
			t.Errorf("nonce %d: push should carry no multiplier", nonce)
		}
	}
}

func TestHiLo(t *testing.T) {
	if _, err := games.HiLo(stream(0), "sideways"); err == nil {
		t.Error("Invalid guess should be rejected")
	}

	for nonce := int64(0); nonce < 30; nonce++ {
		card := int(provable.Outcome("test-server-seed", "test-client-seed", nonce)%13) + 1
		hi, _ := games.HiLo(stream(nonce), "higher")
		lo, _ := games.HiLo(stream(nonce), "lower")
		switch {
		case card == 7:
			if hi.Kind != games.Lose || lo.Kind != games.Lose {
				t.Errorf("nonce %d: exact 7 should lose both calls", nonce)
			}
		case card > 7:
			if hi.Kind != games.Win || lo.Kind != games.Lose {
				t.Errorf("nonce %d: card %d should win higher only", nonce, card)
			}
		default:
			if lo.Kind != games.Win || hi.Kind != games.Lose {
				t.Errorf("nonce %d: card %d should win lower only", nonce, card)
			}
		}
	}
}

func TestRoulette(t *testing.T) {
	if _, err := games.Roulette(stream(0), "37"); err == nil {
		t.Error("Number above 36 should be rejected")
	}
	if _, err := games.Roulette(stream(0), "purple"); err == nil {
		t.Error("Unknown bet should be rejected")
	}

	for nonce := int64(0); nonce < 40; nonce++ {
		spun := int(provable.Outcome("test-server-seed", "test-client-seed", nonce) % 37)

		// The exact number always wins at 36x.
		res, err := games.Roulette(stream(nonce), strconv.Itoa(spun))
		if err != nil {
			t.Fatalf("Roulette failed: %v", err)
		}
		if res.Kind != games.Win || res.Raw != 36 {
			t.Errorf("nonce %d: straight bet on %d should win at 36x", nonce, spun)
		}

		// Zero loses every simple bet.
		if spun == 0 {
			for _, bet := range []string{"red", "black", "even", "odd"} {
				res, _ := games.Roulette(stream(nonce), bet)
				if res.Kind != games.Lose {
					t.Errorf("nonce %d: zero should lose %s", nonce, bet)
				}
			}
		}
	}
}

func TestSlots(t *testing.T) {
	a, err := games.Slots(stream(0))
	if err != nil {
		t.Fatalf("Slots failed: %v", err)
	}
	b, _ := games.Slots(stream(0))
	if a != b {
		t.Error("Slots must be deterministic per starting nonce")
	}

	for nonce := int64(0); nonce < 60; nonce++ {
		st := stream(nonce)
		res, _ := games.Slots(st)
		if st.Used() != 3 {
			t.Errorf("Slots should consume exactly 3 nonces, used %d", st.Used())
		}
		reels := strings.Split(res.Detail, " | ")
		triple := reels[0] == reels[1] && reels[1] == reels[2]
		pair := !triple && (reels[0] == reels[1] || reels[1] == reels[2] || reels[0] == reels[2])
		switch {
		case triple && res.Kind != games.Win:
			t.Errorf("nonce %d: three of a kind should win", nonce)
		case pair && (res.Kind != games.Win || res.Raw != 1.5):
			t.Errorf("nonce %d: a pair should win at 1.5x", nonce)
		case !triple && !pair && res.Kind != games.Lose:
			t.Errorf("nonce %d: no match should lose", nonce)
		}
	}
}

func TestWheel(t *testing.T) {
	valid := map[float64]bool{0.2: true, 0.4: true, 0.7: true, 1.0: true, 1.6: true, 2.1: true}
	for nonce := int64(0); nonce < 20; nonce++ {
		res, err := games.Wheel(stream(nonce))
		if err != nil {
			t.Fatalf("Wheel failed: %v", err)
		}
		if res.Kind != games.Win {
			t.Error("Wheel always settles as a win at the landed multiplier")
		}
		if !valid[res.Raw] {
			t.Errorf("Wheel landed unknown segment %f", res.Raw)
		}
	}
}

func TestMines(t *testing.T) {
	if _, err := games.Mines(stream(0), 0); err == nil {
		t.Error("Zero picks should be rejected")
	}
	if _, err := games.Mines(stream(0), 11); err == nil {
		t.Error("More than 10 picks should be rejected")
	}

	// Inverse survival odds for 3 picks on 25 cells with 5 mines.
	expected := 1.0 / ((20.0 / 25.0) * (19.0 / 24.0) * (18.0 / 23.0))
	for nonce := int64(0); nonce < 40; nonce++ {
		res, err := games.Mines(stream(nonce), 3)
		if err != nil {
			t.Fatalf("Mines failed: %v", err)
		}
		if res.Kind == games.Win && math.Abs(res.Raw-expected) > 1e-9 {
			t.Errorf("nonce %d: 3-pick win should pay %f raw, got %f", nonce, expected, res.Raw)
		}
	}

	a, _ := games.Mines(stream(7), 5)
	b, _ := games.Mines(stream(7), 5)
	if a != b {
		t.Error("Mines must be deterministic per starting nonce")
	}
}

func TestKeno(t *testing.T) {
	if _, err := games.Keno(stream(0), []int{1, 2, 3}); err == nil {
		t.Error("Fewer than 6 picks should be rejected")
	}
	if _, err := games.Keno(stream(0), []int{1, 2, 3, 4, 5, 5}); err == nil {
		t.Error("Duplicate picks should be rejected")
	}
	if _, err := games.Keno(stream(0), []int{1, 2, 3, 4, 5, 41}); err == nil {
		t.Error("Out-of-range picks should be rejected")
	}

	st := stream(9)
	res, err := games.Keno(st, []int{1, 2, 3, 4, 5, 6})
	if err != nil {
		t.Fatalf("Keno failed: %v", err)
	}
	if st.Used() != 1 {
		t.Errorf("Keno should consume exactly one nonce, used %d", st.Used())
	}
	if res.Kind == games.Win && res.Raw < 1.2 {
		t.Errorf("Winning keno multiplier should be at least 1.2, got %f", res.Raw)
	}

	drawn := games.KenoDraw("test-server-seed", "test-client-seed", 9)
	if len(drawn) != 8 {
		t.Fatalf("Keno should draw 8 numbers, got %d", len(drawn))
	}
	seen := map[int]bool{}
	for _, n := range drawn {
		if n < 1 || n > 40 {
			t.Errorf("Drawn number %d out of pool range", n)
		}
		if seen[n] {
			t.Errorf("Drawn number %d repeated", n)
		}
		seen[n] = true
	}

	again := games.KenoDraw("test-server-seed", "test-client-seed", 9)
	for i := range drawn {
		if drawn[i] != again[i] {
			t.Error("KenoDraw must be deterministic")
		}
	}
}

