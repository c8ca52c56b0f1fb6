package games

// Game family keys, used for commitment lookup and verification.
const (
	FamilyCoinflip  = "coinflip"
	FamilyDice      = "dice"
	FamilyLimbo     = "limbo"
	FamilyBlackjack = "blackjack"
	FamilyHiLo      = "hilo"
	FamilyRoulette  = "roulette"
	FamilySlots     = "slots"
	FamilyWheel     = "wheel"
	FamilyMines     = "mines"
	FamilyKeno      = "keno"
)

type Kind int

const (
	Lose Kind = iota
	Win
	Push
)

func (k Kind) String() string {
	switch k {
	case Win:
		return "win"
	case Push:
		return "push"
	}
	return "lose"
}

// Result is a resolved round before any money moves. Raw is the multiplier
// applied to the stake on a win, before the house edge; it is ignored for
// losses and pushes (a push refunds exactly the stake, edge-free).
type Result struct {
	Kind   Kind
	Raw    float64
	Detail string
}
