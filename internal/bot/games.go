package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/shopspring/decimal"

	"github.com/sushantdhakal00/discord-bot/internal/games"
	"github.com/sushantdhakal00/discord-bot/internal/models"
	"github.com/sushantdhakal00/discord-bot/internal/provable"
)

// play runs one round through the shared settlement path and formats the
// reply. Every game command funnels through here.
func (b *Bot) play(m *discordgo.MessageCreate, family string, stake decimal.Decimal,
	fn func(*provable.Stream) (games.Result, error)) (string, error) {

	userID, _ := parseUserID(m.Author.ID)
	settlement, stream, err := b.wagers.Play(userID, family, stake, fn)
	if err != nil {
		return "", err
	}

	b.hub.Settlement(userID, family, settlement.Result.Kind.String(),
		settlement.Stake, settlement.Payout, settlement.Result.Detail)

	var line string
	switch settlement.Result.Kind {
	case games.Win:
		line = fmt.Sprintf("**Win!** %s — paid %s QC (staked %s QC)",
			settlement.Result.Detail, settlement.Payout, settlement.Stake)
	case games.Push:
		line = fmt.Sprintf("**Push.** %s — stake returned", settlement.Result.Detail)
	default:
		line = fmt.Sprintf("**Lost.** %s — %s QC gone", settlement.Result.Detail, settlement.Stake)
	}
	return fmt.Sprintf("%s\nNonce %d-%d | hash `%s`",
		line, stream.Start, stream.End(), stream.ServerHash), nil
}

func (b *Bot) cmdCoinflip(ctx context.Context, m *discordgo.MessageCreate, args []string) (string, error) {
	if len(args) != 2 {
		return "", fmt.Errorf("%w: usage: !coinflip <stake> <heads|tails>", models.ErrInvalidInput)
	}
	stake, err := parseStake(args[0])
	if err != nil {
		return "", err
	}
	choice := strings.ToLower(args[1])
	return b.play(m, games.FamilyCoinflip, stake, func(st *provable.Stream) (games.Result, error) {
		return games.Coinflip(st, choice)
	})
}

func (b *Bot) cmdDice(ctx context.Context, m *discordgo.MessageCreate, args []string) (string, error) {
	if len(args) != 2 {
		return "", fmt.Errorf("%w: usage: !dice <stake> <target 2-100>", models.ErrInvalidInput)
	}
	stake, err := parseStake(args[0])
	if err != nil {
		return "", err
	}
	target, err := strconv.Atoi(args[1])
	if err != nil {
		return "", fmt.Errorf("%w: %q is not a target", models.ErrInvalidInput, args[1])
	}
	return b.play(m, games.FamilyDice, stake, func(st *provable.Stream) (games.Result, error) {
		return games.Dice(st, target)
	})
}

func (b *Bot) cmdLimbo(ctx context.Context, m *discordgo.MessageCreate, args []string) (string, error) {
	if len(args) != 2 {
		return "", fmt.Errorf("%w: usage: !limbo <stake> <target 1.02-100>", models.ErrInvalidInput)
	}
	stake, err := parseStake(args[0])
	if err != nil {
		return "", err
	}
	target, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return "", fmt.Errorf("%w: %q is not a target", models.ErrInvalidInput, args[1])
	}
	return b.play(m, games.FamilyLimbo, stake, func(st *provable.Stream) (games.Result, error) {
		return games.Limbo(st, target)
	})
}

func (b *Bot) cmdHiLo(ctx context.Context, m *discordgo.MessageCreate, args []string) (string, error) {
	if len(args) != 2 {
		return "", fmt.Errorf("%w: usage: !hilo <stake> <higher|lower>", models.ErrInvalidInput)
	}
	stake, err := parseStake(args[0])
	if err != nil {
		return "", err
	}
	guess := strings.ToLower(args[1])
	return b.play(m, games.FamilyHiLo, stake, func(st *provable.Stream) (games.Result, error) {
		return games.HiLo(st, guess)
	})
}

func (b *Bot) cmdBlackjack(ctx context.Context, m *discordgo.MessageCreate, args []string) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("%w: usage: !blackjack <stake>", models.ErrInvalidInput)
	}
	stake, err := parseStake(args[0])
	if err != nil {
		return "", err
	}
	return b.play(m, games.FamilyBlackjack, stake, games.Blackjack)
}

func (b *Bot) cmdRoulette(ctx context.Context, m *discordgo.MessageCreate, args []string) (string, error) {
	if len(args) != 2 {
		return "", fmt.Errorf("%w: usage: !roulette <stake> <0-36|red|black|even|odd>", models.ErrInvalidInput)
	}
	stake, err := parseStake(args[0])
	if err != nil {
		return "", err
	}
	bet := strings.ToLower(args[1])
	return b.play(m, games.FamilyRoulette, stake, func(st *provable.Stream) (games.Result, error) {
		return games.Roulette(st, bet)
	})
}

func (b *Bot) cmdSlots(ctx context.Context, m *discordgo.MessageCreate, args []string) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("%w: usage: !slots <stake>", models.ErrInvalidInput)
	}
	stake, err := parseStake(args[0])
	if err != nil {
		return "", err
	}
	return b.play(m, games.FamilySlots, stake, games.Slots)
}

func (b *Bot) cmdWheel(ctx context.Context, m *discordgo.MessageCreate, args []string) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("%w: usage: !wheel <stake>", models.ErrInvalidInput)
	}
	stake, err := parseStake(args[0])
	if err != nil {
		return "", err
	}
	return b.play(m, games.FamilyWheel, stake, games.Wheel)
}

func (b *Bot) cmdMines(ctx context.Context, m *discordgo.MessageCreate, args []string) (string, error) {
	if len(args) != 2 {
		return "", fmt.Errorf("%w: usage: !mines <stake> <picks 1-10>", models.ErrInvalidInput)
	}
	stake, err := parseStake(args[0])
	if err != nil {
		return "", err
	}
	picks, err := strconv.Atoi(args[1])
	if err != nil {
		return "", fmt.Errorf("%w: %q is not a pick count", models.ErrInvalidInput, args[1])
	}
	return b.play(m, games.FamilyMines, stake, func(st *provable.Stream) (games.Result, error) {
		return games.Mines(st, picks)
	})
}

func (b *Bot) cmdKeno(ctx context.Context, m *discordgo.MessageCreate, args []string) (string, error) {
	if len(args) != 7 {
		return "", fmt.Errorf("%w: usage: !keno <stake> <6 numbers 1-40>", models.ErrInvalidInput)
	}
	stake, err := parseStake(args[0])
	if err != nil {
		return "", err
	}
	picks := make([]int, 0, 6)
	for _, arg := range args[1:] {
		n, err := strconv.Atoi(arg)
		if err != nil {
			return "", fmt.Errorf("%w: %q is not a number", models.ErrInvalidInput, arg)
		}
		picks = append(picks, n)
	}
	return b.play(m, games.FamilyKeno, stake, func(st *provable.Stream) (games.Result, error) {
		return games.Keno(st, picks)
	})
}

func (b *Bot) cmdFairness(ctx context.Context, m *discordgo.MessageCreate, args []string) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("%w: usage: !fairness <game>", models.ErrInvalidInput)
	}
	family := strings.ToLower(args[0])
	userID, _ := parseUserID(m.Author.ID)
	c, err := b.engine.GetOrCreate(userID, family)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Server hash: `%s`\nClient seed: `%s`\nNext nonce: %d",
		c.ServerHash, c.ClientSeed, c.Nonce), nil
}

func (b *Bot) cmdClientSeed(ctx context.Context, m *discordgo.MessageCreate, args []string) (string, error) {
	if len(args) != 2 {
		return "", fmt.Errorf("%w: usage: !clientseed <game> <seed>", models.ErrInvalidInput)
	}
	userID, _ := parseUserID(m.Author.ID)
	c, err := b.engine.SetClientSeed(userID, strings.ToLower(args[0]), args[1])
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Client seed set to `%s`, nonce reset to 0.", c.ClientSeed), nil
}

func (b *Bot) cmdRotateSeed(ctx context.Context, m *discordgo.MessageCreate, args []string) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("%w: usage: !rotateseed <game>", models.ErrInvalidInput)
	}
	userID, _ := parseUserID(m.Author.ID)
	oldSeed, c, err := b.engine.RotateServerSeed(userID, strings.ToLower(args[0]))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Old server seed: `%s`\nNew server hash: `%s`\nNonce reset to 0.",
		oldSeed, c.ServerHash), nil
}

// cmdVerify recomputes an outcome from disclosed seeds, same math as the
// HTTP /pf/verify endpoint.
func (b *Bot) cmdVerify(ctx context.Context, m *discordgo.MessageCreate, args []string) (string, error) {
	if len(args) != 3 {
		return "", fmt.Errorf("%w: usage: !verify <server_seed> <client_seed> <nonce>", models.ErrInvalidInput)
	}
	nonce, err := strconv.ParseInt(args[2], 10, 64)
	if err != nil || nonce < 0 {
		return "", fmt.Errorf("%w: %q is not a nonce", models.ErrInvalidInput, args[2])
	}
	return fmt.Sprintf("Hash: `%s`\nOutcome: %d\nFloat: %.12f",
		provable.HashSeed(args[0]),
		provable.Outcome(args[0], args[1], nonce),
		provable.OutcomeFloat(args[0], args[1], nonce)), nil
}
