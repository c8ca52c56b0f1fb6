package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/sushantdhakal00/discord-bot/internal/feed"
	"github.com/sushantdhakal00/discord-bot/internal/models"
	"github.com/sushantdhakal00/discord-bot/internal/pools"
)

func (b *Bot) cmdLottery(ctx context.Context, m *discordgo.MessageCreate, args []string) (string, error) {
	if len(args) == 0 {
		return "", fmt.Errorf("%w: usage: !lottery start <cost> <duration> | !lottery join <id>", models.ErrInvalidInput)
	}
	userID, _ := parseUserID(m.Author.ID)

	switch strings.ToLower(args[0]) {
	case "start":
		if len(args) != 3 {
			return "", fmt.Errorf("%w: usage: !lottery start <cost> <duration>", models.ErrInvalidInput)
		}
		cost, err := parseStake(args[1])
		if err != nil {
			return "", err
		}
		duration, err := models.ParseDuration(args[2])
		if err != nil {
			return "", err
		}
		pool, err := b.pools.CreateLottery(userID, m.ChannelID, cost, duration)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Lottery `%s` open! Entry %s QC, draws %s. Join with `!lottery join %s`.",
			pool.ID, pool.EntryCost, pool.Deadline.Format(time.Kitchen), pool.ID), nil

	case "join":
		if len(args) != 2 {
			return "", fmt.Errorf("%w: usage: !lottery join <id>", models.ErrInvalidInput)
		}
		if err := b.pools.JoinLottery(args[1], userID); err != nil {
			return "", err
		}
		return "You're in. Good luck!", nil

	default:
		return "", fmt.Errorf("%w: unknown lottery action %q", models.ErrInvalidInput, args[0])
	}
}

func (b *Bot) cmdAirdrop(ctx context.Context, m *discordgo.MessageCreate, args []string) (string, error) {
	if len(args) != 2 {
		return "", fmt.Errorf("%w: usage: !airdrop <amount> <duration>", models.ErrInvalidInput)
	}
	userID, _ := parseUserID(m.Author.ID)
	pot, err := parseStake(args[0])
	if err != nil {
		return "", err
	}
	duration, err := models.ParseDuration(args[1])
	if err != nil {
		return "", err
	}
	pool, err := b.pools.CreateAirdrop(userID, m.ChannelID, pot, duration)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Airdrop `%s`: %s QC splits among everyone who runs `!claim %s` before %s.",
		pool.ID, pool.Reserved, pool.ID, pool.Deadline.Format(time.Kitchen)), nil
}

func (b *Bot) cmdClaim(ctx context.Context, m *discordgo.MessageCreate, args []string) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("%w: usage: !claim <id>", models.ErrInvalidInput)
	}
	userID, _ := parseUserID(m.Author.ID)
	if err := b.pools.ClaimAirdrop(args[0], userID); err != nil {
		return "", err
	}
	return "Claimed. Your share arrives when the airdrop closes.", nil
}

func (b *Bot) cmdBattle(ctx context.Context, m *discordgo.MessageCreate, args []string) (string, error) {
	if len(args) == 0 {
		return "", fmt.Errorf("%w: usage: !battle create <pot> <ratio> <min> <max> <duration> | !battle join <id> | !battle start <id>", models.ErrInvalidInput)
	}
	userID, _ := parseUserID(m.Author.ID)

	switch strings.ToLower(args[0]) {
	case "create":
		if len(args) != 6 {
			return "", fmt.Errorf("%w: usage: !battle create <pot> <ratio like 70-20-10> <min> <max> <duration>", models.ErrInvalidInput)
		}
		pot, err := parseStake(args[1])
		if err != nil {
			return "", err
		}
		minPlayers, err := strconv.Atoi(args[3])
		if err != nil {
			return "", fmt.Errorf("%w: %q is not a player count", models.ErrInvalidInput, args[3])
		}
		maxPlayers, err := strconv.Atoi(args[4])
		if err != nil {
			return "", fmt.Errorf("%w: %q is not a player count", models.ErrInvalidInput, args[4])
		}
		duration, err := models.ParseDuration(args[5])
		if err != nil {
			return "", err
		}
		pool, err := b.pools.CreateBattle(userID, m.ChannelID, pot, args[2], minPlayers, maxPlayers, duration)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Battle `%s`: %s QC pot, payout %s. `!battle join %s` to fight (%d-%d players, starts by %s).",
			pool.ID, pool.Reserved, pool.Ratio, pool.ID,
			pool.MinPlayers, pool.MaxPlayers, pool.Deadline.Format(time.Kitchen)), nil

	case "join":
		if len(args) != 2 {
			return "", fmt.Errorf("%w: usage: !battle join <id>", models.ErrInvalidInput)
		}
		if err := b.pools.JoinBattle(args[1], userID); err != nil {
			return "", err
		}
		return "You're in the arena.", nil

	case "start":
		if len(args) != 2 {
			return "", fmt.Errorf("%w: usage: !battle start <id>", models.ErrInvalidInput)
		}
		if err := b.pools.StartBattle(args[1], userID); err != nil {
			return "", err
		}
		return "", nil // the settlement callback announces the result

	default:
		return "", fmt.Errorf("%w: unknown battle action %q", models.ErrInvalidInput, args[0])
	}
}

// announcePool posts a settled pool's result back to the channel it started
// in and mirrors it onto the live feed.
func (b *Bot) announcePool(o pools.Outcome) {
	var text string
	switch o.Pool.Kind {
	case models.PoolKindLottery:
		if len(o.Winners) == 0 {
			text = fmt.Sprintf("Lottery `%s` closed with no entrants.", o.Pool.ID)
		} else {
			text = fmt.Sprintf("Lottery `%s`: <@%d> takes the %s QC pot!",
				o.Pool.ID, o.Winners[0], o.Shares[0])
		}
	case models.PoolKindAirdrop:
		if len(o.Winners) == 0 {
			text = fmt.Sprintf("Airdrop `%s` had no claimants; the pot went back to <@%d>.",
				o.Pool.ID, o.Pool.CreatorID)
		} else {
			text = fmt.Sprintf("Airdrop `%s`: %d claimants got %s QC each.",
				o.Pool.ID, len(o.Winners), o.Shares[0])
		}
	case models.PoolKindBattle:
		if len(o.Winners) == 0 {
			text = fmt.Sprintf("Battle `%s` cancelled, not enough fighters. Pot refunded to <@%d>.",
				o.Pool.ID, o.Pool.CreatorID)
		} else {
			var sb strings.Builder
			fmt.Fprintf(&sb, "Battle `%s` is over!", o.Pool.ID)
			for i, w := range o.Winners {
				fmt.Fprintf(&sb, "\n%d. <@%d> — %s QC", i+1, w, o.Shares[i])
			}
			text = sb.String()
		}
	default:
		return
	}

	if _, err := b.session.ChannelMessageSend(o.Pool.ChannelID, text); err != nil {
		b.log.Warn("announce pool", zap.String("pool_id", o.Pool.ID), zap.Error(err))
	}
	b.hub.Publish(feed.Event{
		Type:   "pool:" + string(o.Pool.Kind),
		Detail: text,
	})
}

