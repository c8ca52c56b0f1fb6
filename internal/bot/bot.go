// Package bot is the Discord command surface. Handlers parse arguments, call
// the services, and reply with plain state; all money and fairness rules live
// below this layer.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sushantdhakal00/discord-bot/internal/chain"
	"github.com/sushantdhakal00/discord-bot/internal/config"
	"github.com/sushantdhakal00/discord-bot/internal/cooldown"
	"github.com/sushantdhakal00/discord-bot/internal/feed"
	"github.com/sushantdhakal00/discord-bot/internal/loans"
	"github.com/sushantdhakal00/discord-bot/internal/models"
	"github.com/sushantdhakal00/discord-bot/internal/pools"
	"github.com/sushantdhakal00/discord-bot/internal/provable"
	"github.com/sushantdhakal00/discord-bot/internal/rates"
	"github.com/sushantdhakal00/discord-bot/internal/store"
	"github.com/sushantdhakal00/discord-bot/internal/tictactoe"
	"github.com/sushantdhakal00/discord-bot/internal/wager"
)

const (
	prefix = "!"

	commandsPerMinute = 20
	wagersPerMinute   = 30
)

type Bot struct {
	session *discordgo.Session
	cfg     *config.Config
	store   *store.Store
	engine  *provable.Engine
	wagers  *wager.Service
	pools   *pools.Service
	loans   *loans.Service
	ttt     *tictactoe.Manager

	chainClient chain.Client
	withdrawer  *chain.Withdrawer
	rates       *rates.Service
	limiter     *cooldown.Limiter
	hub         *feed.Hub
	log         *zap.Logger

	commands map[string]func(ctx context.Context, m *discordgo.MessageCreate, args []string) (string, error)
}

type Deps struct {
	Config      *config.Config
	Store       *store.Store
	Engine      *provable.Engine
	Wagers      *wager.Service
	Pools       *pools.Service
	Loans       *loans.Service
	TicTacToe   *tictactoe.Manager
	ChainClient chain.Client
	Withdrawer  *chain.Withdrawer
	Rates       *rates.Service
	Limiter     *cooldown.Limiter
	Hub         *feed.Hub
	Log         *zap.Logger
}

func New(d Deps) (*Bot, error) {
	session, err := discordgo.New("Bot " + d.Config.DiscordToken)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages

	b := &Bot{
		session:     session,
		cfg:         d.Config,
		store:       d.Store,
		engine:      d.Engine,
		wagers:      d.Wagers,
		pools:       d.Pools,
		loans:       d.Loans,
		ttt:         d.TicTacToe,
		chainClient: d.ChainClient,
		withdrawer:  d.Withdrawer,
		rates:       d.Rates,
		limiter:     d.Limiter,
		hub:         d.Hub,
		log:         d.Log,
	}
	b.registerCommands()
	session.AddHandler(b.onMessage)
	if b.pools != nil {
		b.pools.OnSettled(b.announcePool)
	}
	return b, nil
}

func (b *Bot) registerCommands() {
	b.commands = map[string]func(context.Context, *discordgo.MessageCreate, []string) (string, error){
		"balance":  b.cmdBalance,
		"tip":      b.cmdTip,
		"daily":    b.cmdDaily,
		"profile":  b.cmdProfile,
		"history":  b.cmdHistory,
		"deposit":  b.cmdDeposit,
		"withdraw": b.cmdWithdraw,
		"price":    b.cmdPrice,
		"convert":  b.cmdConvert,

		"coinflip":  b.cmdCoinflip,
		"dice":      b.cmdDice,
		"limbo":     b.cmdLimbo,
		"hilo":      b.cmdHiLo,
		"blackjack": b.cmdBlackjack,
		"roulette":  b.cmdRoulette,
		"slots":     b.cmdSlots,
		"wheel":     b.cmdWheel,
		"mines":     b.cmdMines,
		"keno":      b.cmdKeno,

		"fairness":   b.cmdFairness,
		"clientseed": b.cmdClientSeed,
		"rotateseed": b.cmdRotateSeed,
		"verify":     b.cmdVerify,

		"lottery": b.cmdLottery,
		"airdrop": b.cmdAirdrop,
		"claim":   b.cmdClaim,
		"battle":  b.cmdBattle,

		"loan": b.cmdLoan,
		"ttt":  b.cmdTicTacToe,
	}
}

// Run connects to the gateway and blocks until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("open gateway: %w", err)
	}
	b.log.Info("bot connected")
	<-ctx.Done()
	return b.session.Close()
}

func (b *Bot) onMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || !strings.HasPrefix(m.Content, prefix) {
		return
	}
	fields := strings.Fields(strings.TrimPrefix(m.Content, prefix))
	if len(fields) == 0 {
		return
	}
	name := strings.ToLower(fields[0])
	handler, ok := b.commands[name]
	if !ok {
		return
	}

	userID, err := parseUserID(m.Author.ID)
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	limit := commandsPerMinute
	if isWagerCommand(name) {
		limit = wagersPerMinute
	}
	if !b.limiter.Allow(ctx, userID, name, limit, time.Minute) {
		b.reply(m, "Slow down a little.")
		return
	}

	reply, err := handler(ctx, m, fields[1:])
	if err != nil {
		b.reply(m, userError(err))
		return
	}
	if reply != "" {
		b.reply(m, reply)
	}
}

func (b *Bot) reply(m *discordgo.MessageCreate, text string) {
	if _, err := b.session.ChannelMessageSend(m.ChannelID, text); err != nil {
		b.log.Warn("send reply", zap.Error(err))
	}
}

func isWagerCommand(name string) bool {
	switch name {
	case "coinflip", "dice", "limbo", "hilo", "blackjack",
		"roulette", "slots", "wheel", "mines", "keno":
		return true
	}
	return false
}

// userError turns service errors into messages safe to show in channel;
// anything unexpected is hidden behind a generic line.
func userError(err error) string {
	switch {
	case errors.Is(err, models.ErrInvalidInput):
		return "Invalid input: " + rootMessage(err)
	case errors.Is(err, models.ErrInsufficientFunds):
		return "You don't have enough QC for that."
	case errors.Is(err, models.ErrHouseInsolvent):
		return "The house cannot cover that payout right now. Your stake was returned."
	case errors.Is(err, models.ErrConflict):
		return "That's not possible right now: " + rootMessage(err)
	case errors.Is(err, models.ErrExpired):
		return "Too late, that one is already closed."
	case errors.Is(err, models.ErrNotFound):
		return "Nothing found."
	case errors.Is(err, models.ErrExternalUnavailable):
		return "The chain is unreachable, try again shortly."
	default:
		return "Something went wrong, try again."
	}
}

// rootMessage strips the wrapped sentinel suffix for display.
func rootMessage(err error) string {
	msg := err.Error()
	for _, sentinel := range []string{
		models.ErrInvalidInput.Error(), models.ErrConflict.Error(),
	} {
		msg = strings.ReplaceAll(msg, ": "+sentinel, "")
		msg = strings.ReplaceAll(msg, sentinel+": ", "")
	}
	return msg
}

func parseUserID(id string) (int64, error) {
	return strconv.ParseInt(id, 10, 64)
}

// mentionedUserID pulls the first real mention out of a command.
func mentionedUserID(m *discordgo.MessageCreate) (int64, error) {
	for _, u := range m.Mentions {
		if u.Bot {
			continue
		}
		return parseUserID(u.ID)
	}
	return 0, fmt.Errorf("%w: mention a user", models.ErrInvalidInput)
}

func parseStake(arg string) (decimal.Decimal, error) {
	stake, err := decimal.NewFromString(arg)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q is not an amount", models.ErrInvalidInput, arg)
	}
	if err := models.ValidateStake(stake); err != nil {
		return decimal.Zero, err
	}
	return stake, nil
}

func (b *Bot) isAdmin(userID int64) bool {
	return userID == b.cfg.AdminUserID
}
