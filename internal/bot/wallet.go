package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/shopspring/decimal"

	"github.com/sushantdhakal00/discord-bot/internal/models"
)

const dailyRewardQC = 5

func (b *Bot) cmdBalance(ctx context.Context, m *discordgo.MessageCreate, args []string) (string, error) {
	userID, _ := parseUserID(m.Author.ID)
	acct, err := b.store.GetOrCreateAccount(userID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Balance: %s QC", acct.Balance), nil
}

func (b *Bot) cmdTip(ctx context.Context, m *discordgo.MessageCreate, args []string) (string, error) {
	if len(args) < 2 {
		return "", fmt.Errorf("%w: usage: !tip @user <amount>", models.ErrInvalidInput)
	}
	from, _ := parseUserID(m.Author.ID)
	to, err := mentionedUserID(m)
	if err != nil {
		return "", err
	}
	if to == from {
		return "", fmt.Errorf("%w: cannot tip yourself", models.ErrInvalidInput)
	}
	amount, err := parseStake(args[len(args)-1])
	if err != nil {
		return "", err
	}
	if err := b.store.Transfer(from, to, amount, "tip",
		fmt.Sprintf("Tip from %d to %d", from, to)); err != nil {
		return "", err
	}
	return fmt.Sprintf("Sent %s QC to <@%d>.", amount, to), nil
}

func (b *Bot) cmdDaily(ctx context.Context, m *discordgo.MessageCreate, args []string) (string, error) {
	userID, _ := parseUserID(m.Author.ID)
	err := b.store.ClaimDaily(userID, b.wagers.HouseID(), decimal.NewFromInt(dailyRewardQC), time.Now())
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Daily reward claimed: %d QC.", dailyRewardQC), nil
}

func (b *Bot) cmdProfile(ctx context.Context, m *discordgo.MessageCreate, args []string) (string, error) {
	userID, _ := parseUserID(m.Author.ID)
	acct, err := b.store.GetOrCreateAccount(userID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(
		"Balance: %s QC | Wagered: %s QC | Net P/L: %s QC | Deposited: %s QC (%s SOL) | Withdrawn: %s QC",
		acct.Balance, acct.TotalWagered, acct.NetProfitLoss,
		acct.TotalDepositedQC, acct.TotalSOLDeposited, acct.TotalWithdrawnQC), nil
}

func (b *Bot) cmdHistory(ctx context.Context, m *discordgo.MessageCreate, args []string) (string, error) {
	userID, _ := parseUserID(m.Author.ID)
	rows, err := b.store.RecentTransactions(userID, 10)
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "No transactions yet.", nil
	}
	var sb strings.Builder
	for _, row := range rows {
		sign := "+"
		if row.Kind == models.TransactionDebit {
			sign = "-"
		}
		fmt.Fprintf(&sb, "%s%s QC [%s] %s\n", sign, row.Amount, row.Category, row.Note)
	}
	return sb.String(), nil
}

func (b *Bot) cmdDeposit(ctx context.Context, m *discordgo.MessageCreate, args []string) (string, error) {
	userID, _ := parseUserID(m.Author.ID)
	acct, err := b.store.GetOrCreateAccount(userID)
	if err != nil {
		return "", err
	}
	if acct.DepositAddress != "" {
		return fmt.Sprintf("Your deposit address: `%s` (1 QC = 0.001 SOL)", acct.DepositAddress), nil
	}

	addr, secret, err := b.chainClient.CreateAccount(ctx)
	if err != nil {
		return "", err
	}
	if err := b.store.BindDepositAddress(userID, addr, secret); err != nil {
		return "", err
	}
	return fmt.Sprintf("Your deposit address: `%s` (1 QC = 0.001 SOL)", addr), nil
}

func (b *Bot) cmdWithdraw(ctx context.Context, m *discordgo.MessageCreate, args []string) (string, error) {
	if len(args) != 2 {
		return "", fmt.Errorf("%w: usage: !withdraw <sol> <address>", models.ErrInvalidInput)
	}
	userID, _ := parseUserID(m.Author.ID)
	sol, err := decimal.NewFromString(args[0])
	if err != nil {
		return "", fmt.Errorf("%w: %q is not an amount", models.ErrInvalidInput, args[0])
	}
	w, err := b.withdrawer.Withdraw(ctx, userID, sol, args[1])
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Sent %s SOL. Signature: `%s`", sol, w.Signature), nil
}

func (b *Bot) cmdPrice(ctx context.Context, m *discordgo.MessageCreate, args []string) (string, error) {
	currency := "usd"
	if len(args) > 0 {
		currency = args[0]
	}
	price, err := b.rates.SolPrice(ctx, currency)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("1 SOL = %.2f %s", price, strings.ToUpper(currency)), nil
}

func (b *Bot) cmdConvert(ctx context.Context, m *discordgo.MessageCreate, args []string) (string, error) {
	if len(args) < 1 {
		return "", fmt.Errorf("%w: usage: !convert <sol> [currency]", models.ErrInvalidInput)
	}
	sol, err := decimal.NewFromString(args[0])
	if err != nil || sol.Sign() < 0 {
		return "", fmt.Errorf("%w: %q is not an amount", models.ErrInvalidInput, args[0])
	}
	currency := "usd"
	if len(args) > 1 {
		currency = args[1]
	}
	value, err := b.rates.Convert(ctx, sol, currency)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s SOL = %s %s", sol, value.Round(2), strings.ToUpper(currency)), nil
}
