package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/shopspring/decimal"

	"github.com/sushantdhakal00/discord-bot/internal/loans"
	"github.com/sushantdhakal00/discord-bot/internal/models"
)

func (b *Bot) cmdLoan(ctx context.Context, m *discordgo.MessageCreate, args []string) (string, error) {
	if len(args) == 0 {
		return "", fmt.Errorf("%w: usage: !loan apply <amount> <duration> | !loan repay | !loan status", models.ErrInvalidInput)
	}
	userID, _ := parseUserID(m.Author.ID)

	switch strings.ToLower(args[0]) {
	case "apply":
		if len(args) != 3 {
			return "", fmt.Errorf("%w: usage: !loan apply <amount> <duration like 7d or 168h>", models.ErrInvalidInput)
		}
		principal, err := parseStake(args[1])
		if err != nil {
			return "", err
		}
		duration, err := models.ParseDuration(args[2])
		if err != nil {
			return "", err
		}
		loan, err := b.loans.Apply(userID, principal, duration)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Loan application `%s` filed for %s QC over %s. An admin will review it.",
			loan.UniqueID, loan.Principal, formatDays(loan.Duration)), nil

	case "repay":
		paid, err := b.loans.Repay(userID)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Loan repaid in full: %s QC.", paid), nil

	case "status":
		return b.loanStatus(userID)

	case "approve", "deny", "pause", "cap", "ban", "unban":
		if !b.isAdmin(userID) {
			return "", fmt.Errorf("%w: admin only", models.ErrInvalidInput)
		}
		return b.loanAdmin(m, args)

	default:
		return "", fmt.Errorf("%w: unknown loan action %q", models.ErrInvalidInput, args[0])
	}
}

func (b *Bot) loanStatus(userID int64) (string, error) {
	loan, err := b.store.NonTerminalLoan(userID)
	if errors.Is(err, models.ErrNotFound) {
		elig, err := b.loans.Check(userID)
		if err != nil {
			return "", err
		}
		if !elig.Eligible {
			return fmt.Sprintf("No open loan. Not eligible yet: %s.", elig.Reason), nil
		}
		return fmt.Sprintf("No open loan. You qualify for up to %s QC.", elig.CapQC), nil
	}
	if err != nil {
		return "", err
	}

	switch loan.Status {
	case models.LoanStatusPending:
		return fmt.Sprintf("Loan `%s` for %s QC is awaiting review.", loan.UniqueID, loan.Principal), nil
	default:
		owed := loan.Principal.Add(loans.Interest(loan))
		return fmt.Sprintf("Loan `%s`: %s QC due by %s (%s QC with interest). `!loan repay` settles it.",
			loan.UniqueID, loan.Principal, loan.DueDate.Format("Jan 2 15:04"), owed), nil
	}
}

func (b *Bot) loanAdmin(m *discordgo.MessageCreate, args []string) (string, error) {
	adminID, _ := parseUserID(m.Author.ID)

	switch strings.ToLower(args[0]) {
	case "approve":
		if len(args) != 2 {
			return "", fmt.Errorf("%w: usage: !loan approve <id>", models.ErrInvalidInput)
		}
		loan, err := b.loans.Approve(args[1], adminID)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Loan `%s` approved: %s QC to <@%d>, due %s.",
			loan.UniqueID, loan.Principal, loan.UserID, loan.DueDate.Format("Jan 2 15:04")), nil

	case "deny":
		if len(args) != 2 {
			return "", fmt.Errorf("%w: usage: !loan deny <id>", models.ErrInvalidInput)
		}
		if err := b.loans.Deny(args[1], adminID); err != nil {
			return "", err
		}
		return fmt.Sprintf("Loan `%s` denied.", args[1]), nil

	case "pause":
		if len(args) != 2 || (args[1] != "on" && args[1] != "off") {
			return "", fmt.Errorf("%w: usage: !loan pause on|off", models.ErrInvalidInput)
		}
		if err := b.loans.SetPaused(args[1] == "on"); err != nil {
			return "", err
		}
		if args[1] == "on" {
			return "New loan applications are paused.", nil
		}
		return "Loan applications are open again.", nil

	case "cap":
		if len(args) != 2 {
			return "", fmt.Errorf("%w: usage: !loan cap <amount>", models.ErrInvalidInput)
		}
		cap, err := decimal.NewFromString(args[1])
		if err != nil {
			return "", fmt.Errorf("%w: %q is not an amount", models.ErrInvalidInput, args[1])
		}
		if err := b.loans.SetOutstandingCap(cap); err != nil {
			return "", err
		}
		return fmt.Sprintf("Outstanding principal cap set to %s QC.", cap), nil

	case "ban", "unban":
		target, err := mentionedUserID(m)
		if err != nil {
			return "", err
		}
		banned := strings.ToLower(args[0]) == "ban"
		if err := b.loans.SetBanned(target, banned); err != nil {
			return "", err
		}
		if banned {
			return fmt.Sprintf("<@%d> can no longer borrow.", target), nil
		}
		return fmt.Sprintf("<@%d> can borrow again.", target), nil
	}
	return "", fmt.Errorf("%w: unknown loan action", models.ErrInvalidInput)
}

func formatDays(d time.Duration) string {
	days := d.Hours() / 24
	if days == float64(int(days)) {
		return fmt.Sprintf("%d days", int(days))
	}
	return d.String()
}
