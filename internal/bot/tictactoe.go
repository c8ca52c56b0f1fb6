package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/shopspring/decimal"

	"github.com/sushantdhakal00/discord-bot/internal/models"
	"github.com/sushantdhakal00/discord-bot/internal/tictactoe"
)

func (b *Bot) cmdTicTacToe(ctx context.Context, m *discordgo.MessageCreate, args []string) (string, error) {
	if len(args) == 0 {
		return "", fmt.Errorf("%w: usage: !ttt @user [stake] | !ttt accept | !ttt move <1-9> | !ttt resign | !ttt decline", models.ErrInvalidInput)
	}
	userID, _ := parseUserID(m.Author.ID)

	switch strings.ToLower(args[0]) {
	case "accept":
		game, err := b.ttt.Accept(m.ChannelID, userID)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Game on! <@%d> is X and moves first. `!ttt move <1-9>`\n```\n%s\n```",
			game.ChallengerID, game.Render()), nil

	case "decline":
		if err := b.ttt.Decline(m.ChannelID, userID); err != nil {
			return "", err
		}
		return "Challenge withdrawn.", nil

	case "move":
		if len(args) != 2 {
			return "", fmt.Errorf("%w: usage: !ttt move <1-9>", models.ErrInvalidInput)
		}
		cell, err := strconv.Atoi(args[1])
		if err != nil {
			return "", fmt.Errorf("%w: %q is not a cell", models.ErrInvalidInput, args[1])
		}
		game, err := b.ttt.Apply(m.ChannelID, userID, cell)
		if err != nil {
			return "", err
		}
		return tttState(game), nil

	case "resign":
		game, err := b.ttt.Resign(m.ChannelID, userID)
		if err != nil {
			return "", err
		}
		return tttState(game), nil

	default:
		// Anything else is a challenge: !ttt @user [stake]
		opponent, err := mentionedUserID(m)
		if err != nil {
			return "", err
		}
		stake := decimal.Zero
		if last := args[len(args)-1]; !strings.HasPrefix(last, "<@") {
			stake, err = parseStake(last)
			if err != nil {
				return "", err
			}
		}
		game, err := b.ttt.Challenge(m.ChannelID, userID, opponent, stake)
		if err != nil {
			return "", err
		}
		if stake.Sign() > 0 {
			return fmt.Sprintf("<@%d>, <@%d> challenges you for %s QC a side. `!ttt accept` or `!ttt decline`.",
				opponent, userID, game.Stake), nil
		}
		return fmt.Sprintf("<@%d>, <@%d> challenges you to tic-tac-toe. `!ttt accept` or `!ttt decline`.",
			opponent, userID), nil
	}
}

func tttState(game *tictactoe.Game) string {
	board := fmt.Sprintf("```\n%s\n```", game.Render())
	if game.Status != tictactoe.StatusFinished {
		return fmt.Sprintf("%s<@%d> to move.", board, game.TurnID)
	}
	if game.WinnerID == 0 {
		return board + "Draw! Stakes returned."
	}
	if game.Stake.Sign() > 0 {
		pot := game.Stake.Mul(decimal.NewFromInt(2))
		return fmt.Sprintf("%s<@%d> wins %s QC!", board, game.WinnerID, pot)
	}
	return fmt.Sprintf("%s<@%d> wins!", board, game.WinnerID)
}
