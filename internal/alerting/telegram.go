package alerting

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	tele "gopkg.in/telebot.v4"
)

// TelegramNotifier posts messages to one or more chats through a bot.
type TelegramNotifier struct {
	bot     *tele.Bot
	chatIDs []int64
	logger  zerolog.Logger
}

// NewTelegramNotifier constructs a Telegram destination. baseURL overrides
// the Bot API endpoint and may be empty.
func NewTelegramNotifier(token string, chatIDs []int64, baseURL string, timeout time.Duration, logger zerolog.Logger) (*TelegramNotifier, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if len(chatIDs) == 0 {
		return nil, errors.New("telegram destination needs at least one chat id")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	bot, err := tele.NewBot(tele.Settings{
		Token:   token,
		URL:     strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: timeout},
		Offline: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	return &TelegramNotifier{
		bot:     bot,
		chatIDs: chatIDs,
		logger:  logger.With().Str("component", "alert_telegram").Logger(),
	}, nil
}

// Name implements Destination.
func (n *TelegramNotifier) Name() string { return "telegram" }

// Notify sends body to every chat; any chat failing fails the destination.
func (n *TelegramNotifier) Notify(ctx context.Context, body string) error {
	var errs []error
	for _, id := range n.chatIDs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := n.bot.Send(tele.ChatID(id), body, &tele.SendOptions{DisableWebPagePreview: true}); err != nil {
			errs = append(errs, fmt.Errorf("chat %d: %w", id, err))
			continue
		}
		n.logger.Debug().Int64("chat_id", id).Msg("message sent")
	}
	return errors.Join(errs...)
}

var _ Destination = (*TelegramNotifier)(nil)
