package notify

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const telegramTimeout = 10 * time.Second

// NewTelegramBot authorizes token against the Bot API. An empty endpoint
// selects the public API; tests point it at a local server.
func NewTelegramBot(token, endpoint string) (*tgbotapi.BotAPI, error) {
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	bot, err := tgbotapi.NewBotAPIWithClient(token, endpoint, &http.Client{Timeout: telegramTimeout})
	if err != nil {
		return nil, fmt.Errorf("telegram: authorize: %w", err)
	}
	bot.Debug = false
	return bot, nil
}

// chatTarget is a numeric chat ID or an @channel username.
type chatTarget struct {
	id       int64
	username string
}

func parseChat(chat string) (chatTarget, error) {
	chat = strings.TrimSpace(chat)
	if strings.HasPrefix(chat, "@") {
		return chatTarget{username: chat}, nil
	}
	id, err := strconv.ParseInt(chat, 10, 64)
	if err != nil {
		return chatTarget{}, fmt.Errorf("telegram: invalid chat id %q", chat)
	}
	return chatTarget{id: id}, nil
}

func (c chatTarget) message(text string) tgbotapi.MessageConfig {
	var msg tgbotapi.MessageConfig
	if c.username != "" {
		msg = tgbotapi.NewMessageToChannel(c.username, text)
	} else {
		msg = tgbotapi.NewMessage(c.id, text)
	}
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	return msg
}

// TelegramSender posts HTML messages to one chat.
type TelegramSender struct {
	bot  *tgbotapi.BotAPI
	chat chatTarget
}

// NewTelegramSender creates a sender for chat, a numeric ID or @channel.
func NewTelegramSender(bot *tgbotapi.BotAPI, chat string) (*TelegramSender, error) {
	target, err := parseChat(chat)
	if err != nil {
		return nil, err
	}
	return &TelegramSender{bot: bot, chat: target}, nil
}

// Send posts the escaped title in bold followed by message, which must already
// be valid Telegram HTML.
func (t *TelegramSender) Send(ctx context.Context, title, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	text := message
	if title != "" {
		text = "<b>" + html.EscapeString(title) + "</b>\n" + message
	}
	if _, err := t.bot.Send(t.chat.message(text)); err != nil {
		return fmt.Errorf("telegram: send: %w", err)
	}
	return nil
}

// Name returns "telegram".
func (t *TelegramSender) Name() string { return "telegram" }
