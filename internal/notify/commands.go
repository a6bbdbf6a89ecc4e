package notify

import (
	"context"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// StatusFunc renders the /status report as Telegram HTML.
type StatusFunc func(ctx context.Context) (string, error)

const helpText = "<b>Commands</b>\n/status - mode, alerts sent in the last hour, UTC time\n/help - this message"

// CommandListener long-polls the Bot API and answers commands from the
// configured chat. Messages from other chats are ignored.
type CommandListener struct {
	bot         *tgbotapi.BotAPI
	chat        chatTarget
	status      StatusFunc
	pollTimeout int
	logger      *slog.Logger
}

// NewCommandListener creates a listener answering in chat.
func NewCommandListener(bot *tgbotapi.BotAPI, chat string, status StatusFunc, logger *slog.Logger) (*CommandListener, error) {
	target, err := parseChat(chat)
	if err != nil {
		return nil, err
	}
	return &CommandListener{
		bot:         bot,
		chat:        target,
		status:      status,
		pollTimeout: 30,
		logger:      logger.With(slog.String("component", "telegram-commands")),
	}, nil
}

// Run receives updates until ctx is cancelled.
func (l *CommandListener) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = l.pollTimeout
	updates := l.bot.GetUpdatesChan(u)
	defer l.bot.StopReceivingUpdates()

	l.logger.InfoContext(ctx, "listening for commands", slog.String("bot", l.bot.Self.UserName))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			if upd.Message == nil {
				continue
			}
			text, ok := l.Reply(ctx, upd.Message)
			if !ok {
				continue
			}
			reply := tgbotapi.NewMessage(upd.Message.Chat.ID, text)
			reply.ParseMode = tgbotapi.ModeHTML
			if _, err := l.bot.Send(reply); err != nil {
				l.logger.WarnContext(ctx, "reply failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Reply returns the answer to msg, or false when msg needs none.
func (l *CommandListener) Reply(ctx context.Context, msg *tgbotapi.Message) (string, bool) {
	if msg.Chat == nil || !l.fromConfiguredChat(msg.Chat) {
		return "", false
	}

	switch msg.Command() {
	case "status":
		report, err := l.status(ctx)
		if err != nil {
			l.logger.ErrorContext(ctx, "status report failed", slog.String("error", err.Error()))
			return fmt.Sprintf("status unavailable: %v", err), true
		}
		return report, true
	case "help", "start":
		return helpText, true
	default:
		return "", false
	}
}

func (l *CommandListener) fromConfiguredChat(c *tgbotapi.Chat) bool {
	if l.chat.username != "" {
		return "@"+c.UserName == l.chat.username
	}
	return c.ID == l.chat.id
}
