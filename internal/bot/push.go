package bot

import (
	"context"
	"errors"
	"fmt"
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"research-scheduler/internal/service"
)

// PushSender delivers notifications as chat messages to every subscribed user.
func (b *Bot) PushSender() service.NotificationSender {
	return pushSender{bot: b}
}

type pushSender struct {
	bot *Bot
}

func (p pushSender) Send(ctx context.Context, n service.Notification) error {
	users, err := p.bot.users.ListSubscribers(ctx)
	if err != nil {
		return fmt.Errorf("list subscribers: %w", err)
	}

	text := fmt.Sprintf("🔔 <b>%s</b>\n\n%s", escape(n.Subject), escape(n.Body))
	var errs []error
	for _, u := range users {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		msg := tgbotapi.NewMessage(u.ChatID, text)
		msg.ParseMode = tgbotapi.ModeHTML
		if _, err := p.bot.api.Send(msg); err != nil {
			log.Printf("[warn] push to chat %d: %v", u.ChatID, err)
			errs = append(errs, fmt.Errorf("push to chat %d: %w", u.ChatID, err))
		}
	}
	return errors.Join(errs...)
}
