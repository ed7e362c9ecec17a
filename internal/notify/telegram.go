package notify

import (
	"context"
	"fmt"
	"log"
	"strings"

	"gigmarket/backend/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// messageSender is the subset of *tgbotapi.BotAPI the notifier uses.
type messageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier posts lifecycle changes to an operator chat. Chat messages
// and reviews are not forwarded.
type TelegramNotifier struct {
	bot    messageSender
	chatID int64
}

func NewTelegramNotifier(token string, chatID int64) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	bot.Debug = false
	log.Printf("✅ Authorized on account %s", bot.Self.UserName)

	return &TelegramNotifier{bot: bot, chatID: chatID}, nil
}

func (t *TelegramNotifier) NotifyOrderEvent(_ context.Context, evt models.OrderEvent) error {
	text, ok := FormatOperatorMessage(evt)
	if !ok {
		return nil
	}

	if _, err := t.bot.Send(tgbotapi.NewMessage(t.chatID, text)); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

// FormatOperatorMessage renders evt for the operator chat. It reports false for
// events operators do not follow.
func FormatOperatorMessage(evt models.OrderEvent) (string, bool) {
	var b strings.Builder
	switch evt.Type {
	case models.OrderCreated:
		fmt.Fprintf(&b, "🆕 New order %s\nbuyer: %s\nseller: %s", evt.OrderID, evt.BuyerID, evt.SellerID)
	case models.OrderStatusChanged:
		fmt.Fprintf(&b, "🔄 Order %s is now %s", evt.OrderID, evt.Status)
		if evt.ActorID != "" {
			fmt.Fprintf(&b, "\nby: %s", evt.ActorID)
		}
	case models.OrderPaid:
		fmt.Fprintf(&b, "💰 Payment received for order %s (status %s)", evt.OrderID, evt.Status)
	default:
		return "", false
	}
	return b.String(), true
}
