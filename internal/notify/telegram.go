package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/yourusername/odds-watch/internal/alert"
	"github.com/yourusername/odds-watch/internal/config"
	"github.com/yourusername/odds-watch/internal/metrics"
)

// Sender is the part of the bot API used for delivery
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier sends alert tables to the routed chats.
// Messages are spaced by the configured minimum interval to stay below the
// Bot API flood limits.
type TelegramNotifier struct {
	sender  Sender
	router  *Router
	limiter *rate.Limiter
	logger  *logrus.Logger
}

// NewTelegramNotifier connects to the Bot API and creates a notifier
func NewTelegramNotifier(cfg config.TelegramConfig, logger *logrus.Logger) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	bot.Debug = false

	logger.WithField("bot", bot.Self.UserName).Info("Telegram notifier initialized")
	return NewTelegramNotifierWithSender(bot, NewRouter(cfg), time.Duration(cfg.MinIntervalMillis)*time.Millisecond, logger), nil
}

// NewTelegramNotifierWithSender creates a notifier on top of any sender
func NewTelegramNotifierWithSender(sender Sender, router *Router, minInterval time.Duration, logger *logrus.Logger) *TelegramNotifier {
	limit := rate.Inf
	if minInterval > 0 {
		limit = rate.Every(minInterval)
	}
	return &TelegramNotifier{
		sender:  sender,
		router:  router,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
	}
}

// Notify renders the payload and sends it to every routed chat.
// Every chat is attempted; the returned error joins the failed sends.
func (n *TelegramNotifier) Notify(ctx context.Context, p alert.Payload) error {
	text := alert.FormatHTML(p)

	var errs []error
	for _, chatID := range n.router.Route(p) {
		if err := n.limiter.Wait(ctx); err != nil {
			return err
		}

		msg := tgbotapi.NewMessage(chatID, text)
		msg.ParseMode = tgbotapi.ModeHTML

		if _, err := n.sender.Send(msg); err != nil {
			metrics.RecordNotification("failed")
			n.logger.WithFields(logrus.Fields{
				"chat_id": chatID,
				"league":  p.League,
				"error":   err.Error(),
			}).Error("Failed to send telegram message")
			errs = append(errs, fmt.Errorf("chat %d: %w", chatID, err))
			continue
		}
		metrics.RecordNotification("sent")
	}
	return errors.Join(errs...)
}

// LogNotifier writes alerts to the log instead of chat, used in debug mode.
type LogNotifier struct {
	logger *logrus.Logger
}

// NewLogNotifier creates a log-only notifier
func NewLogNotifier(logger *logrus.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs the rendered alert
func (n *LogNotifier) Notify(ctx context.Context, p alert.Payload) error {
	n.logger.WithFields(logrus.Fields{
		"source": p.Source.Name,
		"league": p.League,
	}).Info("Alert (debug mode, not sent):\n" + alert.FormatHTML(p))
	return nil
}
