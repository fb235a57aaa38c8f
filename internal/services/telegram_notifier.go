package services

import (
	"context"

	"github.com/aristath/rebalancer/internal/domain"
	"github.com/rs/zerolog"
)

// MessageSender delivers an HTML message with explicit credentials
type MessageSender interface {
	SendHTML(ctx context.Context, token, chatID, text string) error
}

// TelegramNotifier implements domain.Notifier. Credentials are read from
// the settings provider on every send so changes apply immediately.
type TelegramNotifier struct {
	sender   MessageSender
	settings domain.SettingsProvider
	log      zerolog.Logger
}

// NewTelegramNotifier creates a new notifier
func NewTelegramNotifier(sender MessageSender, settings domain.SettingsProvider, log zerolog.Logger) *TelegramNotifier {
	return &TelegramNotifier{
		sender:   sender,
		settings: settings,
		log:      log.With().Str("service", "telegram_notifier").Logger(),
	}
}

// Send implements domain.Notifier. It never panics or returns an error;
// delivery failure is reported as false.
func (n *TelegramNotifier) Send(ctx context.Context, message string) (delivered bool) {
	defer func() {
		if r := recover(); r != nil {
			n.log.Error().Interface("panic", r).Msg("Notifier panicked")
			delivered = false
		}
	}()

	current := n.settings.Current()
	if !current.NotifierConfigured() {
		n.log.Debug().Msg("Notifier credentials missing, skipping send")
		return false
	}

	if err := n.sender.SendHTML(ctx, current.TelegramBotToken, current.TelegramChatID, message); err != nil {
		n.log.Warn().Err(err).Msg("Failed to send notification")
		return false
	}
	return true
}
