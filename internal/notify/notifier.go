// Package notify delivers mail and chat messages to users.
package notify

import (
	"context"

	"go.uber.org/zap"
)

// MailSender delivers one email
type MailSender interface {
	SendMail(ctx context.Context, to, subject, body string) error
}

// DirectMessenger delivers one chat message
type DirectMessenger interface {
	SendDirectMessage(ctx context.Context, phone, body string) error
}

// Notifier bundles the outbound channels
type Notifier struct {
	mail   MailSender
	chat   DirectMessenger
	logger *zap.Logger
}

// NewNotifier creates a notifier over mail and chat
func NewNotifier(mail MailSender, chat DirectMessenger, logger *zap.Logger) *Notifier {
	return &Notifier{mail: mail, chat: chat, logger: logger.Named("notify")}
}

func (n *Notifier) SendMail(ctx context.Context, to, subject, body string) error {
	if err := n.mail.SendMail(ctx, to, subject, body); err != nil {
		return err
	}
	n.logger.Debug("mail sent", zap.String("to", to), zap.String("subject", subject))
	return nil
}

func (n *Notifier) SendDirectMessage(ctx context.Context, phone, body string) error {
	if err := n.chat.SendDirectMessage(ctx, phone, body); err != nil {
		return err
	}
	n.logger.Debug("direct message sent", zap.String("to", phone))
	return nil
}
