// Package notification публикует письма администратору в очередь RabbitMQ.
// Доставку выполняет отдельный процесс notification-sender.
package notification

import (
	"context"
	"fmt"

	"github.com/magabrotheeeer/coupon-service/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/coupon-service/internal/models"
)

// Publisher отправляет уведомления в exchange notifications с ключом admin.
type Publisher struct {
	ch rabbitmq.Channel
}

// NewPublisher создает новый экземпляр Publisher.
func NewPublisher(ch rabbitmq.Channel) *Publisher {
	return &Publisher{ch: ch}
}

// Notify ставит письмо в очередь. Ошибка означает, что брокер сообщение не принял
// или не успел принять до отмены ctx.
func (p *Publisher) Notify(ctx context.Context, to, subject, body string) error {
	const op = "notification.Notify"
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	msg := models.Notification{To: to, Subject: subject, Body: body}
	done := make(chan error, 1)
	go func() {
		done <- rabbitmq.PublishMessage(p.ch, rabbitmq.NotificationsExchange, rabbitmq.AdminRoutingKey, msg)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	}
}
