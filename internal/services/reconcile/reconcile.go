// Package reconcile периодически ищет погашенные купоны, по которым пользователь
// так и не получил ручную подписку, и сообщает о них администратору.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/magabrotheeeer/coupon-service/internal/lib/sl"
	"github.com/magabrotheeeer/coupon-service/internal/metrics"
	"github.com/magabrotheeeer/coupon-service/internal/models"
)

// DefaultGracePeriod — сколько ждать после погашения, прежде чем считать активацию незавершённой.
const DefaultGracePeriod = 5 * time.Minute

// Store описывает поиск незавершённых активаций.
type Store interface {
	FindUngrantedRedemptions(ctx context.Context, before time.Time) ([]*models.UngrantedRedemption, error)
}

// Notifier отправляет уведомление администратору.
type Notifier interface {
	Notify(ctx context.Context, to, subject, body string) error
}

// Service выполняет сверку погашенных купонов и ручных подписок.
type Service struct {
	store       Store
	notifier    Notifier
	log         *slog.Logger
	adminEmail  string
	interval    time.Duration
	gracePeriod time.Duration
	now         func() time.Time
}

// NewService создает новый экземпляр Service.
func NewService(store Store, notifier Notifier, log *slog.Logger, adminEmail string, interval time.Duration) *Service {
	return &Service{
		store:       store,
		notifier:    notifier,
		log:         log,
		adminEmail:  adminEmail,
		interval:    interval,
		gracePeriod: DefaultGracePeriod,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithClock подменяет источник текущего времени.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Run выполняет сверку сразу и затем с интервалом interval до отмены ctx.
func (s *Service) Run(ctx context.Context) {
	s.runCheck(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runCheck(ctx)
		}
	}
}

func (s *Service) runCheck(ctx context.Context) {
	if _, err := s.CheckOnce(ctx); err != nil {
		s.log.Error("reconciliation failed", sl.Err(err))
	}
}

// CheckOnce находит незавершённые активации, обновляет метрику и уведомляет администратора.
// Уведомление отправляется одно на всю пачку найденных записей.
func (s *Service) CheckOnce(ctx context.Context) ([]*models.UngrantedRedemption, error) {
	const op = "reconcile.CheckOnce"
	log := s.log.With(slog.String("op", op))

	items, err := s.store.FindUngrantedRedemptions(ctx, s.now().Add(-s.gracePeriod))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	metrics.UngrantedRedemptions.Set(float64(len(items)))

	if len(items) == 0 {
		log.Debug("no ungranted redemptions found")
		return nil, nil
	}

	log.Warn("found ungranted redemptions", slog.Int("count", len(items)))
	var b strings.Builder
	for _, it := range items {
		log.Warn("coupon consumed without subscription grant",
			slog.Int("coupon_id", it.CouponID),
			slog.String("user_uid", it.UserUID),
			slog.Time("used_at", it.UsedAt),
		)
		fmt.Fprintf(&b, "%s used code %s at %s but has no manual subscription update\n",
			it.Email, it.Code, it.UsedAt.Format(time.RFC3339))
	}

	subject := fmt.Sprintf("%d coupon redemption(s) need attention", len(items))
	if err := s.notifier.Notify(ctx, s.adminEmail, subject, b.String()); err != nil {
		metrics.NotificationFailures.Inc()
		log.Error("failed to notify admin", sl.Err(err))
	}
	return items, nil
}
