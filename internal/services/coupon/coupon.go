// Package coupon содержит бизнес-логику активации купонов: проверку права на купон,
// однократное погашение кода и продление ручной подписки пользователя.
package coupon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/coupon-service/internal/lib/sl"
	"github.com/magabrotheeeer/coupon-service/internal/lib/years"
	"github.com/magabrotheeeer/coupon-service/internal/metrics"
	"github.com/magabrotheeeer/coupon-service/internal/models"
)

// CouponComment — комментарий ручной подписки, созданной по купону.
const CouponComment = "using coupon code"

const manualSubscriptionTTL = time.Hour

// NotifyTimeout ограничивает время публикации уведомления администратору.
const NotifyTimeout = 5 * time.Second

// ErrNoUser возвращается, если пользователь не передан.
var ErrNoUser = errors.New("user is required")

// Store описывает хранилище, с которым работает сервис купонов.
type Store interface {
	// FindCoupon возвращает купон по точному коду или nil, если его нет.
	FindCoupon(ctx context.Context, code string) (*models.Coupon, error)
	// ConsumeCoupon условно помечает купон использованным (used=false -> true).
	// Возвращает nil, если купон отсутствует или уже погашен, в том числе конкурентным запросом.
	ConsumeCoupon(ctx context.Context, code, userUID string, usedAt time.Time) (*models.Coupon, error)
	// CreateCoupon сохраняет новый купон.
	CreateCoupon(ctx context.Context, code string, nbYear int) (*models.Coupon, error)
	// GetSubscription возвращает подписку основного канала или nil.
	GetSubscription(ctx context.Context, userUID string) (*models.Subscription, error)
	// FindAppleSubscription возвращает подписку App Store или nil.
	FindAppleSubscription(ctx context.Context, userUID string) (*models.AppleSubscription, error)
	// FindCoinbaseSubscription возвращает подписку Coinbase или nil.
	FindCoinbaseSubscription(ctx context.Context, userUID string) (*models.CoinbaseSubscription, error)
	// FindManualSubscription возвращает ручную подписку или nil.
	FindManualSubscription(ctx context.Context, userUID string) (*models.ManualSubscription, error)
	// GrantManualSubscription в одной транзакции блокирует ручную подписку пользователя,
	// передаёт её (или nil) в grant, сохраняет результат и отмечает купон couponID как выданный.
	GrantManualSubscription(ctx context.Context, userUID string, couponID int,
		grant func(existing *models.ManualSubscription) models.ManualSubscription) (*models.ManualSubscription, error)
}

// Notifier отправляет уведомление администратору.
type Notifier interface {
	Notify(ctx context.Context, to, subject, body string) error
}

// Cache описывает методы для кэширования данных.
type Cache interface {
	Get(key string, result any) (bool, error)
	Set(key string, value any, expiration time.Duration) error
	Invalidate(key string) error
}

// Service реализует активацию купонов.
type Service struct {
	store      Store
	notifier   Notifier
	cache      Cache
	log        *slog.Logger
	adminEmail string
	now        func() time.Time
}

// NewService создает новый экземпляр Service.
func NewService(store Store, notifier Notifier, cache Cache, log *slog.Logger, adminEmail string) *Service {
	return &Service{
		store:      store,
		notifier:   notifier,
		cache:      cache,
		log:        log,
		adminEmail: adminEmail,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock подменяет источник текущего времени.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Redeem погашает купон code для пользователя и продлевает или создаёт его ручную подписку.
// Вызывающий обязан заранее проверить CheckEligibility.
// Неизвестный или использованный код даёт OutcomeInvalid без ошибки и без изменений.
func (s *Service) Redeem(ctx context.Context, code string, user *models.User) (models.Redemption, error) {
	const op = "coupon.Redeem"
	if user == nil {
		return models.Redemption{}, fmt.Errorf("%s: %w", op, ErrNoUser)
	}
	log := s.log.With(slog.String("op", op), slog.String("user_uid", user.UID))

	found, err := s.store.FindCoupon(ctx, code)
	if err != nil {
		metrics.Redemptions.WithLabelValues("error").Inc()
		return models.Redemption{}, fmt.Errorf("%s: %w", op, err)
	}
	if found == nil || found.Used {
		log.Info("coupon is missing or already used")
		metrics.Redemptions.WithLabelValues(models.OutcomeInvalid.String()).Inc()
		return models.Redemption{Outcome: models.OutcomeInvalid}, nil
	}

	now := s.now()
	consumed, err := s.store.ConsumeCoupon(ctx, code, user.UID, now)
	if err != nil {
		metrics.Redemptions.WithLabelValues("error").Inc()
		return models.Redemption{}, fmt.Errorf("%s: %w", op, err)
	}
	if consumed == nil {
		log.Info("coupon was consumed by a concurrent request")
		metrics.Redemptions.WithLabelValues(models.OutcomeInvalid.String()).Inc()
		return models.Redemption{Outcome: models.OutcomeInvalid}, nil
	}
	log.Info("coupon consumed", slog.Int("coupon_id", consumed.ID))

	var wasExtension bool
	sub, err := s.store.GrantManualSubscription(ctx, user.UID, consumed.ID, func(existing *models.ManualSubscription) models.ManualSubscription {
		var next models.ManualSubscription
		next, wasExtension = Extend(existing, user.UID, consumed.NbYear, now)
		return next
	})
	if err != nil {
		log.Error("coupon consumed but subscription was not granted", slog.Int("coupon_id", consumed.ID), sl.Err(err))
		metrics.Redemptions.WithLabelValues("error").Inc()
		return models.Redemption{}, fmt.Errorf("%s: %w", op, err)
	}
	log.Info("manual subscription granted", slog.Time("end_at", sub.EndAt), slog.Bool("extension", wasExtension))
	metrics.Redemptions.WithLabelValues(models.OutcomeSuccess.String()).Inc()

	if err := s.cache.Invalidate(manualSubscriptionKey(user.UID)); err != nil {
		log.Warn("failed to invalidate manual subscription cache", sl.Err(err))
	}

	s.notifyAdmin(ctx, log, user, consumed, sub)

	return models.Redemption{
		Outcome:      models.OutcomeSuccess,
		EndAt:        sub.EndAt,
		WasExtension: wasExtension,
	}, nil
}

// Extend вычисляет новое состояние ручной подписки после погашения купона на nbYear лет.
// Действующая подписка продлевается от текущего конца, истёкшая или отсутствующая
// начинается заново от now с запасом в один день. Второй результат сообщает,
// существовала ли подписка раньше.
func Extend(existing *models.ManualSubscription, userUID string, nbYear int, now time.Time) (models.ManualSubscription, bool) {
	if existing == nil {
		return models.ManualSubscription{
			UserUID:    userUID,
			EndAt:      years.GrantFrom(now, nbYear),
			Comment:    CouponComment,
			IsGiveaway: false,
			CreatedAt:  now,
			UpdatedAt:  now,
		}, false
	}

	next := *existing
	next.UpdatedAt = now
	if existing.EndAt.After(now) {
		next.EndAt = years.AddYears(existing.EndAt, nbYear)
	} else {
		next.EndAt = years.GrantFrom(now, nbYear)
	}
	return next, true
}

func (s *Service) notifyAdmin(ctx context.Context, log *slog.Logger, user *models.User,
	c *models.Coupon, sub *models.ManualSubscription) {
	subject := fmt.Sprintf("User %s applies the coupon", user.Email)
	body := fmt.Sprintf("User: %s (%s)\nCoupon: %s\nYears: %d\nSubscription ends at: %s\n",
		user.Email, user.UID, c.Code, c.NbYear, sub.EndAt.Format(time.RFC3339))

	// Купон уже погашен, поэтому отмена запроса клиентом не должна срывать уведомление.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), NotifyTimeout)
	defer cancel()

	if err := s.notifier.Notify(ctx, s.adminEmail, subject, body); err != nil {
		metrics.NotificationFailures.Inc()
		log.Warn("failed to notify admin", sl.Err(err))
	}
}

// CreateCoupon выпускает новый купон на nbYear лет. Пустой code заменяется сгенерированным.
func (s *Service) CreateCoupon(ctx context.Context, req models.DummyCoupon) (*models.Coupon, error) {
	const op = "coupon.CreateCoupon"
	code := strings.TrimSpace(req.Code)
	if code == "" {
		code = strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	}

	c, err := s.store.CreateCoupon(ctx, code, req.NbYear)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("coupon created", slog.Int("id", c.ID), slog.Int("nb_year", c.NbYear))
	return c, nil
}

// ManualSubscription возвращает ручную подписку пользователя, используя кеш или хранилище.
func (s *Service) ManualSubscription(ctx context.Context, userUID string) (*models.ManualSubscription, error) {
	const op = "coupon.ManualSubscription"
	var result *models.ManualSubscription
	cacheKey := manualSubscriptionKey(userUID)
	found, err := s.cache.Get(cacheKey, &result)
	if err != nil {
		s.log.Warn("failed to read from cache", slog.String("key", cacheKey), sl.Err(err))
	}
	if found && result != nil {
		return result, nil
	}

	result, err = s.store.FindManualSubscription(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if result != nil {
		if err := s.cache.Set(cacheKey, result, manualSubscriptionTTL); err != nil {
			s.log.Warn("failed to add to cache", slog.String("key", cacheKey), sl.Err(err))
		}
	}
	return result, nil
}

func manualSubscriptionKey(userUID string) string {
	return "manual_subscription:" + userUID
}
