package coupon

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/magabrotheeeer/coupon-service/internal/models"
)

// Gate — канал подписки, активность которого запрещает активацию купона.
type Gate string

const (
	// GateLifetime — у пользователя бессрочный доступ.
	GateLifetime Gate = "lifetime"
	// GateSubscription — есть подписка основного платёжного канала.
	GateSubscription Gate = "subscription"
	// GateApple — действующая подписка App Store.
	GateApple Gate = "apple_subscription"
	// GateCoinbase — активная подписка Coinbase.
	GateCoinbase Gate = "coinbase_subscription"
)

// Eligibility — результат проверки права на купон.
type Eligibility struct {
	Eligible bool
	Blocked  []Gate
}

type gate struct {
	name  Gate
	check func(ctx context.Context, user *models.User, now time.Time) (bool, error)
}

func (s *Service) gates() []gate {
	return []gate{
		{GateLifetime, s.lifetimeBlocks},
		{GateSubscription, s.subscriptionBlocks},
		{GateApple, s.appleBlocks},
		{GateCoinbase, s.coinbaseBlocks},
	}
}

// CheckEligibility проверяет все каналы подписки пользователя.
// Купон доступен, только если ни один канал не активен. Состояние не меняется.
// Каналы проверяются параллельно, Blocked сохраняет порядок gates.
func (s *Service) CheckEligibility(ctx context.Context, user *models.User) (Eligibility, error) {
	const op = "coupon.CheckEligibility"
	if user == nil {
		return Eligibility{}, fmt.Errorf("%s: %w", op, ErrNoUser)
	}

	now := s.now()
	gates := s.gates()
	hits := make([]bool, len(gates))

	g, gctx := errgroup.WithContext(ctx)
	for i, gt := range gates {
		g.Go(func() error {
			hit, err := gt.check(gctx, user, now)
			if err != nil {
				return fmt.Errorf("gate %s: %w", gt.name, err)
			}
			hits[i] = hit
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Eligibility{}, fmt.Errorf("%s: %w", op, err)
	}

	var blocked []Gate
	for i, hit := range hits {
		if hit {
			blocked = append(blocked, gates[i].name)
		}
	}

	return Eligibility{Eligible: len(blocked) == 0, Blocked: blocked}, nil
}

func (s *Service) lifetimeBlocks(_ context.Context, user *models.User, _ time.Time) (bool, error) {
	return user.Lifetime, nil
}

func (s *Service) subscriptionBlocks(ctx context.Context, user *models.User, _ time.Time) (bool, error) {
	sub, err := s.store.GetSubscription(ctx, user.UID)
	if err != nil {
		return false, err
	}
	return sub != nil, nil
}

func (s *Service) appleBlocks(ctx context.Context, user *models.User, now time.Time) (bool, error) {
	sub, err := s.store.FindAppleSubscription(ctx, user.UID)
	if err != nil {
		return false, err
	}
	return sub != nil && sub.IsValid(now), nil
}

func (s *Service) coinbaseBlocks(ctx context.Context, user *models.User, now time.Time) (bool, error) {
	sub, err := s.store.FindCoinbaseSubscription(ctx, user.UID)
	if err != nil {
		return false, err
	}
	return sub != nil && sub.IsActive(now), nil
}
