package coupon

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/coupon-service/internal/models"
)

// memStore хранит данные в памяти и повторяет условные записи PostgreSQL под мьютексом.
type memStore struct {
	mu       sync.Mutex
	coupons  map[string]*models.Coupon
	subs     map[string]*models.Subscription
	apple    map[string]*models.AppleSubscription
	coinbase map[string]*models.CoinbaseSubscription
	manual   map[string]*models.ManualSubscription
	nextID   int
	grantErr error
	findErr  error
	appleErr error
	writes   int
	granted  []int

	onConsume func()
}

func newMemStore() *memStore {
	return &memStore{
		coupons:  map[string]*models.Coupon{},
		subs:     map[string]*models.Subscription{},
		apple:    map[string]*models.AppleSubscription{},
		coinbase: map[string]*models.CoinbaseSubscription{},
		manual:   map[string]*models.ManualSubscription{},
	}
}

func (m *memStore) addCoupon(code string, nbYear int, used bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.coupons[code] = &models.Coupon{ID: m.nextID, Code: code, NbYear: nbYear, Used: used}
}

func (m *memStore) FindCoupon(_ context.Context, code string) (*models.Coupon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	c, ok := m.coupons[code]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (m *memStore) ConsumeCoupon(_ context.Context, code, userUID string, usedAt time.Time) (*models.Coupon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.coupons[code]
	if !ok || c.Used {
		return nil, nil
	}
	m.writes++
	if m.onConsume != nil {
		m.onConsume()
	}
	c.Used = true
	uid := userUID
	at := usedAt
	c.UsedByUserUID = &uid
	c.UsedAt = &at
	cp := *c
	return &cp, nil
}

func (m *memStore) CreateCoupon(_ context.Context, code string, nbYear int) (*models.Coupon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.coupons[code]; ok {
		return nil, errors.New("duplicate code")
	}
	m.nextID++
	c := &models.Coupon{ID: m.nextID, Code: code, NbYear: nbYear}
	m.coupons[code] = c
	cp := *c
	return &cp, nil
}

func (m *memStore) GetSubscription(_ context.Context, userUID string) (*models.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.subs[userUID], nil
}

func (m *memStore) FindAppleSubscription(_ context.Context, userUID string) (*models.AppleSubscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appleErr != nil {
		return nil, m.appleErr
	}
	return m.apple[userUID], nil
}

func (m *memStore) FindCoinbaseSubscription(_ context.Context, userUID string) (*models.CoinbaseSubscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.coinbase[userUID], nil
}

func (m *memStore) FindManualSubscription(_ context.Context, userUID string) (*models.ManualSubscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.manual[userUID]
	if !ok {
		return nil, nil
	}
	cp := *sub
	return &cp, nil
}

func (m *memStore) GrantManualSubscription(_ context.Context, userUID string, couponID int,
	grant func(existing *models.ManualSubscription) models.ManualSubscription) (*models.ManualSubscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.grantErr != nil {
		return nil, m.grantErr
	}

	var existing *models.ManualSubscription
	if sub, ok := m.manual[userUID]; ok {
		cp := *sub
		existing = &cp
	}
	next := grant(existing)
	if existing == nil {
		m.nextID++
		next.ID = m.nextID
	}
	m.writes++
	m.manual[userUID] = &next
	m.granted = append(m.granted, couponID)
	cp := next
	return &cp, nil
}

func (m *memStore) grantedCoupons() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.granted...)
}

func (m *memStore) writeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, to, subject, body string) error {
	args := m.Called(ctx, to, subject, body)
	return args.Error(0)
}

type MockCache struct {
	mock.Mock
}

func (m *MockCache) Get(key string, result any) (bool, error) {
	args := m.Called(key, result)
	return args.Bool(0), args.Error(1)
}

func (m *MockCache) Set(key string, value any, expiration time.Duration) error {
	args := m.Called(key, value, expiration)
	return args.Error(0)
}

func (m *MockCache) Invalidate(key string) error {
	args := m.Called(key)
	return args.Error(0)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}
