package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/magabrotheeeer/coupon-service/internal/migrations"
)

// TestDataFactory содержит методы для создания тестовых данных
type TestDataFactory struct {
	storage *Storage
}

// NewTestDataFactory создает новую фабрику тестовых данных
func NewTestDataFactory(storage *Storage) *TestDataFactory {
	return &TestDataFactory{storage: storage}
}

// CreateUser создает тестового пользователя и возвращает его UID
func (f *TestDataFactory) CreateUser(t *testing.T, username string, lifetime bool) string {
	uid := uuid.New().String()
	_, err := f.storage.DB.Exec(`INSERT INTO users (uid, username, email, role, lifetime)
		VALUES ($1, $2, $3, 'user', $4)`,
		uid, username, username+"@example.com", lifetime)
	require.NoError(t, err)
	return uid
}

// CreateCoupon создает тестовый купон и возвращает его id
func (f *TestDataFactory) CreateCoupon(t *testing.T, code string, nbYear int) int {
	var id int
	err := f.storage.DB.QueryRow(`INSERT INTO coupons (code, nb_year) VALUES ($1, $2) RETURNING id`, code, nbYear).Scan(&id)
	require.NoError(t, err)
	return id
}

// CountCouponGrants возвращает число записей coupon_grants для купона
func (f *TestDataFactory) CountCouponGrants(t *testing.T, couponID int) int {
	var n int
	err := f.storage.DB.QueryRow(`SELECT COUNT(*) FROM coupon_grants WHERE coupon_id = $1`, couponID).Scan(&n)
	require.NoError(t, err)
	return n
}

// CreateManualSubscription создает ручную подписку
func (f *TestDataFactory) CreateManualSubscription(t *testing.T, userUID string, endAt, updatedAt time.Time) {
	_, err := f.storage.DB.Exec(`INSERT INTO manual_subscriptions (user_uid, end_at, comment, updated_at)
		VALUES ($1, $2, 'giveaway', $3)`, userUID, endAt, updatedAt)
	require.NoError(t, err)
}

// CreateSubscription создает подписку основного канала
func (f *TestDataFactory) CreateSubscription(t *testing.T, userUID string) {
	_, err := f.storage.DB.Exec(`INSERT INTO subscriptions (user_uid, plan_name, next_bill_date)
		VALUES ($1, 'yearly', NOW() + INTERVAL '1 month')`, userUID)
	require.NoError(t, err)
}

// CreateAppleSubscription создает подписку App Store
func (f *TestDataFactory) CreateAppleSubscription(t *testing.T, userUID string, expiresAt time.Time) {
	_, err := f.storage.DB.Exec(`INSERT INTO apple_subscriptions (user_uid, expires_at) VALUES ($1, $2)`,
		userUID, expiresAt)
	require.NoError(t, err)
}

// CreateCoinbaseSubscription создает подписку Coinbase
func (f *TestDataFactory) CreateCoinbaseSubscription(t *testing.T, userUID string, endAt time.Time) {
	_, err := f.storage.DB.Exec(`INSERT INTO coinbase_subscriptions (user_uid, end_at) VALUES ($1, $2)`,
		userUID, endAt)
	require.NoError(t, err)
}

// setupTestDatabase поднимает PostgreSQL в контейнере и применяет миграции
func setupTestDatabase(t *testing.T) (*Storage, func()) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start container")

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	storage, err := New(connStr)
	require.NoError(t, err, "failed to create storage")

	migrationsPath, err := filepath.Abs("../../../migrations")
	require.NoError(t, err)
	require.NoError(t, migrations.Run(storage.DB, migrationsPath))

	cleanup := func() {
		_ = storage.DB.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}
	return storage, cleanup
}
