package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/coupon-service/internal/models"
)

// GetSubscription возвращает подписку основного платёжного канала или nil.
func (s *Storage) GetSubscription(ctx context.Context, userUID string) (*models.Subscription, error) {
	const op = "storage.GetSubscription"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query := `SELECT id, user_uid, plan_name, next_bill_date, created_at
			  FROM subscriptions
			  WHERE user_uid = $1
			  ORDER BY id DESC
			  LIMIT 1`
	var sub models.Subscription
	err := s.DB.QueryRowContext(ctx, query, userUID).
		Scan(&sub.ID, &sub.UserUID, &sub.PlanName, &sub.NextBill, &sub.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &sub, nil
}

// FindAppleSubscription возвращает подписку App Store или nil.
func (s *Storage) FindAppleSubscription(ctx context.Context, userUID string) (*models.AppleSubscription, error) {
	const op = "storage.FindAppleSubscription"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query := `SELECT id, user_uid, expires_at FROM apple_subscriptions WHERE user_uid = $1`
	var sub models.AppleSubscription
	err := s.DB.QueryRowContext(ctx, query, userUID).Scan(&sub.ID, &sub.UserUID, &sub.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	sub.ExpiresAt = sub.ExpiresAt.UTC()
	return &sub, nil
}

// FindCoinbaseSubscription возвращает подписку Coinbase или nil.
func (s *Storage) FindCoinbaseSubscription(ctx context.Context, userUID string) (*models.CoinbaseSubscription, error) {
	const op = "storage.FindCoinbaseSubscription"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query := `SELECT id, user_uid, end_at FROM coinbase_subscriptions WHERE user_uid = $1`
	var sub models.CoinbaseSubscription
	err := s.DB.QueryRowContext(ctx, query, userUID).Scan(&sub.ID, &sub.UserUID, &sub.EndAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	sub.EndAt = sub.EndAt.UTC()
	return &sub, nil
}

const manualColumns = `id, user_uid, end_at, comment, is_giveaway, created_at, updated_at`

func scanManual(row rowScanner) (*models.ManualSubscription, error) {
	var m models.ManualSubscription
	if err := row.Scan(&m.ID, &m.UserUID, &m.EndAt, &m.Comment, &m.IsGiveaway, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	m.EndAt = m.EndAt.UTC()
	m.CreatedAt = m.CreatedAt.UTC()
	m.UpdatedAt = m.UpdatedAt.UTC()
	return &m, nil
}

// FindManualSubscription возвращает ручную подписку пользователя или nil.
func (s *Storage) FindManualSubscription(ctx context.Context, userUID string) (*models.ManualSubscription, error) {
	const op = "storage.FindManualSubscription"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query := `SELECT ` + manualColumns + ` FROM manual_subscriptions WHERE user_uid = $1`
	m, err := scanManual(s.DB.QueryRowContext(ctx, query, userUID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return m, nil
}

// GrantManualSubscription блокирует строку ручной подписки пользователя (SELECT ... FOR UPDATE),
// вычисляет новое состояние через grant и сохраняет его в той же транзакции.
// Если строки нет и её параллельно вставил другой запрос, выборка повторяется с блокировкой.
// В той же транзакции купон couponID записывается в coupon_grants как выданный.
func (s *Storage) GrantManualSubscription(ctx context.Context, userUID string, couponID int,
	grant func(existing *models.ManualSubscription) models.ManualSubscription) (*models.ManualSubscription, error) {
	const op = "storage.GrantManualSubscription"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	var result *models.ManualSubscription
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		result, err = upsertManual(ctx, tx, userUID, grant)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO coupon_grants (coupon_id, user_uid, granted_at) VALUES ($1, $2, $3)`,
			couponID, userUID, result.UpdatedAt)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

func upsertManual(ctx context.Context, tx *sql.Tx, userUID string,
	grant func(existing *models.ManualSubscription) models.ManualSubscription) (*models.ManualSubscription, error) {
	for attempt := 0; attempt < 2; attempt++ {
		existing, err := scanManual(tx.QueryRowContext(ctx,
			`SELECT `+manualColumns+` FROM manual_subscriptions WHERE user_uid = $1 FOR UPDATE`, userUID))
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}

		if existing != nil {
			next := grant(existing)
			return scanManual(tx.QueryRowContext(ctx,
				`UPDATE manual_subscriptions
					 SET end_at = $1, comment = $2, is_giveaway = $3, updated_at = $4
					 WHERE id = $5
					 RETURNING `+manualColumns,
				next.EndAt, next.Comment, next.IsGiveaway, next.UpdatedAt, existing.ID))
		}

		next := grant(nil)
		inserted, err := scanManual(tx.QueryRowContext(ctx,
			`INSERT INTO manual_subscriptions (user_uid, end_at, comment, is_giveaway, created_at, updated_at)
				 VALUES ($1, $2, $3, $4, $5, $6)
				 ON CONFLICT (user_uid) DO NOTHING
				 RETURNING `+manualColumns,
			userUID, next.EndAt, next.Comment, next.IsGiveaway, next.CreatedAt, next.UpdatedAt))
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		return inserted, err
	}
	return nil, errors.New("manual subscription changed concurrently")
}
