package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/magabrotheeeer/coupon-service/internal/models"
	"github.com/magabrotheeeer/coupon-service/internal/storage"
)

const couponColumns = `id, code, used, used_by_user_uid, used_at, nb_year, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCoupon(row rowScanner) (*models.Coupon, error) {
	var c models.Coupon
	var usedBy sql.NullString
	var usedAt sql.NullTime
	if err := row.Scan(&c.ID, &c.Code, &c.Used, &usedBy, &usedAt, &c.NbYear, &c.CreatedAt); err != nil {
		return nil, err
	}
	if usedBy.Valid {
		c.UsedByUserUID = &usedBy.String
	}
	if usedAt.Valid {
		t := usedAt.Time.UTC()
		c.UsedAt = &t
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return &c, nil
}

// FindCoupon возвращает купон по точному коду или nil, если такого кода нет.
func (s *Storage) FindCoupon(ctx context.Context, code string) (*models.Coupon, error) {
	const op = "storage.FindCoupon"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query := `SELECT ` + couponColumns + ` FROM coupons WHERE code = $1`
	c, err := scanCoupon(s.DB.QueryRowContext(ctx, query, code))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return c, nil
}

// ConsumeCoupon помечает купон использованным, только если он ещё не использован.
// Условие used = false в UPDATE гарантирует, что из конкурентных запросов строку получит ровно один.
// Возвращает nil, если купона нет или он уже погашен.
func (s *Storage) ConsumeCoupon(ctx context.Context, code, userUID string, usedAt time.Time) (*models.Coupon, error) {
	const op = "storage.ConsumeCoupon"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query := `UPDATE coupons
			  SET used = true, used_by_user_uid = $1, used_at = $2
			  WHERE code = $3 AND used = false
			  RETURNING ` + couponColumns
	c, err := scanCoupon(s.DB.QueryRowContext(ctx, query, userUID, usedAt, code))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return c, nil
}

// CreateCoupon сохраняет новый неиспользованный купон.
func (s *Storage) CreateCoupon(ctx context.Context, code string, nbYear int) (*models.Coupon, error) {
	const op = "storage.CreateCoupon"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query := `INSERT INTO coupons (code, nb_year)
			  VALUES ($1, $2)
			  RETURNING ` + couponColumns
	c, err := scanCoupon(s.DB.QueryRowContext(ctx, query, code, nbYear))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrCouponExists)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return c, nil
}

// FindUngrantedRedemptions находит купоны, погашенные раньше before, для которых
// нет записи в coupon_grants, то есть ручная подписка по ним так и не была выдана.
func (s *Storage) FindUngrantedRedemptions(ctx context.Context, before time.Time) ([]*models.UngrantedRedemption, error) {
	const op = "storage.FindUngrantedRedemptions"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query := `SELECT c.id, c.code, c.used_by_user_uid, u.email, c.used_at
			  FROM coupons c
			  JOIN users u ON u.uid = c.used_by_user_uid
			  LEFT JOIN coupon_grants g ON g.coupon_id = c.id
			  WHERE c.used = true
			    AND c.used_at < $1
			    AND g.coupon_id IS NULL
			  ORDER BY c.used_at`
	rows, err := s.DB.QueryContext(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.UngrantedRedemption
	for rows.Next() {
		var item models.UngrantedRedemption
		if err := rows.Scan(&item.CouponID, &item.Code, &item.UserUID, &item.Email, &item.UsedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		item.UsedAt = item.UsedAt.UTC()
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
