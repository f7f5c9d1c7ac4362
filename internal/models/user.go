// Package models содержит доменную модель пользователя и его подписок из разных каналов оплаты.
package models

import "time"

// User представляет зарегистрированного пользователя системы.
type User struct {
	UID      string // Уникальный идентификатор пользователя
	Email    string // Электронная почта
	Username string // Имя пользователя (уникальное)
	Role     string // Роль пользователя, admin или user
	Lifetime bool   // Бессрочный бесплатный доступ
}

// Subscription — подписка основного платёжного канала.
// Для выдачи купона важен только факт её наличия.
type Subscription struct {
	ID        int
	UserUID   string
	PlanName  string
	NextBill  time.Time
	CreatedAt time.Time
}

// AppleSubscription — подписка, оформленная через App Store.
type AppleSubscription struct {
	ID        int
	UserUID   string
	ExpiresAt time.Time
}

// IsValid сообщает, действует ли подписка на момент now.
func (s *AppleSubscription) IsValid(now time.Time) bool {
	return s.ExpiresAt.After(now)
}

// CoinbaseSubscription — подписка, оплаченная через Coinbase.
type CoinbaseSubscription struct {
	ID      int
	UserUID string
	EndAt   time.Time
}

// IsActive сообщает, активна ли подписка на момент now.
func (s *CoinbaseSubscription) IsActive(now time.Time) bool {
	return s.EndAt.After(now)
}

// ManualSubscription — доступ, выданный вручную или по купону, без платёжного провайдера.
// У пользователя не больше одной такой записи.
type ManualSubscription struct {
	ID         int       `json:"id"`
	UserUID    string    `json:"user_uid"`
	EndAt      time.Time `json:"end_at"`
	Comment    string    `json:"comment"`
	IsGiveaway bool      `json:"is_giveaway"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
