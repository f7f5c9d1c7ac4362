package models

import "time"

// Coupon — одноразовый код, дающий NbYear лет доступа.
type Coupon struct {
	ID            int        `json:"id"`
	Code          string     `json:"code"`
	Used          bool       `json:"used"`
	UsedByUserUID *string    `json:"used_by_user_uid,omitempty"`
	UsedAt        *time.Time `json:"used_at,omitempty"`
	NbYear        int        `json:"nb_year"`
	CreatedAt     time.Time  `json:"created_at"`
}

// DummyCoupon используется для приёма данных нового купона из JSON-запроса.
// Если Code пустой, код генерируется сервером.
type DummyCoupon struct {
	Code   string `json:"code,omitempty" validate:"omitempty,max=128"`
	NbYear int    `json:"nb_year" validate:"required,gt=0,lte=100"`
}

// RedeemRequest — тело запроса на активацию купона.
type RedeemRequest struct {
	Code string `json:"code" validate:"required"`
}

// Outcome — итог попытки активации купона.
type Outcome int

const (
	// OutcomeInvalid — код не найден или уже использован. Это штатный исход, а не ошибка.
	OutcomeInvalid Outcome = iota
	// OutcomeSuccess — купон погашен, подписка продлена или создана.
	OutcomeSuccess
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	default:
		return "invalid"
	}
}

// Redemption описывает результат активации.
// EndAt и WasExtension заполнены только при OutcomeSuccess.
type Redemption struct {
	Outcome      Outcome
	EndAt        time.Time
	WasExtension bool
}

// UngrantedRedemption — купон погашен, но ручная подписка после этого не обновлялась.
type UngrantedRedemption struct {
	CouponID int       `json:"coupon_id"`
	Code     string    `json:"code"`
	UserUID  string    `json:"user_uid"`
	Email    string    `json:"email"`
	UsedAt   time.Time `json:"used_at"`
}
