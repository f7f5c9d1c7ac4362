// Package storage содержит ошибки, общие для реализаций хранилища.
package storage

import "errors"

var (
	// ErrNotFound — запись не найдена.
	ErrNotFound = errors.New("record not found")
	// ErrCouponExists — купон с таким кодом уже есть.
	ErrCouponExists = errors.New("coupon code already exists")
)
