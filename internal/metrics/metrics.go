// Package metrics объявляет метрики Prometheus, которые отдаются на /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Redemptions считает попытки активации купона по исходу: success, invalid, error.
	Redemptions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "coupon_service",
		Name:      "redemptions_total",
		Help:      "Coupon redemption attempts by outcome.",
	}, []string{"outcome"})

	// IneligibleRequests считает запросы активации купона, отклонённые из-за другой активной подписки, по каналу.
	// Проверка права без активации (GET /coupon/eligibility) сюда не попадает.
	IneligibleRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "coupon_service",
		Name:      "ineligible_total",
		Help:      "Coupon redemption requests rejected because an existing subscription channel is active.",
	}, []string{"gate"})

	// NotificationFailures считает уведомления администратору, которые не удалось опубликовать.
	NotificationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "coupon_service",
		Name:      "notification_failures_total",
		Help:      "Admin notifications that could not be published.",
	})

	// UngrantedRedemptions — сколько погашенных купонов без выданной подписки нашла последняя проверка.
	UngrantedRedemptions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "coupon_service",
		Name:      "ungranted_redemptions",
		Help:      "Consumed coupons without a matching manual subscription grant, as of the last reconciliation run.",
	})
)
