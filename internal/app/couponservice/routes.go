// Package couponservice собирает HTTP-сервис активации купонов.
package couponservice

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	// Регистрация swagger-спецификации для /docs.
	_ "github.com/magabrotheeeer/coupon-service/docs"
	"github.com/magabrotheeeer/coupon-service/internal/http/handlers/admin/couponcreate"
	"github.com/magabrotheeeer/coupon-service/internal/http/handlers/coupon/eligibility"
	"github.com/magabrotheeeer/coupon-service/internal/http/handlers/coupon/redeem"
	"github.com/magabrotheeeer/coupon-service/internal/http/handlers/health"
	"github.com/magabrotheeeer/coupon-service/internal/http/handlers/subscription/manual"
	"github.com/magabrotheeeer/coupon-service/internal/http/middlewarectx"
	"github.com/magabrotheeeer/coupon-service/internal/services/coupon"
)

// AdminRole — роль, которой разрешён выпуск купонов.
const AdminRole = "admin"

// Deps — зависимости, необходимые маршрутам.
type Deps struct {
	Coupons  *coupon.Service
	Tokens   middlewarectx.TokenParser
	Users    middlewarectx.UserProvider
	Attempts middlewarectx.AttemptLimiter
	Checkers map[string]health.Checker
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, deps Deps) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
		middlewarectx.RateLimitMiddleware(logger),
	)

	r.Get("/health", health.New(logger, deps.Checkers).ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/docs/*", httpSwagger.WrapHandler)

	r.Route("/api/v1", func(r chi.Router) {
		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(deps.Tokens, logger))
			r.Use(middlewarectx.LoadUserMiddleware(logger, deps.Users))

			r.Get("/coupon/eligibility", eligibility.New(logger, deps.Coupons).ServeHTTP)
			r.With(middlewarectx.AttemptLimitMiddleware(logger, deps.Attempts)).
				Post("/coupon", redeem.New(logger, deps.Coupons).ServeHTTP)
			r.Get("/subscriptions/manual", manual.New(logger, deps.Coupons).ServeHTTP)

			r.Group(func(r chi.Router) {
				r.Use(middlewarectx.RequireRole(logger, AdminRole))
				r.Post("/admin/coupons", couponcreate.New(logger, deps.Coupons).ServeHTTP)
			})
		})
	})
}
