package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/coupon-service/internal/http/response"
	"github.com/magabrotheeeer/coupon-service/internal/lib/sl"
)

var limiter = rate.NewLimiter(50, 100)

// RateLimitMiddleware ограничивает общую частоту запросов к сервису.
func RateLimitMiddleware(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				log.Error("too many requests")
				render.Status(r, http.StatusTooManyRequests)
				render.JSON(w, r, response.Error("too many requests"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AttemptLimiter считает попытки пользователя.
type AttemptLimiter interface {
	Allow(ctx context.Context, userUID string) (bool, error)
}

// AttemptLimitMiddleware ограничивает число попыток одного пользователя.
// Должен идти после JWTMiddleware. Ошибка счётчика не блокирует запрос.
func AttemptLimitMiddleware(log *slog.Logger, attempts AttemptLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.AttemptLimitMiddleware"
			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			userUID, _ := r.Context().Value(UserUID).(string)
			allowed, err := attempts.Allow(r.Context(), userUID)
			if err != nil {
				log.Warn("attempt limiter unavailable, request allowed", sl.Err(err))
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				log.Warn("too many coupon attempts", slog.String("user_uid", userUID))
				render.Status(r, http.StatusTooManyRequests)
				render.JSON(w, r, response.Error("too many attempts, try again later"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
