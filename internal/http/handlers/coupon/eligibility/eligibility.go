// Package eligibility реализует HTTP-обработчик проверки права на активацию купона.
package eligibility

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/coupon-service/internal/http/middlewarectx"
	"github.com/magabrotheeeer/coupon-service/internal/http/response"
	"github.com/magabrotheeeer/coupon-service/internal/lib/sl"
	"github.com/magabrotheeeer/coupon-service/internal/models"
	"github.com/magabrotheeeer/coupon-service/internal/services/coupon"
)

// Handler отвечает, может ли пользователь активировать купон.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает проверку права на купон.
type Service interface {
	CheckEligibility(ctx context.Context, user *models.User) (coupon.Eligibility, error)
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Проверить право на купон
// @Description Возвращает eligible=false и список каналов, в которых у пользователя есть подписка.
// @Tags Coupons
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} response.Response "Результат проверки"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /api/v1/coupon/eligibility [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.coupon.eligibility"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	user, ok := middlewarectx.UserFromContext(r.Context())
	if !ok {
		log.Error("user not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	res, err := h.service.CheckEligibility(r.Context(), user)
	if err != nil {
		log.Error("failed to check eligibility", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal service error"))
		return
	}

	blocked := make([]string, 0, len(res.Blocked))
	for _, g := range res.Blocked {
		blocked = append(blocked, string(g))
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"eligible":   res.Eligible,
		"blocked_by": blocked,
	}))
}
