// Package manual реализует HTTP-обработчик чтения ручной подписки текущего пользователя.
package manual

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
)

// Handler возвращает ручную подписку пользователя.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает чтение ручной подписки.
type Service interface {
	ManualSubscription(ctx context.Context, userUID string) (*models.ManualSubscription, error)
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Текущая ручная подписка
// @Description Возвращает ручную подписку пользователя, выданную по купону или вручную.
// @Tags Subscriptions
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} response.Response "Подписка"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 404 {object} response.ErrorResponse "Подписки нет"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /api/v1/subscriptions/manual [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.manual"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userUID, ok := r.Context().Value(middlewarectx.UserUID).(string)
	if !ok || userUID == "" {
		log.Error("user uid not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	sub, err := h.service.ManualSubscription(r.Context(), userUID)
	if err != nil {
		log.Error("failed to read manual subscription", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal service error"))
		return
	}
	if sub == nil {
		w.WriteHeader(http.StatusNotFound)
		render.JSON(w, r, response.Error("manual subscription not found"))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"subscription": sub,
	}))
}
