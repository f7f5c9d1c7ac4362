// Package redeem реализует HTTP-обработчик активации купона.
//
// Handler проверяет, что у пользователя нет другой активной подписки, погашает купон
// через сервис и отвечает сообщением и адресом перехода для клиента.
package redeem

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/coupon-service/internal/http/middlewarectx"
	"github.com/magabrotheeeer/coupon-service/internal/http/response"
	"github.com/magabrotheeeer/coupon-service/internal/lib/sl"
	"github.com/magabrotheeeer/coupon-service/internal/metrics"
	"github.com/magabrotheeeer/coupon-service/internal/models"
	"github.com/magabrotheeeer/coupon-service/internal/services/coupon"
)

const (
	// DashboardPath — страница, куда клиент переходит после активации или отказа.
	DashboardPath = "/dashboard"

	msgIneligible = "You already have another subscription."
	msgUpgraded   = "Your account has been upgraded to Premium, thanks for your support!"
	msgExtended   = "Your current subscription is extended to %s"
	msgInvalid    = "Code *%s* expired or invalid"
)

// Handler обрабатывает запросы на активацию купона.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает бизнес-логику активации купона.
type Service interface {
	CheckEligibility(ctx context.Context, user *models.User) (coupon.Eligibility, error)
	Redeem(ctx context.Context, code string, user *models.User) (models.Redemption, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Активировать купон
// @Description Погашает купон и продлевает или создаёт ручную подписку текущего пользователя.
// @Tags Coupons
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param request body models.RedeemRequest true "Код купона"
// @Success 200 {object} response.Response "Купон активирован"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 409 {object} response.ErrorResponse "У пользователя есть другая подписка"
// @Failure 422 {object} response.ErrorResponse "Код не найден, использован или пуст"
// @Failure 429 {object} response.ErrorResponse "Слишком много попыток"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /api/v1/coupon [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.coupon.redeem"
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
	log = log.With(slog.String("user_uid", user.UID))

	eligibility, err := h.service.CheckEligibility(r.Context(), user)
	if err != nil {
		log.Error("failed to check eligibility", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal service error"))
		return
	}
	if !eligibility.Eligible {
		log.Info("user is not eligible for coupon", slog.Any("blocked_by", eligibility.Blocked))
		for _, g := range eligibility.Blocked {
			metrics.IneligibleRequests.WithLabelValues(string(g)).Inc()
		}
		w.WriteHeader(http.StatusConflict)
		render.JSON(w, r, response.ErrorWithRedirect(msgIneligible, DashboardPath))
		return
	}

	var req models.RedeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	req.Code = strings.TrimSpace(req.Code)

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	res, err := h.service.Redeem(r.Context(), req.Code, user)
	if err != nil {
		log.Error("failed to redeem coupon", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal service error"))
		return
	}

	if res.Outcome != models.OutcomeSuccess {
		log.Info("coupon code rejected")
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.Error(fmt.Sprintf(msgInvalid, req.Code)))
		return
	}

	message := msgUpgraded
	if res.WasExtension {
		message = fmt.Sprintf(msgExtended, res.EndAt.Format(time.DateOnly))
	}
	log.Info("coupon redeemed", slog.Time("end_at", res.EndAt), slog.Bool("extension", res.WasExtension))
	render.JSON(w, r, response.Success(message, DashboardPath, map[string]any{
		"end_at": res.EndAt,
	}))
}
