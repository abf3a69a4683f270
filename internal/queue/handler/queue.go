package handler

import (
	"net/http"

	"serveq/internal/queue/service"
	apperrors "serveq/pkg/errors"
	httputil "serveq/pkg/http"
	"serveq/pkg/logger"
	"serveq/pkg/sealer"

	"github.com/julienschmidt/httprouter"
)

// QueueHandler exposes queue tracking keyed by the opaque reservation
// reference handed out at booking time. The reference is a sealed token,
// so callers cannot enumerate or guess other reservations.
type QueueHandler struct {
	service service.QueueService
	log     *logger.Logger
}

func NewQueueHandler(service service.QueueService, log *logger.Logger) *QueueHandler {
	return &QueueHandler{
		service: service,
		log:     log,
	}
}

func (h *QueueHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/reservations/:token/position", h.Position)
	router.POST("/reservations/:token/served", h.MarkServed)
}

func (h *QueueHandler) Position(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	_, reservationID, err := sealer.ParseReservationToken(ps.ByName("token"))
	if err != nil {
		httputil.WriteError(w, apperrors.NotFound("Reservation"))
		return
	}

	position, err := h.service.Position(r.Context(), reservationID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, position)
}

func (h *QueueHandler) MarkServed(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	_, reservationID, err := sealer.ParseReservationToken(ps.ByName("token"))
	if err != nil {
		httputil.WriteError(w, apperrors.NotFound("Reservation"))
		return
	}

	if err := h.service.MarkServed(r.Context(), reservationID); err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteNoContent(w)
}
