package handler

import (
	"net/http"

	"serveq/internal/notify/service"
	apperrors "serveq/pkg/errors"
	httputil "serveq/pkg/http"
	"serveq/pkg/logger"
	"serveq/pkg/sanitizer"

	"github.com/julienschmidt/httprouter"
)

type NotificationHandler struct {
	service service.NotifyService
	log     *logger.Logger
}

func NewNotificationHandler(service service.NotifyService, log *logger.Logger) *NotificationHandler {
	return &NotificationHandler{
		service: service,
		log:     log,
	}
}

func (h *NotificationHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/notifications", h.List)
	router.POST("/notifications/:id/clear", h.Clear)
}

func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	identity := sanitizer.NormalizeIdentity(r.Header.Get("X-Identity"))
	if identity == "" {
		httputil.WriteError(w, apperrors.InvalidInput("X-Identity header is required"))
		return
	}

	notifications, err := h.service.List(r.Context(), identity)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, notifications)
}

func (h *NotificationHandler) Clear(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := h.service.Clear(r.Context(), ps.ByName("id")); err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteNoContent(w)
}
