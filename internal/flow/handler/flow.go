package handler

import (
	"encoding/json"
	"net/http"

	"serveq/internal/flow/service"
	apperrors "serveq/pkg/errors"
	httputil "serveq/pkg/http"
	"serveq/pkg/logger"
	"serveq/pkg/sanitizer"

	"github.com/julienschmidt/httprouter"
)

type FlowHandler struct {
	service service.FlowService
	log     *logger.Logger
}

func NewFlowHandler(service service.FlowService, log *logger.Logger) *FlowHandler {
	return &FlowHandler{
		service: service,
		log:     log,
	}
}

func (h *FlowHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/login", h.Login)
	router.POST("/verify-otp", h.VerifyOtp)
	router.GET("/slots", h.ListSlots)
	router.POST("/book", h.BookSlot)
	router.GET("/queue/position", h.QueryPosition)
}

type loginRequest struct {
	Identity    string `json:"identity"`
	DisplayName string `json:"display_name"`
}

func (h *FlowHandler) Login(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, apperrors.InvalidInput("Invalid request body"))
		return
	}

	result, err := h.service.RequestOtp(r.Context(), req.Identity, req.DisplayName)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, result)
}

type verifyRequest struct {
	Identity string `json:"identity"`
	Code     string `json:"code"`
}

func (h *FlowHandler) VerifyOtp(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, apperrors.InvalidInput("Invalid request body"))
		return
	}

	session, err := h.service.VerifyOtp(r.Context(), req.Identity, req.Code)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, session)
}

func (h *FlowHandler) ListSlots(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	identity := identityFromRequest(r)
	if identity == "" {
		httputil.WriteError(w, apperrors.InvalidInput("X-Identity header is required"))
		return
	}

	date := r.URL.Query().Get("date")
	if date == "" {
		httputil.WriteError(w, apperrors.InvalidInput("date query parameter is required"))
		return
	}

	slots, err := h.service.ListSlots(r.Context(), identity, date)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, slots)
}

type bookRequest struct {
	Identity string `json:"identity"`
	SlotID   string `json:"slot_id"`
}

func (h *FlowHandler) BookSlot(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, apperrors.InvalidInput("Invalid request body"))
		return
	}

	result, err := h.service.BookSlot(r.Context(), req.Identity, req.SlotID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteCreated(w, result)
}

func (h *FlowHandler) QueryPosition(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	identity := identityFromRequest(r)
	if identity == "" {
		httputil.WriteError(w, apperrors.InvalidInput("X-Identity header is required"))
		return
	}

	position, err := h.service.QueryPosition(r.Context(), identity)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, position)
}

func identityFromRequest(r *http.Request) string {
	return sanitizer.NormalizeIdentity(r.Header.Get("X-Identity"))
}
