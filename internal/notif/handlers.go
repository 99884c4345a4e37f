package notif

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"talentpulse/internal/common"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const readFailedMessage = "failed to load notifications"

type NotificationHandler struct {
	service *NotificationService
	logger  *zap.Logger
}

func NewNotificationHandler(service *NotificationService, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{service: service, logger: logger}
}

// RegisterRoutes mounts the client pull interface behind auth.
func (h *NotificationHandler) RegisterRoutes(public *mux.Router, auth mux.MiddlewareFunc) {
	api := public.PathPrefix("/notifications").Subrouter()
	api.Use(auth)

	api.HandleFunc("", h.List).Methods(http.MethodGet)
	api.HandleFunc("", h.Purge).Methods(http.MethodDelete)
	api.HandleFunc("/read-all", h.MarkAllRead).Methods(http.MethodPut)
	api.HandleFunc("/read", h.MarkManyRead).Methods(http.MethodPut)
	api.HandleFunc("/stats", h.Stats).Methods(http.MethodGet)
	api.HandleFunc("/settings", h.GetSettings).Methods(http.MethodGet)
	api.HandleFunc("/settings", h.UpdateSettings).Methods(http.MethodPut)
	api.HandleFunc("/{id}/read", h.MarkAsRead).Methods(http.MethodPut)
	api.HandleFunc("/{id}/interaction", h.TrackInteraction).Methods(http.MethodPut)
	api.HandleFunc("/{id}", h.Delete).Methods(http.MethodDelete)
}

// RegisterInternalRoutes mounts collaborator ingest. The router belongs on
// the internal listener, never the client-facing one.
func (h *NotificationHandler) RegisterInternalRoutes(internal *mux.Router, serviceAuth mux.MiddlewareFunc) {
	internal.Handle("/internal/events", serviceAuth(http.HandlerFunc(h.Ingest))).Methods(http.MethodPost)
}

func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserIDFromContext(r.Context())
	if !ok {
		common.WriteError(w, http.StatusUnauthorized, "authorization required")
		return
	}

	q := r.URL.Query()
	filter := common.NotificationFilter{
		UnreadOnly: q.Get("unreadOnly") == "true",
		Type:       common.NotificationType(q.Get("type")),
		Priority:   common.Priority(q.Get("priority")),
		Page:       atoiOrZero(q.Get("page")),
		Limit:      atoiOrZero(q.Get("limit")),
	}
	if filter.Type != "" && !filter.Type.IsValid() {
		common.WriteError(w, http.StatusBadRequest, "unknown notification type")
		return
	}
	if filter.Priority != "" && !filter.Priority.IsValid() {
		common.WriteError(w, http.StatusBadRequest, "unknown priority")
		return
	}

	var grouped *bool
	if v := q.Get("grouped"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			common.WriteError(w, http.StatusBadRequest, "grouped must be true or false")
			return
		}
		grouped = &b
	}

	page, err := h.service.List(r.Context(), userID, filter, grouped)
	if err != nil {
		h.logger.Error("list notifications failed", zap.String("user_id", userID), zap.Error(err))
		common.WriteError(w, http.StatusInternalServerError, readFailedMessage)
		return
	}
	common.WriteJSON(w, http.StatusOK, page)
}

func (h *NotificationHandler) MarkAsRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserIDFromContext(r.Context())
	if !ok {
		common.WriteError(w, http.StatusUnauthorized, "authorization required")
		return
	}
	id := mux.Vars(r)["id"]

	if err := h.service.MarkAsRead(r.Context(), userID, id); err != nil {
		h.writeServiceError(w, userID, "mark read", err)
		return
	}
	common.WriteJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

type markManyRequest struct {
	IDs []string `json:"ids"`
}

func (h *NotificationHandler) MarkManyRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserIDFromContext(r.Context())
	if !ok {
		common.WriteError(w, http.StatusUnauthorized, "authorization required")
		return
	}
	var req markManyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.IDs) == 0 {
		common.WriteError(w, http.StatusBadRequest, "ids are required")
		return
	}

	n, err := h.service.MarkManyRead(r.Context(), userID, req.IDs)
	if err != nil {
		h.writeServiceError(w, userID, "mark many read", err)
		return
	}
	common.WriteJSON(w, http.StatusOK, map[string]interface{}{"success": true, "modified": n})
}

func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserIDFromContext(r.Context())
	if !ok {
		common.WriteError(w, http.StatusUnauthorized, "authorization required")
		return
	}

	n, err := h.service.MarkAllRead(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, userID, "mark all read", err)
		return
	}
	common.WriteJSON(w, http.StatusOK, map[string]interface{}{"success": true, "modified": n})
}

type interactionRequest struct {
	Action string `json:"action"`
}

func (h *NotificationHandler) TrackInteraction(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserIDFromContext(r.Context())
	if !ok {
		common.WriteError(w, http.StatusUnauthorized, "authorization required")
		return
	}
	var req interactionRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			common.WriteError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	if err := h.service.TrackInteraction(r.Context(), userID, mux.Vars(r)["id"], req.Action); err != nil {
		h.writeServiceError(w, userID, "track interaction", err)
		return
	}
	common.WriteJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

func (h *NotificationHandler) Stats(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserIDFromContext(r.Context())
	if !ok {
		common.WriteError(w, http.StatusUnauthorized, "authorization required")
		return
	}
	stats, err := h.service.Stats(r.Context(), userID)
	if err != nil {
		h.logger.Error("notification stats failed", zap.String("user_id", userID), zap.Error(err))
		common.WriteError(w, http.StatusInternalServerError, readFailedMessage)
		return
	}
	common.WriteJSON(w, http.StatusOK, stats)
}

func (h *NotificationHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserIDFromContext(r.Context())
	if !ok {
		common.WriteError(w, http.StatusUnauthorized, "authorization required")
		return
	}
	prefs, err := h.service.Preferences(r.Context(), userID)
	if err != nil {
		h.logger.Error("load preferences failed", zap.String("user_id", userID), zap.Error(err))
		common.WriteError(w, http.StatusInternalServerError, "failed to load settings")
		return
	}
	common.WriteJSON(w, http.StatusOK, prefs)
}

func (h *NotificationHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserIDFromContext(r.Context())
	if !ok {
		common.WriteError(w, http.StatusUnauthorized, "authorization required")
		return
	}
	var prefs common.NotificationPreferences
	if err := json.NewDecoder(r.Body).Decode(&prefs); err != nil {
		common.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	saved, err := h.service.UpdatePreferences(r.Context(), userID, &prefs)
	if err != nil {
		h.writeServiceError(w, userID, "update preferences", err)
		return
	}
	common.WriteJSON(w, http.StatusOK, saved)
}

func (h *NotificationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserIDFromContext(r.Context())
	if !ok {
		common.WriteError(w, http.StatusUnauthorized, "authorization required")
		return
	}
	if err := h.service.Delete(r.Context(), userID, mux.Vars(r)["id"]); err != nil {
		h.writeServiceError(w, userID, "delete", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *NotificationHandler) Purge(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserIDFromContext(r.Context())
	if !ok {
		common.WriteError(w, http.StatusUnauthorized, "authorization required")
		return
	}
	n, err := h.service.Purge(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, userID, "purge", err)
		return
	}
	common.WriteJSON(w, http.StatusOK, map[string]interface{}{"success": true, "deleted": n})
}

// Ingest accepts one domain event from a collaborator.
func (h *NotificationHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	var ev Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		common.WriteError(w, http.StatusBadRequest, "invalid event body")
		return
	}

	if err := h.service.Emit(r.Context(), ev); err != nil {
		h.writeServiceError(w, ev.RecipientID, "ingest", err)
		return
	}
	common.WriteJSON(w, http.StatusAccepted, map[string]interface{}{"accepted": true})
}

func (h *NotificationHandler) writeServiceError(w http.ResponseWriter, userID, op string, err error) {
	switch {
	case errors.Is(err, common.ErrNotFound):
		common.WriteError(w, http.StatusNotFound, "notification not found")
	case errors.Is(err, common.ErrUnknownEventType):
		common.WriteError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, common.ErrInvalidEvent), errors.Is(err, common.ErrInvalidPreferences):
		common.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, common.ErrAuthRejected):
		common.WriteError(w, http.StatusUnauthorized, "authorization required")
	default:
		h.logger.Error("notification request failed",
			zap.String("op", op),
			zap.String("user_id", userID),
			zap.Error(err))
		common.WriteError(w, http.StatusInternalServerError, "request failed")
	}
}

func atoiOrZero(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
