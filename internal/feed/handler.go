package feed

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"talentpulse/internal/common"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type FeedService interface {
	Aggregate(ctx context.Context, userID string) (*Feed, error)
}

type FeedHandler struct {
	service FeedService
	logger  *zap.Logger
}

func NewFeedHandler(service FeedService, logger *zap.Logger) *FeedHandler {
	return &FeedHandler{service: service, logger: logger}
}

func (h *FeedHandler) RegisterRoutes(r *mux.Router, auth mux.MiddlewareFunc) {
	r.Handle("/activity-feed", auth(http.HandlerFunc(h.ActivityFeed))).Methods(http.MethodGet)
}

func (h *FeedHandler) ActivityFeed(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserIDFromContext(r.Context())
	if !ok {
		common.WriteError(w, http.StatusUnauthorized, "authorization required")
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 50 {
			common.WriteError(w, http.StatusBadRequest, "limit must be between 1 and 50")
			return
		}
		limit = n
	}

	feed, err := h.service.Aggregate(r.Context(), userID)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			// client went away
			return
		}
		h.logger.Error("activity feed failed", zap.String("user_id", userID), zap.Error(err))
		status := http.StatusInternalServerError
		if errors.Is(err, common.ErrSourceUnavailable) {
			status = http.StatusServiceUnavailable
		}
		common.WriteError(w, status, "failed to load activities")
		return
	}

	if limit > 0 && len(feed.Activities) > limit {
		feed.Activities = feed.Activities[:limit]
	}
	common.WriteJSON(w, http.StatusOK, feed)
}
