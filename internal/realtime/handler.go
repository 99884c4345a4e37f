package realtime

import (
	"net/http"

	"talentpulse/internal/common"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handler authenticates once, before the upgrade, and then hands the socket
// to the manager. A rejected credential never reaches the upgrade.
type Handler struct {
	manager  *Manager
	secret   []byte
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

func NewHandler(manager *Manager, secret []byte, logger *zap.Logger) *Handler {
	return &Handler{
		manager: manager,
		secret:  secret,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := common.TokenFromRequest(r)
	claims, err := common.ValidToken(h.secret, token)
	if token == "" || err != nil {
		h.logger.Info("realtime auth rejected", zap.String("remote", r.RemoteAddr), zap.Error(err))
		common.WriteError(w, http.StatusUnauthorized, common.ErrAuthRejected.Error())
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		h.logger.Warn("websocket upgrade failed", zap.String("user_id", claims.UserID), zap.Error(err))
		return
	}

	c := h.manager.Register(claims.UserID, ws)
	c.ReadPump()
}
