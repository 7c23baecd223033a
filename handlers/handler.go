package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"signal-relay/appstate"
	"signal-relay/database"
	"signal-relay/models"
	"signal-relay/realtime"
	"signal-relay/session"
	"signal-relay/signals"
)

// Handler holds the dependencies for HTTP and websocket handlers.
type Handler struct {
	store      *database.Store
	dispatcher *signals.Dispatcher
	fanout     *realtime.Fanout
	hub        *realtime.Hub
	gate       *session.Gate
	state      *appstate.State
	allowReset bool
}

// Deps groups what NewHandler needs.
type Deps struct {
	Store      *database.Store
	Dispatcher *signals.Dispatcher
	Fanout     *realtime.Fanout
	Hub        *realtime.Hub
	Gate       *session.Gate
	State      *appstate.State
	AllowReset bool
}

// NewHandler creates a Handler and registers its websocket events on the hub.
func NewHandler(d Deps) *Handler {
	h := &Handler{
		store:      d.Store,
		dispatcher: d.Dispatcher,
		fanout:     d.Fanout,
		hub:        d.Hub,
		gate:       d.Gate,
		state:      d.State,
		allowReset: d.AllowReset,
	}
	h.registerSocketEvents()
	return h
}

// createAlert is shared by POST /addCanhBao and the taoCanhBao event.
func (h *Handler) createAlert(ctx context.Context, name string) (*models.Alert, error) {
	alert, err := h.store.CreateAlert(ctx, name)
	if err != nil {
		return nil, err
	}
	slog.Info("Alert created", "id", alert.ID, "name", alert.Name)
	h.hub.Broadcast(realtime.EventAlertCreated, alert)
	h.fanout.NotifyPairs(ctx)
	return alert, nil
}

// CreatePairRequest is the body of POST /createCanhBaoAndLink and the
// taoCanhBaoAndLink event.
type CreatePairRequest struct {
	NameCB1  string `json:"nameCB1" binding:"required"`
	NameCB2  string `json:"nameCB2" binding:"required"`
	LinkBuy  string `json:"linkBuy" binding:"required"`
	LinkSell string `json:"linkSell" binding:"required"`
}

func (h *Handler) createPair(ctx context.Context, req CreatePairRequest) (*models.AlertPair, error) {
	pair, err := h.store.CreatePair(ctx, req.NameCB1, req.NameCB2, req.LinkBuy, req.LinkSell)
	if err != nil {
		return nil, err
	}
	slog.Info("Alert pair created", "index", pair.Index, "alert1", req.NameCB1, "alert2", req.NameCB2)
	h.fanout.NotifyPairs(ctx)
	return pair, nil
}

func (h *Handler) deletePair(ctx context.Context, index uint) error {
	if err := h.store.DeletePair(ctx, index); err != nil {
		return err
	}
	slog.Info("Alert pair deleted", "index", index)
	h.hub.Broadcast(realtime.EventPairDeleted, index)
	h.fanout.NotifyPairs(ctx)
	return nil
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, signals.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, database.ErrNotFound), errors.Is(err, signals.ErrNotReady):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the {success, message, error} envelope. Internal
// errors echo their text in the error field.
func respondError(c *gin.Context, err error, message string) {
	status := statusFor(err)
	if message == "" {
		message = err.Error()
	}
	body := gin.H{"success": false, "message": message}
	if status == http.StatusInternalServerError {
		slog.Error(message, "path", c.Request.URL.Path, "error", err)
		body["error"] = err.Error()
	}
	c.JSON(status, body)
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": message})
}
