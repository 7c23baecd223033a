package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"

	"signal-relay/realtime"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type createAlertEvent struct {
	Name string `json:"name"`
}

func (h *Handler) registerSocketEvents() {
	h.hub.OnConnect(h.onConnect)
	h.hub.OnDisconnect(h.onDisconnect)

	h.hub.On(realtime.EventLogin, h.onLogin)
	h.hub.On(realtime.EventUpdateNumber, h.onUpdateNumber)
	h.hub.On(realtime.EventCreateAlert, h.onCreateAlert)
	h.hub.On(realtime.EventCreatePair, h.onCreatePair)
	h.hub.On(realtime.EventDeletePair, h.onDeletePair)
}

// onConnect brings a new client up to date.
func (h *Handler) onConnect(ctx context.Context, c *realtime.Client) {
	h.fanout.SendPairs(ctx, c)
	h.fanout.SendCurrentLink(ctx, c)
	c.Emit(realtime.EventCurrentNumber, h.state.Number())
	c.Emit(realtime.EventCurrentSignal, h.state.Signal())
}

func (h *Handler) onDisconnect(c *realtime.Client) {
	if username, ok := h.gate.Disconnect(c.ID); ok {
		slog.Info("User disconnected", "username", username, "client", c.ID)
	}
}

// actor names the user behind a connection for audit logs.
func (h *Handler) actor(c *realtime.Client) string {
	if username, ok := h.gate.Username(c.ID); ok {
		return username
	}
	return "anonymous"
}

func (h *Handler) onLogin(_ context.Context, c *realtime.Client, data json.RawMessage) {
	var req loginRequest
	if err := json.Unmarshal(data, &req); err != nil {
		c.Emit(realtime.EventLoginFailed, map[string]string{"message": "invalid login payload"})
		return
	}

	s, ok := h.gate.Login(c.ID, req.Username, req.Password)
	if !ok {
		slog.Warn("Login failed", "username", req.Username, "client", c.ID)
		c.Emit(realtime.EventLoginFailed, map[string]string{"message": "Wrong username or password."})
		return
	}

	slog.Info("User logged in", "username", req.Username, "client", c.ID)
	c.Emit(realtime.EventLoginSuccess, map[string]any{
		"message":   "Login successful!",
		"token":     s.Token,
		"expiresAt": s.ExpiresAt,
	})
}

func (h *Handler) onUpdateNumber(_ context.Context, c *realtime.Client, data json.RawMessage) {
	n, err := parseNumber(data)
	if err != nil {
		slog.Warn("Invalid number", "client", c.ID, "data", string(data))
		return
	}
	h.state.SetNumber(n)
	h.hub.Broadcast(realtime.EventCurrentNumber, n)
}

func (h *Handler) onCreateAlert(ctx context.Context, c *realtime.Client, data json.RawMessage) {
	var req createAlertEvent
	if err := json.Unmarshal(data, &req); err != nil || req.Name == "" {
		slog.Warn("Invalid create alert event", "client", c.ID, "data", string(data))
		return
	}
	slog.Info("Create alert requested", "client", c.ID, "user", h.actor(c))
	if _, err := h.createAlert(ctx, req.Name); err != nil {
		slog.Error("Error creating alert", "name", req.Name, "error", err)
	}
}

func (h *Handler) onCreatePair(ctx context.Context, c *realtime.Client, data json.RawMessage) {
	var req CreatePairRequest
	if err := json.Unmarshal(data, &req); err != nil ||
		req.NameCB1 == "" || req.NameCB2 == "" || req.LinkBuy == "" || req.LinkSell == "" {
		slog.Warn("Invalid create pair event", "client", c.ID, "data", string(data))
		return
	}
	slog.Info("Create alert pair requested", "client", c.ID, "user", h.actor(c))
	if _, err := h.createPair(ctx, req); err != nil {
		slog.Error("Error creating alert pair", "error", err)
	}
}

func (h *Handler) onDeletePair(ctx context.Context, c *realtime.Client, data json.RawMessage) {
	index, err := parseIndex(data)
	if err != nil {
		slog.Warn("Invalid delete pair event", "client", c.ID, "data", string(data))
		return
	}
	slog.Info("Delete alert pair requested", "client", c.ID, "user", h.actor(c), "index", index)
	if err := h.deletePair(ctx, index); err != nil {
		slog.Warn("Failed to delete alert pair", "index", index, "error", err)
	}
}

// parseIndex accepts a non-negative JSON integer or a quoted one.
func parseIndex(data json.RawMessage) (uint, error) {
	raw := strings.TrimSpace(string(data))
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		raw = strings.TrimSpace(s)
	}
	n, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(n), nil
}

// parseNumber accepts a JSON number or a quoted number.
func parseNumber(data json.RawMessage) (float64, error) {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		return n, nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return 0, err
	}
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}
