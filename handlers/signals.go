package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"signal-relay/realtime"
	"signal-relay/signals"
)

// signalQuery holds the query parameters shared by both webhook endpoints.
type signalQuery struct {
	name     string
	message  string
	rawIndex string
}

// parseSignalQuery returns the query or a message naming the missing
// parameter. Every webhook must carry an index; only /new reads it.
func parseSignalQuery(c *gin.Context) (*signalQuery, string) {
	q := &signalQuery{
		name:     c.Query("name"),
		message:  c.Query("message"),
		rawIndex: c.Query("index"),
	}
	for _, p := range []struct{ key, value string }{
		{"name", q.name},
		{"message", q.message},
		{"index", q.rawIndex},
	} {
		if p.value == "" {
			return nil, fmt.Sprintf("Missing %q in the query parameters.", p.key)
		}
	}
	return q, ""
}

// index parses the pair index.
func (q *signalQuery) index() (uint, string) {
	index, err := strconv.ParseUint(q.rawIndex, 10, 32)
	if err != nil {
		return 0, fmt.Sprintf("Invalid \"index\" %q in the query parameters.", q.rawIndex)
	}
	return uint(index), ""
}

// readPayload returns the request body to forward. An empty body is sent
// downstream as an empty JSON object.
func readPayload(c *gin.Context) ([]byte, error) {
	body, err := c.GetRawData()
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return []byte("{}"), nil
	}
	return body, nil
}

// PairSignal handles POST /new
// Query params: name, message, index, astro (optional, "0" sends the
// payload's content field as text), slot (optional, 1 or 2).
func (h *Handler) PairSignal(c *gin.Context) {
	q, problem := parseSignalQuery(c)
	if problem != "" {
		badRequest(c, problem)
		return
	}
	index, problem := q.index()
	if problem != "" {
		badRequest(c, problem)
		return
	}

	slot := 1
	if raw := c.Query("slot"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || (n != 1 && n != 2) {
			badRequest(c, "invalid \"slot\", expected 1 or 2")
			return
		}
		slot = n
	}

	payload, err := readPayload(c)
	if err != nil {
		badRequest(c, "unable to read request body")
		return
	}

	result, err := h.dispatcher.ApplyPairSignal(c.Request.Context(), signals.PairSignal{
		Index:   index,
		Slot:    slot,
		Mode:    q.name,
		Message: q.message,
		Payload: payload,
		Astro:   c.Query("astro") == "0",
	})
	if err != nil {
		respondError(c, err, signalErrorMessage(err, fmt.Sprintf("Alert pair with index %d not found", index)))
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": result.Message, "action": result.Action})
}

// NamedSignal handles POST /
// An "easy" name relays against the trend alert; any other name sets the
// state of the alerts carrying that name.
func (h *Handler) NamedSignal(c *gin.Context) {
	q, problem := parseSignalQuery(c)
	if problem != "" {
		badRequest(c, problem)
		return
	}
	ctx := c.Request.Context()

	if q.name == signals.ModeEasy {
		payload, err := readPayload(c)
		if err != nil {
			badRequest(c, "unable to read request body")
			return
		}
		result, err := h.dispatcher.ApplyTrendSignal(ctx, q.message, payload, c.Query("astro") == "0")
		if err != nil {
			respondError(c, err, signalErrorMessage(err, fmt.Sprintf("Alert with name %s not found", signals.TrendAlertName)))
			return
		}
		message := result.Message
		switch result.Action {
		case signals.ActionBuy:
			message = "Buy signal processed"
		case signals.ActionSell:
			message = "Sell signal processed"
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "message": message, "action": result.Action})
		return
	}

	if _, err := h.dispatcher.ApplyNamedSignal(ctx, q.name, q.message); err != nil {
		respondError(c, err, signalErrorMessage(err, fmt.Sprintf("Alert with name '%s' not found.", q.name)))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": fmt.Sprintf("State for %s sent successfully and updated", q.name),
	})
}

func signalErrorMessage(err error, notFound string) string {
	switch {
	case errors.Is(err, signals.ErrNotReady):
		return signals.ErrNotReady.Error()
	case statusFor(err) == http.StatusNotFound:
		return notFound
	default:
		return "Internal server error"
	}
}

type trendRequest struct {
	Message string `json:"message" binding:"required"`
}

// CurrentSignal handles POST /gtatrend
func (h *Handler) CurrentSignal(c *gin.Context) {
	var req trendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	h.state.SetSignal(req.Message)
	h.hub.Broadcast(realtime.EventCurrentSignal, req.Message)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Message sent successfully"})
}
