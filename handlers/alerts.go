package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"signal-relay/database"
)

type addAlertRequest struct {
	Name string `json:"name" binding:"required"`
}

// AddAlert handles POST /addCanhBao
func (h *Handler) AddAlert(c *gin.Context) {
	var req addAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	alert, err := h.createAlert(c.Request.Context(), req.Name)
	if err != nil {
		respondError(c, err, "Error adding alert")
		return
	}
	c.JSON(http.StatusCreated, alert)
}

// CreatePair handles POST /createCanhBaoAndLink
func (h *Handler) CreatePair(c *gin.Context) {
	var req CreatePairRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	pair, err := h.createPair(c.Request.Context(), req)
	if err != nil {
		respondError(c, err, "Error adding alert pair")
		return
	}
	c.JSON(http.StatusCreated, pair)
}

type addLinkRequest struct {
	Name     string `json:"name"`
	LinkBuy  string `json:"linkBuy" binding:"required"`
	LinkSell string `json:"linkSell" binding:"required"`
}

// AddLink handles POST /addLink
func (h *Handler) AddLink(c *gin.Context) {
	var req addLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	link, err := h.store.CreateLink(c.Request.Context(), req.Name, req.LinkBuy, req.LinkSell)
	if err != nil {
		respondError(c, err, "Error adding link")
		return
	}
	slog.Info("Link created", "id", link.ID, "name", link.Name)
	c.JSON(http.StatusCreated, link)
}

// DeletePair handles DELETE /CanhBaoAndLink/:index
func (h *Handler) DeletePair(c *gin.Context) {
	index, err := strconv.ParseUint(c.Param("index"), 10, 32)
	if err != nil {
		badRequest(c, "invalid index")
		return
	}

	if err := h.deletePair(c.Request.Context(), uint(index)); err != nil {
		respondError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": fmt.Sprintf("Alert pair %d deleted", index)})
}

// DeleteAllPairs handles GET /CanhBaoAndLinkDeleteAll
func (h *Handler) DeleteAllPairs(c *gin.Context) {
	ctx := c.Request.Context()
	rows, err := h.store.DeleteAllPairs(ctx)
	if err != nil {
		respondError(c, err, "Error deleting alert pairs")
		return
	}
	slog.Info("Alert pairs deleted", "rows", rows)
	h.fanout.NotifyPairs(ctx)

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"message":     fmt.Sprintf("Deleted %d alert pairs", rows),
		"rowsDeleted": rows,
	})
}

type pairIDRequest struct {
	ID uint `json:"id" binding:"required"`
}

// ResetState handles POST /resetState
func (h *Handler) ResetState(c *gin.Context) {
	var req pairIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	pair, err := h.dispatcher.ResetPair(c.Request.Context(), req.ID)
	if err != nil {
		respondError(c, err, "Error resetting state")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "State reset successfully", "data": pair})
}

type updateLinkRequest struct {
	ID       uint   `json:"id" binding:"required"`
	LinkBuy  string `json:"linkBuy" binding:"required"`
	LinkSell string `json:"linkSell" binding:"required"`
}

// UpdateLink handles POST /updateLink
func (h *Handler) UpdateLink(c *gin.Context) {
	var req updateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	pair, err := h.store.UpdatePairLink(ctx, req.ID, req.LinkBuy, req.LinkSell)
	if err != nil {
		respondError(c, err, "Error updating link")
		return
	}
	slog.Info("Link updated", "index", req.ID, "linkBuy", req.LinkBuy, "linkSell", req.LinkSell)
	h.fanout.NotifyPairs(ctx)

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Link updated successfully", "data": pair})
}

// GetPairs handles GET /allCanhBaoAndLink and GET /allCanhBaoUpdateds
func (h *Handler) GetPairs(c *gin.Context) {
	pairs, err := h.store.ListPairs(c.Request.Context())
	if err != nil {
		respondError(c, err, "Error fetching alert pairs")
		return
	}
	c.JSON(http.StatusOK, pairs)
}

// GetPairRows handles GET /allCanhBaoAndLinkBT
func (h *Handler) GetPairRows(c *gin.Context) {
	pairs, err := h.store.ListPairRows(c.Request.Context())
	if err != nil {
		respondError(c, err, "Error fetching alert pairs")
		return
	}
	c.JSON(http.StatusOK, pairs)
}

// GetLinks handles GET /allLinks
func (h *Handler) GetLinks(c *gin.Context) {
	links, err := h.store.ListLinks(c.Request.Context())
	if err != nil {
		respondError(c, err, "Error fetching links")
		return
	}
	c.JSON(http.StatusOK, links)
}

// GetAlerts handles GET /allCanhBaos
func (h *Handler) GetAlerts(c *gin.Context) {
	alerts, err := h.store.ListAlerts(c.Request.Context())
	if err != nil {
		respondError(c, err, "Error fetching alerts")
		return
	}
	c.JSON(http.StatusOK, alerts)
}

// GetVariables handles GET /allVariables. There is no variable table.
func (h *Handler) GetVariables(c *gin.Context) {
	c.JSON(http.StatusNotImplemented, gin.H{"success": false, "message": "Not implemented: Variable functionality"})
}

// ResetDatabase handles GET /deleteAll: drops and recreates every table.
func (h *Handler) ResetDatabase(c *gin.Context) {
	if !h.allowReset {
		c.JSON(http.StatusForbidden, gin.H{"success": false, "message": "database reset is disabled"})
		return
	}

	ctx := c.Request.Context()
	if err := database.ResetSchema(h.store.DB().WithContext(ctx)); err != nil {
		respondError(c, err, "Error resetting database")
		return
	}
	slog.Warn("Database schema reset")
	h.fanout.NotifyPairs(ctx)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "force true"})
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"clients":  h.hub.Len(),
		"sessions": h.gate.Len(),
	})
}

// GetSession handles GET /session?token=...
// It lets a reloaded client check whether its login token is still live.
func (h *Handler) GetSession(c *gin.Context) {
	s, ok := h.gate.Lookup(c.Query("token"))
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "session expired or unknown"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "username": s.Username, "expiresAt": s.ExpiresAt})
}
