package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/guided-traffic/meetup-client/services"
)

// BadgeSync is the badge surface of the sync coordinator
type BadgeSync interface {
	Badges(ctx context.Context) (*services.BadgeList, error)
	UpdateAll(ctx context.Context) error
	UpdateBadge(ctx context.Context, badgeCode string) error
}

// BadgeHandler handles badge requests
type BadgeHandler struct {
	sync BadgeSync
}

// NewBadgeHandler creates a new badge handler
func NewBadgeHandler(sync BadgeSync) *BadgeHandler {
	return &BadgeHandler{sync: sync}
}

// GetAll returns the badge list, stale while a refetch runs
// GET /api/v1/badges
func (h *BadgeHandler) GetAll(c *gin.Context) {
	list, err := h.sync.Badges(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	// a failed refetch behind cached data answers 200 with list.Error set
	c.JSON(http.StatusOK, list)
}

// UpdateAll triggers recomputation of every badge
// POST /api/v1/badges/update-all
func (h *BadgeHandler) UpdateAll(c *gin.Context) {
	if err := h.sync.UpdateAll(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"refreshing": true,
	})
}

// Update triggers recomputation of one badge
// POST /api/v1/badges/:code/update
func (h *BadgeHandler) Update(c *gin.Context) {
	code := strings.TrimSpace(c.Param("code"))
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Badge code is required",
		})
		return
	}

	if err := h.sync.UpdateBadge(c.Request.Context(), code); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"badgeCode":  code,
		"refreshing": true,
	})
}
