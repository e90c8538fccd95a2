package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/guided-traffic/meetup-client/models"
)

// AnnouncementSource reads the public announcement board
type AnnouncementSource interface {
	ListAnnouncements(ctx context.Context, page, size int) (*models.AnnouncementPage, error)
	GetAnnouncement(ctx context.Context, id int64) (*models.Announcement, error)
}

// AnnouncementHandler handles announcement requests
type AnnouncementHandler struct {
	source AnnouncementSource
}

// NewAnnouncementHandler creates a new announcement handler
func NewAnnouncementHandler(source AnnouncementSource) *AnnouncementHandler {
	return &AnnouncementHandler{source: source}
}

// GetAll returns one page of published announcements
// GET /api/v1/announcements
func (h *AnnouncementHandler) GetAll(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "0"))
	if err != nil || page < 0 {
		page = 0
	}
	size, err := strconv.Atoi(c.DefaultQuery("size", "20"))
	if err != nil || size < 1 || size > 100 {
		size = 20
	}

	result, err := h.source.ListAnnouncements(c.Request.Context(), page, size)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetByID returns a single announcement
// GET /api/v1/announcements/:id
func (h *AnnouncementHandler) GetByID(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid announcement ID",
		})
		return
	}

	announcement, err := h.source.GetAnnouncement(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"announcement": announcement,
	})
}
