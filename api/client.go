package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/guided-traffic/meetup-client/models"
)

// StatusError is returned when the server answers with a non-2xx status
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s returned status %d", e.Method, e.Path, e.StatusCode)
}

// Client talks to the meetup REST API
type Client struct {
	baseURL     string
	accessToken string
	userID      string
	httpClient  *http.Client
	timeout     time.Duration
}

// NewClient creates a client. timeout bounds every request on top of the
// caller's context.
func NewClient(baseURL, accessToken, userID string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		accessToken: accessToken,
		userID:      userID,
		httpClient:  &http.Client{},
		timeout:     timeout,
	}
}

// UserID returns the id sent as X-User-Id
func (c *Client) UserID() string {
	return c.userID
}

// GetBadges fetches the badge records of the current user
func (c *Client) GetBadges(ctx context.Context) ([]models.ServerBadge, error) {
	var badges []models.ServerBadge
	if err := c.do(ctx, http.MethodGet, "/api/badges", nil, true, &badges); err != nil {
		return nil, err
	}
	return badges, nil
}

// UpdateAll asks the server to recompute every badge of the current user
func (c *Client) UpdateAll(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/badges/update-all", nil, true, nil)
}

// UpdateBadge asks the server to recompute one badge
func (c *Client) UpdateBadge(ctx context.Context, badgeCode string) error {
	if badgeCode == "" {
		return fmt.Errorf("%w: empty badge code", models.ErrInvalidPayload)
	}
	path := "/api/badges/" + url.PathEscape(badgeCode) + "/update"
	return c.do(ctx, http.MethodPost, path, nil, true, nil)
}

// ListAnnouncements fetches a page of published announcements
func (c *Client) ListAnnouncements(ctx context.Context, page, size int) (*models.AnnouncementPage, error) {
	if page < 0 {
		page = 0
	}
	if size <= 0 {
		size = 10
	}
	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("size", strconv.Itoa(size))
	query.Set("status", models.AnnouncementStatusPublished)

	var result models.AnnouncementPage
	if err := c.do(ctx, http.MethodGet, "/api/public/announcements", query, false, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetAnnouncement fetches a single announcement
func (c *Client) GetAnnouncement(ctx context.Context, id int64) (*models.Announcement, error) {
	var a models.Announcement
	path := fmt.Sprintf("/api/public/announcements/%d", id)
	if err := c.do(ctx, http.MethodGet, path, nil, false, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// GetRoom fetches the info of a chat room
func (c *Client) GetRoom(ctx context.Context, roomID int64) (*models.ChatRoomInfo, error) {
	var info models.ChatRoomInfo
	path := fmt.Sprintf("/api/chat/rooms/%d", roomID)
	if err := c.do(ctx, http.MethodGet, path, nil, true, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, authenticated bool, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if authenticated {
		if c.userID != "" {
			req.Header.Set("X-User-Id", c.userID)
		}
		if c.accessToken != "" {
			req.Header.Set("Authorization", "Bearer "+c.accessToken)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(ctx, err) {
			return fmt.Errorf("%w: %s %s", models.ErrTimeout, method, path)
		}
		return fmt.Errorf("failed to call %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return &StatusError{Method: method, Path: path, StatusCode: resp.StatusCode}
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if isTimeout(ctx, err) {
			return fmt.Errorf("%w: %s %s", models.ErrTimeout, method, path)
		}
		return fmt.Errorf("failed to parse %s response: %w", path, err)
	}
	return nil
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
