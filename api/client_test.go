package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/guided-traffic/meetup-client/models"
)

func TestGetBadges_SendsUserHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/badges" || r.Method != http.MethodGet {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("X-User-Id") != "42" {
			t.Errorf("missing X-User-Id, got %q", r.Header.Get("X-User-Id"))
		}
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("missing bearer token")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id":1,"badgeCode":"CHAT_10","name":"Talker","grade":"RARE","category":"SOCIAL","unlocked":false,"progress":3,"targetValue":10}]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "tok", "42", time.Second)
	badges, err := c.GetBadges(context.Background())
	if err != nil {
		t.Fatalf("GetBadges failed: %v", err)
	}
	if len(badges) != 1 || badges[0].BadgeCode != "CHAT_10" {
		t.Fatalf("unexpected badges: %+v", badges)
	}
	if badges[0].ProgressPercentage != nil {
		t.Fatalf("absent percentage should stay nil")
	}
	if badges[0].Progress == nil || *badges[0].Progress != 3 {
		t.Fatalf("unexpected progress: %v", badges[0].Progress)
	}
}

func TestUpdateEndpoints(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		paths = append(paths, r.URL.EscapedPath())
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", "1", time.Second)
	if err := c.UpdateAll(context.Background()); err != nil {
		t.Fatalf("UpdateAll failed: %v", err)
	}
	if err := c.UpdateBadge(context.Background(), "HOST 5"); err != nil {
		t.Fatalf("UpdateBadge failed: %v", err)
	}
	if err := c.UpdateBadge(context.Background(), ""); !errors.Is(err, models.ErrInvalidPayload) {
		t.Fatalf("expected ErrInvalidPayload for empty code, got %v", err)
	}

	want := []string{"/api/badges/update-all", "/api/badges/HOST%205/update"}
	if len(paths) != 2 || paths[0] != want[0] || paths[1] != want[1] {
		t.Fatalf("expected %v, got %v", want, paths)
	}
}

func TestStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", "1", time.Second)
	_, err := c.GetBadges(context.Background())
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected StatusError 503, got %v", err)
	}
}

func TestTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := NewClient(srv.URL, "", "1", 20*time.Millisecond)
	_, err := c.GetBadges(context.Background())
	if !errors.Is(err, models.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestAnnouncements(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-User-Id") != "" || r.Header.Get("Authorization") != "" {
			t.Errorf("public endpoints must not carry credentials")
		}
		switch r.URL.Path {
		case "/api/public/announcements":
			q := r.URL.Query()
			if q.Get("status") != "PUBLISHED" || q.Get("page") != "1" || q.Get("size") != "5" {
				t.Errorf("unexpected query %s", r.URL.RawQuery)
			}
			w.Write([]byte(`{"content":[{"id":3,"title":"Welcome","content":"hi","status":"PUBLISHED"}],"page":1,"size":5,"totalElements":6,"totalPages":2}`))
		case "/api/public/announcements/3":
			w.Write([]byte(`{"id":3,"title":"Welcome","content":"hi","status":"PUBLISHED"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok", "1", time.Second)
	page, err := c.ListAnnouncements(context.Background(), 1, 5)
	if err != nil {
		t.Fatalf("ListAnnouncements failed: %v", err)
	}
	if len(page.Content) != 1 || page.TotalPages != 2 {
		t.Fatalf("unexpected page: %+v", page)
	}

	a, err := c.GetAnnouncement(context.Background(), 3)
	if err != nil || a.Title != "Welcome" {
		t.Fatalf("GetAnnouncement: %+v %v", a, err)
	}

	_, err = c.GetAnnouncement(context.Background(), 4)
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", err)
	}
}

func TestGetRoom(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"roomId":7,"name":"Board games","participantCount":6}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", "1", time.Second)
	info, err := c.GetRoom(context.Background(), 7)
	if err != nil {
		t.Fatalf("GetRoom failed: %v", err)
	}
	if info.Name != "Board games" || info.ParticipantCount != 6 {
		t.Fatalf("unexpected info: %+v", info)
	}
}
