package router

import (
	"errors"
	"testing"

	"github.com/guided-traffic/meetup-client/models"
)

func TestRoute_Talk(t *testing.T) {
	r := New()

	msg, err := r.Route([]byte(`{"id":7,"senderEmail":"a@example.com","content":"hi <b>","roomId":3,"createdAt":"2024-05-01T10:00:00Z","type":"TALK"}`))
	if err != nil {
		t.Fatalf("Route failed: %v", err)
	}
	if msg.Content != "hi <b>" {
		t.Fatalf("content was transformed: %q", msg.Content)
	}
	if msg.ID == nil || *msg.ID != 7 || msg.RoomID != 3 {
		t.Fatalf("unexpected identity: %+v", msg)
	}
	if msg.DisplayName() != models.AnonymousName {
		t.Fatalf("expected anonymous fallback, got %q", msg.DisplayName())
	}
}

func TestRoute_MalformedFrames(t *testing.T) {
	r := New()

	cases := map[string]string{
		"not json":      `{"type":`,
		"missing type":  `{"senderEmail":"a@example.com","roomId":1}`,
		"missing room":  `{"senderEmail":"a@example.com","type":"TALK"}`,
		"missing email": `{"roomId":1,"type":"TALK","content":"x"}`,
	}
	for name, data := range cases {
		if _, err := r.Route([]byte(data)); !errors.Is(err, models.ErrMalformedFrame) {
			t.Fatalf("%s: expected ErrMalformedFrame, got %v", name, err)
		}
	}
}

func TestRoute_UnknownTypeBecomesPlaceholder(t *testing.T) {
	r := New()

	msg, err := r.Route([]byte(`{"senderEmail":"a@example.com","roomId":1,"type":"STICKER","content":"cat","metadata":{"pack":"x"}}`))
	if err != nil {
		t.Fatalf("unknown types must not be rejected: %v", err)
	}
	if msg.Type != models.MessageTypeNotice || msg.Content != UnsupportedContent {
		t.Fatalf("expected unsupported notice, got %+v", msg)
	}
	meta, ok := msg.Metadata.(models.UnknownMetadata)
	if !ok || meta.OriginalType != "STICKER" {
		t.Fatalf("expected original type to be kept, got %#v", msg.Metadata)
	}
	if msg.SenderEmail != "" {
		t.Fatalf("notice must not carry a sender")
	}
}

func TestRoute_NoticeDropsSender(t *testing.T) {
	r := New()

	msg, err := r.Route([]byte(`{"senderEmail":"sys@example.com","senderName":"System","roomId":1,"type":"NOTICE","content":"welcome","metadata":{"event":"PARTICIPANT_COUNT","participantCount":5}}`))
	if err != nil {
		t.Fatalf("Route failed: %v", err)
	}
	if msg.SenderEmail != "" || msg.SenderName != "" {
		t.Fatalf("notice kept its sender: %+v", msg)
	}
	notice, ok := msg.Metadata.(models.NoticeMetadata)
	if !ok || notice.ParticipantCount == nil || *notice.ParticipantCount != 5 {
		t.Fatalf("unexpected notice metadata: %#v", msg.Metadata)
	}
}

func TestRoute_PollAndLocationRequireKeys(t *testing.T) {
	r := New()

	poll, err := r.Route([]byte(`{"senderEmail":"a@example.com","roomId":1,"type":"POLL","metadata":{"question":"Where?","options":["A","B"]}}`))
	if err != nil {
		t.Fatalf("poll Route failed: %v", err)
	}
	if p, ok := poll.Metadata.(models.PollMetadata); !ok || len(p.Options) != 2 {
		t.Fatalf("unexpected poll metadata: %#v", poll.Metadata)
	}

	_, err = r.Route([]byte(`{"senderEmail":"a@example.com","roomId":1,"type":"POLL","metadata":{"question":"Where?"}}`))
	if !errors.Is(err, models.ErrInvalidPayload) {
		t.Fatalf("expected ErrInvalidPayload for poll without options, got %v", err)
	}

	// A zero coordinate is present, not missing
	loc, err := r.Route([]byte(`{"senderEmail":"a@example.com","roomId":1,"type":"LOCATION","metadata":{"latitude":0,"longitude":126.97}}`))
	if err != nil {
		t.Fatalf("location Route failed: %v", err)
	}
	if l := loc.Metadata.(models.LocationMetadata); l.Longitude != 126.97 {
		t.Fatalf("unexpected location: %+v", l)
	}

	_, err = r.Route([]byte(`{"senderEmail":"a@example.com","roomId":1,"type":"LOCATION","metadata":{"latitude":37.5,"longitude":null}}`))
	if !errors.Is(err, models.ErrInvalidPayload) {
		t.Fatalf("expected ErrInvalidPayload for null longitude, got %v", err)
	}
}

func TestEncode_RoundTripKeepsMetadata(t *testing.T) {
	r := New()

	out := models.ChatMessage{
		ClientToken: "tok-1",
		SenderEmail: "a@example.com",
		RoomID:      9,
		Type:        models.MessageTypePoll,
		Metadata:    models.PollMetadata{Question: "When?", Options: []string{"7pm", "8pm"}},
	}
	data, err := r.Encode(out)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	in, err := r.Route(data)
	if err != nil {
		t.Fatalf("Route failed: %v", err)
	}
	if in.ClientToken != "tok-1" || in.RoomID != 9 {
		t.Fatalf("unexpected routed message: %+v", in)
	}
	if p := in.Metadata.(models.PollMetadata); p.Question != "When?" {
		t.Fatalf("unexpected poll: %+v", p)
	}
}

func TestEncode_RejectsMismatchedMetadata(t *testing.T) {
	r := New()

	_, err := r.Encode(models.ChatMessage{
		SenderEmail: "a@example.com",
		RoomID:      1,
		Type:        models.MessageTypeLocation,
		Metadata:    models.PollMetadata{Question: "?", Options: []string{"a"}},
	})
	if !errors.Is(err, models.ErrInvalidPayload) {
		t.Fatalf("expected ErrInvalidPayload, got %v", err)
	}
}

func TestEncode_RequiresSender(t *testing.T) {
	r := New()

	_, err := r.Encode(models.ChatMessage{RoomID: 1, Type: models.MessageTypeTalk, Content: "hi"})
	if !errors.Is(err, models.ErrInvalidPayload) {
		t.Fatalf("expected ErrInvalidPayload without a sender, got %v", err)
	}

	data, err := r.Encode(models.ChatMessage{RoomID: 1, Type: models.MessageTypeNotice, Content: "closing soon"})
	if err != nil {
		t.Fatalf("notice needs no sender: %v", err)
	}
	if _, err := r.Route(data); err != nil {
		t.Fatalf("encoded notice should route: %v", err)
	}
}
