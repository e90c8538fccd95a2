package router

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/guided-traffic/meetup-client/models"
)

// UnsupportedContent replaces the content of messages whose type this client does not know
const UnsupportedContent = "unsupported message"

// frame is the wire shape of a chat message
type frame struct {
	ID          *int64          `json:"id,omitempty"`
	ClientToken string          `json:"clientToken,omitempty"`
	SenderEmail string          `json:"senderEmail,omitempty"`
	SenderName  string          `json:"senderName,omitempty"`
	Content     string          `json:"content"`
	RoomID      *int64          `json:"roomId"`
	CreatedAt   string          `json:"createdAt,omitempty"`
	Type        string          `json:"type"`
	UnreadCount *int            `json:"unreadCount,omitempty"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
}

// Router turns raw frames into typed chat messages and back. It holds no
// room state, so one instance can serve every session.
type Router struct {
	split SplitPolicy
}

// Option configures a Router
type Option func(*Router)

// WithSplitPolicy replaces the bill split policy used for newly built bills
func WithSplitPolicy(p SplitPolicy) Option {
	return func(r *Router) {
		r.split = p
	}
}

// New creates a router with the floor split policy
func New(opts ...Option) *Router {
	r := &Router{split: FloorSplit}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Route parses an inbound frame and applies the per-type contract.
// Unparseable data or missing required fields yield ErrMalformedFrame,
// type-specific validation failures yield ErrInvalidPayload. Unknown
// types are not rejected: they become an unsupported NOTICE placeholder.
func (r *Router) Route(data []byte) (models.ChatMessage, error) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return models.ChatMessage{}, fmt.Errorf("%w: %v", models.ErrMalformedFrame, err)
	}
	if f.Type == "" {
		return models.ChatMessage{}, fmt.Errorf("%w: missing type", models.ErrMalformedFrame)
	}
	if f.RoomID == nil {
		return models.ChatMessage{}, fmt.Errorf("%w: missing roomId", models.ErrMalformedFrame)
	}

	msg := models.ChatMessage{
		ID:          f.ID,
		ClientToken: f.ClientToken,
		SenderEmail: f.SenderEmail,
		SenderName:  f.SenderName,
		Content:     f.Content,
		RoomID:      *f.RoomID,
		CreatedAt:   f.CreatedAt,
		Type:        models.MessageType(f.Type),
		UnreadCount: f.UnreadCount,
	}

	if !msg.Type.Valid() {
		return unsupported(msg, f), nil
	}
	if msg.Type != models.MessageTypeNotice && msg.SenderEmail == "" {
		return models.ChatMessage{}, fmt.Errorf("%w: missing senderEmail", models.ErrMalformedFrame)
	}

	var err error
	switch msg.Type {
	case models.MessageTypeTalk, models.MessageTypeImage:
		// Content is passed through as-is. Image references are resolved by the display layer.
	case models.MessageTypeBill:
		msg.Metadata, err = r.routeBill(f.Metadata)
	case models.MessageTypePoll:
		var poll models.PollMetadata
		err = decodeRequired(f.Metadata, &poll, "question", "options")
		msg.Metadata = poll
	case models.MessageTypeLocation:
		var loc models.LocationMetadata
		err = decodeRequired(f.Metadata, &loc, "latitude", "longitude")
		msg.Metadata = loc
	case models.MessageTypeNotice:
		msg.SenderEmail = ""
		msg.SenderName = ""
		msg.Metadata, err = routeNotice(f.Metadata)
	}
	if err != nil {
		return models.ChatMessage{}, err
	}

	return msg, nil
}

// Encode builds the outbound frame for a message
func (r *Router) Encode(msg models.ChatMessage) ([]byte, error) {
	if !msg.Type.Valid() {
		return nil, fmt.Errorf("%w: cannot send type %q", models.ErrInvalidPayload, msg.Type)
	}
	if err := validateOutbound(msg); err != nil {
		return nil, err
	}

	roomID := msg.RoomID
	f := frame{
		ID:          msg.ID,
		ClientToken: msg.ClientToken,
		SenderEmail: msg.SenderEmail,
		SenderName:  msg.SenderName,
		Content:     msg.Content,
		RoomID:      &roomID,
		CreatedAt:   msg.CreatedAt,
		Type:        string(msg.Type),
		UnreadCount: msg.UnreadCount,
	}
	if msg.Metadata != nil {
		raw, err := json.Marshal(msg.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal metadata: %w", err)
		}
		f.Metadata = raw
	}

	return json.Marshal(f)
}

// unsupported coerces a frame of unknown type into a NOTICE placeholder
func unsupported(msg models.ChatMessage, f frame) models.ChatMessage {
	msg.Type = models.MessageTypeNotice
	msg.Content = UnsupportedContent
	msg.SenderEmail = ""
	msg.SenderName = ""
	msg.Metadata = models.UnknownMetadata{
		OriginalType: f.Type,
		Raw:          f.Metadata,
	}
	return msg
}

func routeNotice(raw json.RawMessage) (models.Metadata, error) {
	if isAbsent(raw) {
		return nil, nil
	}
	var notice models.NoticeMetadata
	if err := json.Unmarshal(raw, &notice); err != nil {
		return nil, fmt.Errorf("%w: notice metadata: %v", models.ErrInvalidPayload, err)
	}
	return notice, nil
}

// validateOutbound checks the sender and that the metadata variant matches
// the message type. A frame Route would reject is never sent.
func validateOutbound(msg models.ChatMessage) error {
	if msg.Type != models.MessageTypeNotice && msg.SenderEmail == "" {
		return fmt.Errorf("%w: missing senderEmail", models.ErrInvalidPayload)
	}

	switch msg.Type {
	case models.MessageTypePoll:
		poll, ok := msg.Metadata.(models.PollMetadata)
		if !ok || poll.Question == "" || len(poll.Options) == 0 {
			return fmt.Errorf("%w: poll needs a question and options", models.ErrInvalidPayload)
		}
	case models.MessageTypeLocation:
		if _, ok := msg.Metadata.(models.LocationMetadata); !ok {
			return fmt.Errorf("%w: location metadata missing", models.ErrInvalidPayload)
		}
	case models.MessageTypeBill:
		bill, ok := msg.Metadata.(models.BillSplit)
		if !ok {
			return fmt.Errorf("%w: bill metadata missing", models.ErrInvalidPayload)
		}
		return validateBill(bill.TotalAmount, bill.ParticipantCount)
	}
	return nil
}

// decodeRequired decodes raw into v after checking that every key is present and not null
func decodeRequired(raw json.RawMessage, v any, keys ...string) error {
	if isAbsent(raw) {
		return fmt.Errorf("%w: metadata missing", models.ErrInvalidPayload)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return fmt.Errorf("%w: metadata is not an object", models.ErrInvalidPayload)
	}
	for _, key := range keys {
		value, ok := fields[key]
		if !ok || isAbsent(value) {
			return fmt.Errorf("%w: metadata key %q missing", models.ErrInvalidPayload, key)
		}
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", models.ErrInvalidPayload, err)
	}
	return nil
}

func isAbsent(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
