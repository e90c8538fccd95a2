package models

import "encoding/json"

// Metadata is the typed payload of a chat message. The set of
// implementations is closed: one per structured message type plus
// UnknownMetadata for types this client does not understand yet.
type Metadata interface {
	metadataFor() MessageType
}

// PollMetadata is the payload of a POLL message
type PollMetadata struct {
	Question       string   `json:"question"`
	Options        []string `json:"options"`
	MultipleChoice bool     `json:"multipleChoice,omitempty"`
	ClosesAt       string   `json:"closesAt,omitempty"`
}

func (PollMetadata) metadataFor() MessageType { return MessageTypePoll }

// LocationMetadata is the payload of a LOCATION message
type LocationMetadata struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	PlaceName string  `json:"placeName,omitempty"`
	Address   string  `json:"address,omitempty"`
}

func (LocationMetadata) metadataFor() MessageType { return MessageTypeLocation }

// BillSplit is the payload of a BILL message. Amounts are in minor
// currency units. AmountPerPerson and Remainder are computed once when
// the message is built and are carried as stored fields afterwards.
type BillSplit struct {
	TotalAmount      int64  `json:"totalAmount"`
	ParticipantCount int    `json:"participantCount"`
	AccountNumber    string `json:"accountNumber"`
	BankName         string `json:"bankName,omitempty"`
	AmountPerPerson  int64  `json:"amountPerPerson"`
	Remainder        int64  `json:"remainder"`
}

func (BillSplit) metadataFor() MessageType { return MessageTypeBill }

// Notice events that change room info
const (
	NoticeEventParticipantCount = "PARTICIPANT_COUNT"
	NoticeEventPinnedNotice     = "PINNED_NOTICE"
)

// NoticeMetadata is the optional payload of a NOTICE message
type NoticeMetadata struct {
	Event            string `json:"event,omitempty"`
	ParticipantCount *int   `json:"participantCount,omitempty"`
	Notice           string `json:"notice,omitempty"`
}

func (NoticeMetadata) metadataFor() MessageType { return MessageTypeNotice }

// UnknownMetadata keeps the original payload of an unsupported message type
type UnknownMetadata struct {
	OriginalType string          `json:"originalType"`
	Raw          json.RawMessage `json:"raw,omitempty"`
}

func (UnknownMetadata) metadataFor() MessageType { return MessageTypeNotice }
