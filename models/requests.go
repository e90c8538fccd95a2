package models

// EnterRoomRequest names the current user inside the room being entered
type EnterRoomRequest struct {
	SelfEmail string `json:"selfEmail"`
	SelfName  string `json:"selfName"`
}

// SendMessageRequest is a chat message posted through the local API.
// Poll and Location are required for their message types.
type SendMessageRequest struct {
	Type     MessageType       `json:"type" binding:"required"`
	Content  string            `json:"content"`
	Poll     *PollMetadata     `json:"poll,omitempty"`
	Location *LocationMetadata `json:"location,omitempty"`
}

// CreateBillRequest is a bill posted through the local API. Amounts are
// in minor currency units.
type CreateBillRequest struct {
	Content          string `json:"content"`
	TotalAmount      int64  `json:"totalAmount"`
	ParticipantCount int    `json:"participantCount"`
	AccountNumber    string `json:"accountNumber" binding:"required"`
	BankName         string `json:"bankName"`
}

// FocusRequest reports whether the room is on screen
type FocusRequest struct {
	Focused *bool `json:"focused" binding:"required"`
}
