package router

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/guided-traffic/meetup-client/models"
)

// SplitPolicy divides a total (minor units) among participants and
// returns the per-person share and what is left over
type SplitPolicy func(total int64, participants int) (share, remainder int64)

// FloorSplit rounds each share down to the smallest currency unit.
// The remainder is whatever the floor left unassigned.
func FloorSplit(total int64, participants int) (int64, int64) {
	share := total / int64(participants)
	return share, total - share*int64(participants)
}

// BillRequest describes a bill a user wants to post to the room
type BillRequest struct {
	Content          string
	TotalAmount      int64
	ParticipantCount int
	AccountNumber    string
	BankName         string
}

// NewBill builds a BILL message and freezes its split with the router's
// current policy. The returned message is not yet addressed to a room.
func (r *Router) NewBill(req BillRequest) (models.ChatMessage, error) {
	if err := validateBill(req.TotalAmount, req.ParticipantCount); err != nil {
		return models.ChatMessage{}, err
	}

	share, remainder := r.split(req.TotalAmount, req.ParticipantCount)
	return models.ChatMessage{
		Type:    models.MessageTypeBill,
		Content: req.Content,
		Metadata: models.BillSplit{
			TotalAmount:      req.TotalAmount,
			ParticipantCount: req.ParticipantCount,
			AccountNumber:    req.AccountNumber,
			BankName:         req.BankName,
			AmountPerPerson:  share,
			Remainder:        remainder,
		},
	}, nil
}

type billWire struct {
	TotalAmount      json.Number `json:"totalAmount"`
	ParticipantCount json.Number `json:"participantCount"`
	AccountNumber    string      `json:"accountNumber"`
	BankName         string      `json:"bankName"`
	AmountPerPerson  *int64      `json:"amountPerPerson"`
	Remainder        *int64      `json:"remainder"`
}

// routeBill validates an inbound bill. A split already carried on the
// frame is kept as-is so history never changes with the local policy.
func (r *Router) routeBill(raw json.RawMessage) (models.Metadata, error) {
	var wire billWire
	if err := decodeRequired(raw, &wire, "totalAmount", "participantCount"); err != nil {
		return nil, err
	}

	total, err := wholeNumber(wire.TotalAmount)
	if err != nil {
		return nil, fmt.Errorf("%w: totalAmount: %v", models.ErrInvalidPayload, err)
	}
	count, err := wholeNumber(wire.ParticipantCount)
	if err != nil {
		return nil, fmt.Errorf("%w: participantCount: %v", models.ErrInvalidPayload, err)
	}
	if count > math.MaxInt32 {
		return nil, fmt.Errorf("%w: participantCount out of range", models.ErrInvalidPayload)
	}
	if err := validateBill(total, int(count)); err != nil {
		return nil, err
	}

	bill := models.BillSplit{
		TotalAmount:      total,
		ParticipantCount: int(count),
		AccountNumber:    wire.AccountNumber,
		BankName:         wire.BankName,
	}
	if wire.AmountPerPerson != nil {
		bill.AmountPerPerson = *wire.AmountPerPerson
		if wire.Remainder != nil {
			bill.Remainder = *wire.Remainder
		} else {
			bill.Remainder = total - bill.AmountPerPerson*count
		}
	} else {
		bill.AmountPerPerson, bill.Remainder = r.split(total, bill.ParticipantCount)
	}

	return bill, nil
}

func validateBill(total int64, participants int) error {
	if participants < 1 {
		return fmt.Errorf("%w: participantCount must be at least 1", models.ErrInvalidPayload)
	}
	if total < 0 {
		return fmt.Errorf("%w: totalAmount must not be negative", models.ErrInvalidPayload)
	}
	return nil
}

// wholeNumber accepts integers and integral decimals such as 10000.0
func wholeNumber(n json.Number) (int64, error) {
	if v, err := strconv.ParseInt(string(n), 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(string(n), 64)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) || math.Abs(f) > math.MaxInt64 {
		return 0, fmt.Errorf("%s is not a whole minor-unit amount", n)
	}
	return int64(f), nil
}
