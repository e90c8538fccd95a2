package router

import (
	"errors"
	"testing"

	"github.com/guided-traffic/meetup-client/models"
)

func ceilSplit(total int64, participants int) (int64, int64) {
	n := int64(participants)
	share := (total + n - 1) / n
	return share, total - share*n
}

func TestNewBill_FreezesSplit(t *testing.T) {
	r := New()

	msg, err := r.NewBill(BillRequest{TotalAmount: 10000, ParticipantCount: 3, AccountNumber: "110-123-456"})
	if err != nil {
		t.Fatalf("NewBill failed: %v", err)
	}
	bill, ok := msg.Bill()
	if !ok {
		t.Fatalf("expected bill metadata, got %#v", msg.Metadata)
	}
	if bill.AmountPerPerson != 3333 || bill.Remainder != 1 {
		t.Fatalf("expected 3333 remainder 1, got %d remainder %d", bill.AmountPerPerson, bill.Remainder)
	}

	msg.SenderEmail = "host@example.com"
	msg.RoomID = 4
	data, err := r.Encode(msg)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	// Rounding policy changes after the message was built
	later := New(WithSplitPolicy(ceilSplit))
	reread, err := later.Route(data)
	if err != nil {
		t.Fatalf("Route failed: %v", err)
	}
	again, _ := reread.Bill()
	if again.AmountPerPerson != 3333 {
		t.Fatalf("stored split changed on re-read: %d", again.AmountPerPerson)
	}
	if again.Remainder != 1 {
		t.Fatalf("stored remainder changed on re-read: %d", again.Remainder)
	}
}

func TestNewBill_Validation(t *testing.T) {
	r := New()

	if _, err := r.NewBill(BillRequest{TotalAmount: 100, ParticipantCount: 0}); !errors.Is(err, models.ErrInvalidPayload) {
		t.Fatalf("expected ErrInvalidPayload for zero participants, got %v", err)
	}
	if _, err := r.NewBill(BillRequest{TotalAmount: -1, ParticipantCount: 2}); !errors.Is(err, models.ErrInvalidPayload) {
		t.Fatalf("expected ErrInvalidPayload for negative total, got %v", err)
	}
	msg, err := r.NewBill(BillRequest{TotalAmount: 0, ParticipantCount: 1})
	if err != nil {
		t.Fatalf("zero total with one participant should be valid: %v", err)
	}
	if bill, _ := msg.Bill(); bill.AmountPerPerson != 0 {
		t.Fatalf("expected zero share, got %d", bill.AmountPerPerson)
	}
}

func TestRouteBill_ComputesWhenNotCarried(t *testing.T) {
	r := New()

	msg, err := r.Route([]byte(`{"senderEmail":"a@example.com","roomId":1,"type":"BILL","metadata":{"totalAmount":10000.0,"participantCount":4,"accountNumber":"acc"}}`))
	if err != nil {
		t.Fatalf("Route failed: %v", err)
	}
	bill, _ := msg.Bill()
	if bill.AmountPerPerson != 2500 || bill.Remainder != 0 {
		t.Fatalf("unexpected split: %+v", bill)
	}
}

func TestRouteBill_CarriedSplitWithoutRemainder(t *testing.T) {
	r := New()

	msg, err := r.Route([]byte(`{"senderEmail":"a@example.com","roomId":1,"type":"BILL","metadata":{"totalAmount":10000,"participantCount":3,"amountPerPerson":3334}}`))
	if err != nil {
		t.Fatalf("Route failed: %v", err)
	}
	bill, _ := msg.Bill()
	if bill.AmountPerPerson != 3334 || bill.Remainder != -2 {
		t.Fatalf("expected carried share 3334 with remainder -2, got %+v", bill)
	}
}

func TestRouteBill_ZeroParticipants(t *testing.T) {
	r := New()

	_, err := r.Route([]byte(`{"senderEmail":"a@example.com","roomId":1,"type":"BILL","metadata":{"totalAmount":10000,"participantCount":0}}`))
	if !errors.Is(err, models.ErrInvalidPayload) {
		t.Fatalf("expected ErrInvalidPayload, got %v", err)
	}

	_, err = r.Route([]byte(`{"senderEmail":"a@example.com","roomId":1,"type":"BILL","metadata":{"totalAmount":99.5,"participantCount":2}}`))
	if !errors.Is(err, models.ErrInvalidPayload) {
		t.Fatalf("expected ErrInvalidPayload for fractional minor units, got %v", err)
	}
}
