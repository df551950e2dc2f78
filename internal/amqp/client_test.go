package amqp

import (
	"testing"
	"time"
)

func TestTransactionRecordedMessageRoundTrip(t *testing.T) {
	msg := NewTransactionRecordedMessage("txn-123", "user-1", "EXPENSE")

	data, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}

	got, err := TransactionRecordedMessageFromJSON(data)
	if err != nil {
		t.Fatalf("FromJSON() error = %v", err)
	}

	if got.TransactionID != msg.TransactionID {
		t.Errorf("TransactionID = %q, want %q", got.TransactionID, msg.TransactionID)
	}
	if got.UserID != msg.UserID {
		t.Errorf("UserID = %q, want %q", got.UserID, msg.UserID)
	}
	if got.Kind != msg.Kind {
		t.Errorf("Kind = %q, want %q", got.Kind, msg.Kind)
	}
	if !got.Timestamp.Equal(msg.Timestamp) {
		t.Errorf("Timestamp = %v, want %v", got.Timestamp, msg.Timestamp)
	}
}

func TestBudgetRecomputeMessageRoundTrip(t *testing.T) {
	msg := NewBudgetRecomputeMessage("budget-7", "categories_changed")

	data, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}

	got, err := BudgetRecomputeMessageFromJSON(data)
	if err != nil {
		t.Fatalf("FromJSON() error = %v", err)
	}

	if got.BudgetID != "budget-7" {
		t.Errorf("BudgetID = %q, want %q", got.BudgetID, "budget-7")
	}
	if got.Reason != "categories_changed" {
		t.Errorf("Reason = %q, want %q", got.Reason, "categories_changed")
	}
}

func TestNewMessagesSetTimestamp(t *testing.T) {
	before := time.Now().Add(-time.Second)

	txn := NewTransactionRecordedMessage("t", "u", "INCOME")
	if txn.Timestamp.Before(before) {
		t.Errorf("transaction message timestamp not set: %v", txn.Timestamp)
	}

	rec := NewBudgetRecomputeMessage("b", "currency_changed")
	if rec.Timestamp.Before(before) {
		t.Errorf("recompute message timestamp not set: %v", rec.Timestamp)
	}
}

func TestBudgetRecomputeMessageFromJSONInvalid(t *testing.T) {
	if _, err := BudgetRecomputeMessageFromJSON([]byte("{not json")); err == nil {
		t.Error("expected error for invalid payload")
	}
}
