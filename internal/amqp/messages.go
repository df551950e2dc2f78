package amqp

import (
	"encoding/json"
	"time"
)

// TransactionRecordedMessage announces a committed money movement. It
// carries ids only; consumers fetch the full transaction from the store.
type TransactionRecordedMessage struct {
	TransactionID string    `json:"transactionId"`
	UserID        string    `json:"userId"`
	Kind          string    `json:"kind"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewTransactionRecordedMessage(transactionID, userID, kind string) *TransactionRecordedMessage {
	return &TransactionRecordedMessage{
		TransactionID: transactionID,
		UserID:        userID,
		Kind:          kind,
		Timestamp:     time.Now(),
	}
}

func (m *TransactionRecordedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func TransactionRecordedMessageFromJSON(data []byte) (*TransactionRecordedMessage, error) {
	var msg TransactionRecordedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// BudgetRecomputeMessage requests a full recompute of one budget's cached
// spend, enqueued when its category set or currency changes.
type BudgetRecomputeMessage struct {
	BudgetID  string    `json:"budgetId"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

func NewBudgetRecomputeMessage(budgetID, reason string) *BudgetRecomputeMessage {
	return &BudgetRecomputeMessage{
		BudgetID:  budgetID,
		Reason:    reason,
		Timestamp: time.Now(),
	}
}

func (m *BudgetRecomputeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func BudgetRecomputeMessageFromJSON(data []byte) (*BudgetRecomputeMessage, error) {
	var msg BudgetRecomputeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
