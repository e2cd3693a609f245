package amqp

import (
	"encoding/json"
	"time"
)

// TransactionCreatedMessage announces a newly stored transaction.
// It carries only identifiers; consumers load the record from storage.
type TransactionCreatedMessage struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewTransactionCreatedMessage(id, userID int64) *TransactionCreatedMessage {
	return &TransactionCreatedMessage{
		ID:        id,
		UserID:    userID,
		Timestamp: time.Now(),
	}
}

func (m *TransactionCreatedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func TransactionCreatedMessageFromJSON(data []byte) (*TransactionCreatedMessage, error) {
	var msg TransactionCreatedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
