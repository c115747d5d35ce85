package amqp

import (
	"encoding/json"
	"time"
)

// InvalidationMessage tells consumers that dashboard views for the listed
// accounts are stale. Published after any committed balance-affecting
// operation; the API server purges its dashboard cache on receipt.
type InvalidationMessage struct {
	UserID     string    `json:"user_id"`
	AccountIDs []string  `json:"account_ids"`
	Timestamp  time.Time `json:"timestamp"`
}

func NewInvalidationMessage(userID string, accountIDs []string) *InvalidationMessage {
	return &InvalidationMessage{
		UserID:     userID,
		AccountIDs: accountIDs,
		Timestamp:  time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *InvalidationMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// FromJSON creates a message from JSON bytes
func InvalidationMessageFromJSON(data []byte) (*InvalidationMessage, error) {
	var msg InvalidationMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
