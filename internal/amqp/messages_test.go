package amqp

import (
	"testing"
)

func TestInvalidationMessage_RoundTrip(t *testing.T) {
	msg := NewInvalidationMessage("user-1", []string{"acc-1", "acc-2"})

	data, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}

	got, err := InvalidationMessageFromJSON(data)
	if err != nil {
		t.Fatalf("InvalidationMessageFromJSON: %v", err)
	}
	if got.UserID != "user-1" {
		t.Errorf("UserID = %q, want user-1", got.UserID)
	}
	if len(got.AccountIDs) != 2 || got.AccountIDs[0] != "acc-1" || got.AccountIDs[1] != "acc-2" {
		t.Errorf("AccountIDs = %v", got.AccountIDs)
	}
	if got.Timestamp.IsZero() {
		t.Error("Timestamp should be set")
	}
}

func TestInvalidationMessageFromJSON_Malformed(t *testing.T) {
	if _, err := InvalidationMessageFromJSON([]byte("{not json")); err == nil {
		t.Error("expected error for malformed payload")
	}
}
