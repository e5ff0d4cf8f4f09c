package domain

import (
	"time"

	"github.com/google/uuid"
)

// NotifyEvent asks the notification dispatcher to alert the business owner
// about an inbound intake or message. Delivery is fire-and-forget: the
// webhook response never waits on it.
type NotifyEvent struct {
	ID    uuid.UUID
	JobID JobID

	// Kind tags the trigger: "intake", "call-report", "sms".
	Kind string

	Subject string
	Message string

	CreatedAt time.Time
}
