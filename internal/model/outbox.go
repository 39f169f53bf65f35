package model

import "time"

const (
	EventRequestCreated  = "request.created"
	EventRequestResolved = "request.resolved"
	EventPostClaimed     = "post.claimed"
	EventPostDeleted     = "post.deleted"
)

type OutboxStatus int8

const (
	OutboxPending OutboxStatus = 0
	OutboxSent    OutboxStatus = 1
	OutboxFailed  OutboxStatus = 2
)

// OutboxEvent is written in the same transaction as the change it
// describes and relayed later.
type OutboxEvent struct {
	ID        uint64       `gorm:"primaryKey"`
	EventType string       `gorm:"size:32;not null"`
	PostKind  PostKind     `gorm:"size:16"`
	PostID    uint64       `gorm:"not null;default:0"`
	RequestID uint64       `gorm:"not null;default:0"`
	Payload   string       `gorm:"type:text;not null"`
	Status    OutboxStatus `gorm:"not null;default:0;index:idx_outbox_status_id,priority:1"`
	Retry     int          `gorm:"not null;default:0"`
	Delivered uint32       `gorm:"not null;default:0"` // bit i is set once sink i accepted the event
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (OutboxEvent) TableName() string { return "outbox_events" }

// EventPayload is the JSON body carried by every outbox event.
type EventPayload struct {
	EventTime  string        `json:"event_time"`
	RequestID  uint64        `json:"request_id,omitempty"`
	Post       PostRef       `json:"post"`
	DonorID    uint64        `json:"donor_id,omitempty"`
	ReceiverID uint64        `json:"receiver_id,omitempty"`
	Status     RequestStatus `json:"status,omitempty"`
}
