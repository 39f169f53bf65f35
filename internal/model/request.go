package model

import "time"

// RequestStatus moves Pending -> Accepted | Rejected and then stops.
type RequestStatus string

const (
	RequestPending  RequestStatus = "Pending"
	RequestAccepted RequestStatus = "Accepted"
	RequestRejected RequestStatus = "Rejected"
)

func (s RequestStatus) Terminal() bool { return s == RequestAccepted || s == RequestRejected }

type Request struct {
	ID            uint64        `gorm:"primaryKey" json:"id"`
	ReceiverID    uint64        `gorm:"not null;uniqueIndex:uk_request_receiver_post,priority:1;index:idx_request_receiver" json:"receiver_id"`
	Target        PostRef       `gorm:"embedded" json:"target"`
	Message       string        `gorm:"type:text" json:"message"`
	SelectedItems []string      `gorm:"serializer:json;type:text" json:"selected_items"`
	Status        RequestStatus `gorm:"size:16;not null;default:Pending" json:"status"`
	CreatedAt     time.Time     `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// RequestView is a request joined with its target post and, for donors,
// the requesting receiver.
type RequestView struct {
	Request
	FoodPost     *FoodPost     `json:"foodPost,omitempty"`
	ResourcePost *ResourcePost `json:"resourcePost,omitempty"`
	Receiver     *Contact      `json:"receiver,omitempty"`
}
