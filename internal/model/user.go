package model

import "time"

const (
	RoleDonor    = "donor"
	RoleReceiver = "receiver"
)

type User struct {
	ID        uint64    `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:64;not null" json:"name"`
	Email     string    `gorm:"uniqueIndex;size:128;not null" json:"email,omitempty"`
	Password  string    `gorm:"size:255;not null" json:"-"`
	Phone     string    `gorm:"size:32" json:"phone,omitempty"`
	Address   string    `gorm:"size:255" json:"address,omitempty"`
	Role      string    `gorm:"size:16;not null" json:"role,omitempty"`
	CreatedAt time.Time `json:"created_at,omitzero"`
	UpdatedAt time.Time `json:"-"`
}

// Contact is the part of a receiver a donor sees next to a request.
type Contact struct {
	ID      uint64 `json:"id"`
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

func (u *User) IsDonor() bool    { return u != nil && u.Role == RoleDonor }
func (u *User) IsReceiver() bool { return u != nil && u.Role == RoleReceiver }
