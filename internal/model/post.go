package model

import (
	"fmt"
	"time"
)

// PostStatus only ever moves Available -> Claimed.
type PostStatus string

const (
	PostAvailable PostStatus = "Available"
	PostClaimed   PostStatus = "Claimed"
)

// PostKind discriminates the two post tables.
type PostKind string

const (
	KindFood     PostKind = "food"
	KindResource PostKind = "resource"
)

func (k PostKind) Valid() bool { return k == KindFood || k == KindResource }

// PostRef points at exactly one post.
type PostRef struct {
	Kind PostKind `gorm:"column:post_kind;size:16;not null;uniqueIndex:uk_request_receiver_post,priority:2;index:idx_request_post,priority:1" json:"kind"`
	ID   uint64   `gorm:"column:post_id;not null;uniqueIndex:uk_request_receiver_post,priority:3;index:idx_request_post,priority:2" json:"id"`
}

func (r PostRef) String() string { return fmt.Sprintf("%s:%d", r.Kind, r.ID) }

var ResourceCategories = []string{"Clothes", "Toys", "Books", "Others"}

type FoodPost struct {
	ID           uint64     `gorm:"primaryKey" json:"id"`
	DonorID      uint64     `gorm:"not null;index:idx_food_donor" json:"donor_id"`
	FoodType     string     `gorm:"size:64;not null;index:idx_food_status_type,priority:2" json:"food_type"`
	FoodItems    []string   `gorm:"serializer:json;type:text;not null" json:"food_items"`
	Quantity     string     `gorm:"size:64;not null" json:"quantity"`
	CookedTime   time.Time  `gorm:"not null" json:"cooked_time"`
	ExpiryTime   time.Time  `gorm:"not null;index" json:"expiry_time"`
	Location     string     `gorm:"size:255;not null" json:"location"`
	ContactPhone string     `gorm:"size:32;not null" json:"contact_phone"`
	Status       PostStatus `gorm:"size:16;not null;default:Available;index:idx_food_status_type,priority:1" json:"status"`
	Donor        *User      `gorm:"foreignKey:DonorID" json:"donor,omitempty"`
	CreatedAt    time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (p *FoodPost) Ref() PostRef { return PostRef{Kind: KindFood, ID: p.ID} }

// Expired reports whether the food is past its expiry at now.
func (p *FoodPost) Expired(now time.Time) bool { return !p.ExpiryTime.After(now) }

type ResourcePost struct {
	ID           uint64     `gorm:"primaryKey" json:"id"`
	DonorID      uint64     `gorm:"not null;index:idx_resource_donor" json:"donor_id"`
	Category     string     `gorm:"size:16;not null;index:idx_resource_status_category,priority:2" json:"category"`
	ItemName     string     `gorm:"size:128;not null" json:"item_name"`
	Description  string     `gorm:"type:text" json:"description"`
	Quantity     string     `gorm:"size:64;not null" json:"quantity"`
	Location     string     `gorm:"size:255;not null" json:"location"`
	ContactPhone string     `gorm:"size:32;not null" json:"contact_phone"`
	Images       []string   `gorm:"serializer:json;type:text" json:"images"`
	Status       PostStatus `gorm:"size:16;not null;default:Available;index:idx_resource_status_category,priority:1" json:"status"`
	Donor        *User      `gorm:"foreignKey:DonorID" json:"donor,omitempty"`
	CreatedAt    time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (p *ResourcePost) Ref() PostRef { return PostRef{Kind: KindResource, ID: p.ID} }

// Post is the behaviour the lifecycle rules need from either variant.
type Post interface {
	Ref() PostRef
	OwnerID() uint64
	CurrentStatus() PostStatus
	Label() string
}

func (p *FoodPost) OwnerID() uint64           { return p.DonorID }
func (p *FoodPost) CurrentStatus() PostStatus { return p.Status }
func (p *FoodPost) Label() string             { return p.FoodType + " food (" + p.Quantity + ")" }

func (p *ResourcePost) OwnerID() uint64           { return p.DonorID }
func (p *ResourcePost) CurrentStatus() PostStatus { return p.Status }
func (p *ResourcePost) Label() string             { return p.ItemName + " (" + p.Category + ")" }
