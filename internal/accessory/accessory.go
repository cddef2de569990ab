package accessory

import (
	"time"

	"github.com/google/uuid"
)

type Category string

const (
	CategoryHat        Category = "hat"
	CategoryHeadgear   Category = "headgear"
	CategoryEyes       Category = "eyes"
	CategoryFace       Category = "face"
	CategoryBody       Category = "body"
	CategoryBackground Category = "background"
	CategoryOther      Category = "other"
)

// SlotAuto is stored when neither the caller nor the catalog names a slot.
const SlotAuto = "auto"

// Categories is the display order used when grouping the catalog.
var Categories = []Category{
	CategoryHat,
	CategoryHeadgear,
	CategoryEyes,
	CategoryFace,
	CategoryBody,
	CategoryBackground,
	CategoryOther,
}

func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Transform is the visual placement of an accessory on the avatar.
type Transform struct {
	OffsetX  float64 `json:"offsetX"`
	OffsetY  float64 `json:"offsetY"`
	Scale    float64 `json:"scale"`
	Rotation float64 `json:"rotation,omitempty"`
	Flip     bool    `json:"flip,omitempty"`
}

type Accessory struct {
	ID                uuid.UUID    `json:"id" db:"id"`
	Slug              string       `json:"slug" db:"slug"`
	Name              string       `json:"name" db:"name"`
	Category          Category     `json:"category" db:"category"`
	PricePoints       int          `json:"price_points" db:"price_points"`
	ImageURL          string       `json:"image_url" db:"image_url"`
	Metadata          Transform    `json:"metadata" db:"metadata"`
	UnlockRequirement *Requirement `json:"unlock_requirement" db:"unlock_requirement"`
	CreatedAt         time.Time    `json:"created_at" db:"created_at"`
}

type Ownership struct {
	ID             uuid.UUID  `json:"id" db:"id"`
	UserID         string     `json:"user_id" db:"user_id"`
	AccessoryID    uuid.UUID  `json:"accessory_id" db:"accessory_id"`
	Slot           string     `json:"slot" db:"slot"`
	IsEquipped     bool       `json:"is_equipped" db:"is_equipped"`
	EquippedAt     *time.Time `json:"equipped_at" db:"equipped_at"`
	CustomMetadata *Transform `json:"custom_metadata" db:"custom_metadata"`
	PurchasedAt    time.Time  `json:"purchased_at" db:"purchased_at"`
	Accessory      *Accessory `json:"accessory,omitempty"`
}

// Filter narrows a catalog listing. Zero value lists everything.
type Filter struct {
	Category Category
}

// CacheEntry is one element of the denormalized equipped-accessory payload
// kept on the student profile for avatar rendering.
type CacheEntry struct {
	AccessoryID    uuid.UUID  `json:"accessory_id"`
	Slot           string     `json:"slot"`
	ImageURL       string     `json:"image_url"`
	Category       Category   `json:"category"`
	Metadata       Transform  `json:"metadata"`
	CustomMetadata *Transform `json:"custom_metadata"`
}

func NewCacheEntry(o Ownership) CacheEntry {
	entry := CacheEntry{
		AccessoryID:    o.AccessoryID,
		Slot:           o.Slot,
		CustomMetadata: o.CustomMetadata,
	}
	if o.Accessory != nil {
		entry.ImageURL = o.Accessory.ImageURL
		entry.Category = o.Accessory.Category
		entry.Metadata = o.Accessory.Metadata
	}
	return entry
}

type PurchaseRequest struct {
	AccessoryID string `json:"accessory_id"`
	Slot        string `json:"slot,omitempty"`
}

type EquipRequest struct {
	AccessoryID string `json:"accessory_id"`
	Slot        string `json:"slot,omitempty"`
}

type UnequipRequest struct {
	AccessoryID string `json:"accessory_id"`
}

type MetadataRequest struct {
	AccessoryID    string    `json:"accessory_id"`
	CustomMetadata Transform `json:"custom_metadata"`
}
