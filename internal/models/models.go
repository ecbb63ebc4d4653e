package models

import "time"

type PackageCode string

const (
	PackageFree PackageCode = "free"
	Package1M   PackageCode = "p1m"
	Package3M   PackageCode = "p3m"
	Package6M   PackageCode = "p6m"
	Package12M  PackageCode = "p12m"
)

// Purchasable reports whether the package can be requested by a user.
// The free plan is only ever granted at registration.
func (p PackageCode) Purchasable() bool {
	switch p {
	case Package1M, Package3M, Package6M, Package12M:
		return true
	default:
		return false
	}
}

type BusinessType string

const (
	BusinessElectronics BusinessType = "Electronics"
	BusinessFootwear    BusinessType = "Footwear"
	BusinessFashion     BusinessType = "Fashion"
	BusinessLingerie    BusinessType = "Lingerie"
	BusinessHandbags    BusinessType = "Handbags"
	BusinessJewelry     BusinessType = "Jewelry"
	BusinessAccessories BusinessType = "Accessories"
	BusinessHomeDecor   BusinessType = "HomeDecor"
	BusinessCosmetics   BusinessType = "Cosmetics"
)

var BusinessTypes = []BusinessType{
	BusinessElectronics, BusinessFootwear, BusinessFashion, BusinessLingerie, BusinessHandbags,
	BusinessJewelry, BusinessAccessories, BusinessHomeDecor, BusinessCosmetics,
}

type SceneStyle string

const (
	StyleStudio     SceneStyle = "Studio"
	StyleLifestyle  SceneStyle = "Lifestyle"
	StyleNature     SceneStyle = "Nature"
	StyleLuxury     SceneStyle = "Luxury"
	StyleMinimalist SceneStyle = "Minimalist"
	StyleUrban      SceneStyle = "Urban"
)

var SceneStyles = []SceneStyle{StyleStudio, StyleLifestyle, StyleNature, StyleLuxury, StyleMinimalist, StyleUrban}

type Quality string

const (
	Quality1K Quality = "1K"
	Quality2K Quality = "2K"
	Quality4K Quality = "4K"
)

var Qualities = []Quality{Quality1K, Quality2K, Quality4K}

// User is the entitlement record of one business account.
// PaymentPending is true exactly when RequestedPackage is set.
type User struct {
	ID               string       `json:"id"`
	Email            string       `json:"email"`
	BusinessName     string       `json:"business_name"`
	PasswordHash     string       `json:"-"`
	Credits          int          `json:"credits"`
	Package          PackageCode  `json:"package"`
	ExpiresAt        *time.Time   `json:"expiry_date"`
	PaymentPending   bool         `json:"payment_pending"`
	RequestedPackage *PackageCode `json:"requested_package"`
	Version          int64        `json:"version"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// Expired reports whether the plan validity ended before now. A nil expiry never expires.
func (u *User) Expired(now time.Time) bool {
	return u.ExpiresAt != nil && u.ExpiresAt.Before(now)
}

// Clone returns a deep copy so callers can mutate without touching shared state.
func (u User) Clone() User {
	if u.ExpiresAt != nil {
		t := *u.ExpiresAt
		u.ExpiresAt = &t
	}
	if u.RequestedPackage != nil {
		p := *u.RequestedPackage
		u.RequestedPackage = &p
	}
	return u
}

type GenerationResult struct {
	ID           string       `json:"id"`
	UserID       string       `json:"user_id"`
	SourceImage  []byte       `json:"-"`
	ResultImage  []byte       `json:"-"`
	ResultMime   string       `json:"result_mime"`
	ResultURL    string       `json:"result_url,omitempty"`
	Prompt       string       `json:"prompt"`
	BusinessType BusinessType `json:"business_type"`
	SceneStyle   SceneStyle   `json:"scene_style"`
	Quality      Quality      `json:"quality"`
	CreatedAt    time.Time    `json:"created_at"`
}

type GenerationLog struct {
	ID           int64
	UserID       string
	ResultID     string
	BusinessType BusinessType
	SceneStyle   SceneStyle
	Quality      Quality
	Prompt       string
	CreatedAt    time.Time
}

type PurchaseEvent string

const (
	PurchaseRequested PurchaseEvent = "requested"
	PurchaseApproved  PurchaseEvent = "approved"
)

type PurchaseRecord struct {
	ID        int64         `json:"id"`
	UserID    string        `json:"user_id"`
	Package   PackageCode   `json:"package"`
	Event     PurchaseEvent `json:"event"`
	CreatedAt time.Time     `json:"created_at"`
}
