package entity

import "time"

// ProviderLink maps a local account to an external provider identity and
// carries the current token bundle for that identity. ProviderUserID is
// unique across the store, and an account has at most one link.
type ProviderLink struct {
	ID             uint   `gorm:"primaryKey" json:"id"`
	AccountID      uint   `gorm:"not null;uniqueIndex" json:"account_id"`
	ProviderUserID string `gorm:"size:255;not null;uniqueIndex" json:"provider_user_id"`

	Bundle TokenBundle `gorm:"embedded" json:"bundle"`

	// Sync progress markers owned by the downstream data collector.
	// Stored and carried across token updates, never interpreted here.
	AllSynced      bool       `gorm:"not null;default:false" json:"all_synced"`
	SubscriptionID string     `gorm:"size:100;not null;default:''" json:"subscription_id,omitempty"`
	LatestSyncedAt *time.Time `gorm:"type:timestamp" json:"latest_synced_at,omitempty"`
	CollectorID    *int64     `json:"collector_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (ProviderLink) TableName() string {
	return "provider_links"
}
