package model

import (
	"time"

	"gorm.io/gorm"
)

// Org represents a creator's isolated content-and-billing namespace.
// The primary key is the owning creator's identity-provider subject id,
// so an org can be resolved directly from a verified token.
type Org struct {
	ID                       string         `json:"id" gorm:"primaryKey;type:varchar(128)"`
	Name                     string         `json:"name" gorm:"type:varchar(100);not null"`
	RagieConnectionID        *string        `json:"ragie_connection_id,omitempty" gorm:"type:varchar(128)"`
	StripeAccountID          *string        `json:"stripe_account_id,omitempty" gorm:"type:varchar(128);index"`
	StripeOnboardingComplete bool           `json:"stripe_onboarding_complete" gorm:"default:false"`
	StripePriceID            *string        `json:"stripe_price_id,omitempty" gorm:"type:varchar(128)"`
	SubscriptionPriceCents   *int64         `json:"subscription_price_cents,omitempty"`
	CreatedAt                time.Time      `json:"created_at"`
	UpdatedAt                time.Time      `json:"updated_at"`
	DeletedAt                gorm.DeletedAt `json:"-" gorm:"index"`
}

// HasPaidTier reports whether fans must go through checkout to subscribe.
// A price handle only exists once payment onboarding is complete.
func (o *Org) HasPaidTier() bool {
	return o.StripePriceID != nil && *o.StripePriceID != ""
}
