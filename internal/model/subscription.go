package model

import (
	"time"
)

// Subscription is an entitlement row keyed by (user, org). The unique
// composite index gives set semantics: re-adding an existing pair is a
// no-op, so webhook redelivery cannot duplicate an entitlement.
//
// A free grant is a row with an empty StripeSubscriptionID; a paid
// subscription carries the processor's subscription handle and the
// connected account it was created on.
type Subscription struct {
	ID                   uint      `json:"id" gorm:"primaryKey"`
	UserID               string    `json:"user_id" gorm:"type:varchar(128);not null;uniqueIndex:idx_user_org"`
	OrgID                string    `json:"org_id" gorm:"type:varchar(128);not null;uniqueIndex:idx_user_org"`
	StripeSubscriptionID string    `json:"stripe_subscription_id" gorm:"type:varchar(128)"`
	ConnectedAccountID   string    `json:"connected_account_id" gorm:"type:varchar(128)"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// IsPaid reports whether this entitlement is backed by a processor
// subscription (as opposed to a free self-service grant).
func (s *Subscription) IsPaid() bool {
	return s.StripeSubscriptionID != ""
}
