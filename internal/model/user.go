package model

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// Role tags. A user can carry both: a creator who also subscribes to
// other creators is a fan of those orgs.
const (
	RoleCreator = "creator"
	RoleUser    = "user"
)

// User represents an account keyed by the identity provider's subject id.
// Authentication itself lives with the provider; this record only holds
// the platform-side state hanging off the subject id.
type User struct {
	ID               string         `json:"id" gorm:"primaryKey;type:varchar(128)"`
	Email            string         `json:"email" gorm:"type:varchar(100);index"`
	Roles            string         `json:"roles" gorm:"type:varchar(100)"`
	OwnedOrgID       *string        `json:"owned_org_id,omitempty" gorm:"type:varchar(128);index"`
	StripeCustomerID *string        `json:"stripe_customer_id,omitempty" gorm:"type:varchar(128)"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `json:"-" gorm:"index"`
}

// HasRole reports whether the user carries the given role tag.
func (u *User) HasRole(role string) bool {
	for _, r := range strings.Split(u.Roles, ",") {
		if strings.TrimSpace(r) == role {
			return true
		}
	}
	return false
}

// AddRole adds a role tag if it is not already present.
func (u *User) AddRole(role string) {
	if u.HasRole(role) {
		return
	}
	if u.Roles == "" {
		u.Roles = role
		return
	}
	u.Roles += "," + role
}
