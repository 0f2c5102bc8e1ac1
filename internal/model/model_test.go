package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserRoles(t *testing.T) {
	var u User
	assert.False(t, u.HasRole(RoleCreator))

	u.AddRole(RoleUser)
	assert.True(t, u.HasRole(RoleUser))

	u.AddRole(RoleCreator)
	assert.True(t, u.HasRole(RoleUser))
	assert.True(t, u.HasRole(RoleCreator))

	// Adding an existing role is a no-op.
	before := u.Roles
	u.AddRole(RoleCreator)
	assert.Equal(t, before, u.Roles)
}

func TestOrgHasPaidTier(t *testing.T) {
	var org Org
	assert.False(t, org.HasPaidTier())

	empty := ""
	org.StripePriceID = &empty
	assert.False(t, org.HasPaidTier())

	price := "price_123"
	org.StripePriceID = &price
	assert.True(t, org.HasPaidTier())
}

func TestSubscriptionIsPaid(t *testing.T) {
	free := Subscription{UserID: "u1", OrgID: "o1"}
	assert.False(t, free.IsPaid())

	paid := Subscription{UserID: "u1", OrgID: "o1", StripeSubscriptionID: "sub_1"}
	assert.True(t, paid.IsPaid())
}
