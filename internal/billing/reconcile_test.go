package billing

import (
	"context"
	"errors"
	"testing"

	"creatorchat-service/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// --- mocks ---

type fakeStore struct {
	subs        map[string]model.Subscription // keyed user|org
	customerIDs map[string]string
	onboarding  map[string]bool

	addErr    error
	removeErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		subs:        make(map[string]model.Subscription),
		customerIDs: make(map[string]string),
		onboarding:  make(map[string]bool),
	}
}

func subKey(userID, orgID string) string { return userID + "|" + orgID }

func (s *fakeStore) AddSubscription(_ context.Context, sub model.Subscription) error {
	if s.addErr != nil {
		return s.addErr
	}
	key := subKey(sub.UserID, sub.OrgID)
	if _, exists := s.subs[key]; exists {
		return nil // conflict clause: keep the first row
	}
	s.subs[key] = sub
	return nil
}

func (s *fakeStore) RemoveSubscription(_ context.Context, userID, orgID string) error {
	if s.removeErr != nil {
		return s.removeErr
	}
	delete(s.subs, subKey(userID, orgID))
	return nil
}

func (s *fakeStore) SetUserCustomerID(_ context.Context, userID, customerID string) error {
	if customerID != "" {
		s.customerIDs[userID] = customerID
	}
	return nil
}

func (s *fakeStore) SetOrgOnboarding(_ context.Context, orgID string, complete bool) error {
	s.onboarding[orgID] = complete
	return nil
}

func testReconciler(store EntitlementStore) *Reconciler {
	return NewReconciler(store, zap.NewNop())
}

// --- tests ---

func TestApplyCheckoutCompleted(t *testing.T) {
	store := newFakeStore()
	r := testReconciler(store)

	err := r.Apply(context.Background(), CheckoutCompleted{
		UserID:             "u1",
		OrgID:              "o1",
		CustomerID:         "cus_1",
		SubscriptionID:     "sub_1",
		ConnectedAccountID: "acct_1",
	})
	require.NoError(t, err)

	sub, ok := store.subs[subKey("u1", "o1")]
	require.True(t, ok)
	assert.Equal(t, "sub_1", sub.StripeSubscriptionID)
	assert.Equal(t, "acct_1", sub.ConnectedAccountID)
	assert.Equal(t, "cus_1", store.customerIDs["u1"])
}

func TestApplyCheckoutRedelivery(t *testing.T) {
	store := newFakeStore()
	r := testReconciler(store)

	event := CheckoutCompleted{UserID: "u1", OrgID: "o1", SubscriptionID: "sub_1"}
	require.NoError(t, r.Apply(context.Background(), event))
	require.NoError(t, r.Apply(context.Background(), event))

	assert.Len(t, store.subs, 1)
}

func TestApplyCheckoutStoreFailure(t *testing.T) {
	store := newFakeStore()
	store.addErr = errors.New("db down")
	r := testReconciler(store)

	err := r.Apply(context.Background(), CheckoutCompleted{UserID: "u1", OrgID: "o1"})
	assert.Error(t, err)
}

func TestApplySubscriptionDeleted(t *testing.T) {
	store := newFakeStore()
	store.subs[subKey("u1", "o1")] = model.Subscription{UserID: "u1", OrgID: "o1"}
	r := testReconciler(store)

	require.NoError(t, r.Apply(context.Background(), SubscriptionDeleted{UserID: "u1", OrgID: "o1"}))
	assert.Empty(t, store.subs)
}

func TestApplySubscriptionDeletedNoMatch(t *testing.T) {
	store := newFakeStore()
	r := testReconciler(store)

	// Deleting an entitlement that was never granted (or already removed
	// by a previous delivery) succeeds without error.
	assert.NoError(t, r.Apply(context.Background(), SubscriptionDeleted{UserID: "u1", OrgID: "o1"}))
}

func TestApplyAccountUpdated(t *testing.T) {
	store := newFakeStore()
	r := testReconciler(store)

	require.NoError(t, r.Apply(context.Background(), AccountUpdated{
		OrgID:            "o1",
		ChargesEnabled:   true,
		DetailsSubmitted: true,
	}))
	assert.True(t, store.onboarding["o1"])

	// Both flags are required; either one alone is incomplete.
	require.NoError(t, r.Apply(context.Background(), AccountUpdated{
		OrgID:            "o1",
		ChargesEnabled:   true,
		DetailsSubmitted: false,
	}))
	assert.False(t, store.onboarding["o1"])
}
