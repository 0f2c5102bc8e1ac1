package store

import (
	"context"
	"errors"
	"time"

	"creatorchat-service/internal/model"
	"creatorchat-service/prometheus"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store is the durable entitlement record: which accounts may chat
// against which orgs. Chat-access checks read it; the webhook
// reconciler and the free-tier handlers write it.
//
// Adds and removes are keyed single-row operations so concurrent
// deliveries for the same account commute; there is no read-modify-write
// on a set value, and no transaction ever spans the users and orgs
// tables.
type Store struct {
	db *gorm.DB
}

// New creates a store on the given database handle.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// AddSubscription grants an entitlement. Redelivery-safe: inserting an
// existing (user, org) pair is a no-op thanks to the composite unique
// index, so the subscribed set keeps set semantics.
func (s *Store) AddSubscription(ctx context.Context, sub model.Subscription) error {
	defer prometheus.TrackDBOperation("insert")(time.Now())
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "org_id"}},
			DoNothing: true,
		}).
		Create(&sub).Error
}

// RemoveSubscription revokes an entitlement. Removing an absent pair is
// a no-op, which keeps subscription.deleted redelivery safe.
func (s *Store) RemoveSubscription(ctx context.Context, userID, orgID string) error {
	defer prometheus.TrackDBOperation("delete")(time.Now())
	return s.db.WithContext(ctx).
		Where("user_id = ? AND org_id = ?", userID, orgID).
		Delete(&model.Subscription{}).Error
}

// SetUserCustomerID records the payment-processor customer handle on an
// account. Independent of the subscription row: each write is
// individually idempotent.
func (s *Store) SetUserCustomerID(ctx context.Context, userID, customerID string) error {
	if customerID == "" {
		return nil
	}
	defer prometheus.TrackDBOperation("update")(time.Now())
	return s.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", userID).
		Update("stripe_customer_id", customerID).Error
}

// SetOrgOnboarding reflects the connected payment account's capability
// flags into the org's onboarding-completion flag.
func (s *Store) SetOrgOnboarding(ctx context.Context, orgID string, complete bool) error {
	defer prometheus.TrackDBOperation("update")(time.Now())
	return s.db.WithContext(ctx).
		Model(&model.Org{}).
		Where("id = ?", orgID).
		Update("stripe_onboarding_complete", complete).Error
}

// HasEntitlement reports whether the account may chat against the org.
func (s *Store) HasEntitlement(ctx context.Context, userID, orgID string) (bool, error) {
	defer prometheus.TrackDBOperation("query")(time.Now())
	var count int64
	err := s.db.WithContext(ctx).
		Model(&model.Subscription{}).
		Where("user_id = ? AND org_id = ?", userID, orgID).
		Count(&count).Error
	return count > 0, err
}

// ListSubscribedOrgIDs returns the org ids the account is entitled to.
func (s *Store) ListSubscribedOrgIDs(ctx context.Context, userID string) ([]string, error) {
	defer prometheus.TrackDBOperation("query")(time.Now())
	var orgIDs []string
	err := s.db.WithContext(ctx).
		Model(&model.Subscription{}).
		Where("user_id = ?", userID).
		Order("created_at").
		Pluck("org_id", &orgIDs).Error
	return orgIDs, err
}

// FindSubscription returns the account's active-subscription record for
// the org, or nil when none exists.
func (s *Store) FindSubscription(ctx context.Context, userID, orgID string) (*model.Subscription, error) {
	defer prometheus.TrackDBOperation("query")(time.Now())
	var sub model.Subscription
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND org_id = ?", userID, orgID).
		First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}
