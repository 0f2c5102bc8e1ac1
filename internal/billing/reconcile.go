package billing

import (
	"context"
	"fmt"

	"creatorchat-service/internal/model"

	"go.uber.org/zap"
)

// EntitlementStore is the slice of the durable store the reconciler
// mutates. All three writes are individually idempotent, which is what
// makes processor redelivery safe.
type EntitlementStore interface {
	AddSubscription(ctx context.Context, sub model.Subscription) error
	RemoveSubscription(ctx context.Context, userID, orgID string) error
	SetUserCustomerID(ctx context.Context, userID, customerID string) error
	SetOrgOnboarding(ctx context.Context, orgID string, complete bool) error
}

// Reconciler folds asynchronous processor lifecycle events into the
// entitlement store.
type Reconciler struct {
	store EntitlementStore
	log   *zap.Logger
}

// NewReconciler creates a reconciler over the given store.
func NewReconciler(store EntitlementStore, log *zap.Logger) *Reconciler {
	return &Reconciler{store: store, log: log}
}

// Apply reconciles one parsed event. A returned error means the write
// failed and the processor should redeliver; everything else succeeds.
func (r *Reconciler) Apply(ctx context.Context, event Event) error {
	switch ev := event.(type) {
	case CheckoutCompleted:
		sub := model.Subscription{
			UserID:               ev.UserID,
			OrgID:                ev.OrgID,
			StripeSubscriptionID: ev.SubscriptionID,
			ConnectedAccountID:   ev.ConnectedAccountID,
		}
		if err := r.store.AddSubscription(ctx, sub); err != nil {
			return fmt.Errorf("add subscription: %w", err)
		}
		// Customer handle lives on the account record; written
		// separately and idempotently, no transaction with the row
		// above.
		if err := r.store.SetUserCustomerID(ctx, ev.UserID, ev.CustomerID); err != nil {
			return fmt.Errorf("set customer id: %w", err)
		}
		r.log.Info("Subscription activated",
			zap.String("user_id", ev.UserID),
			zap.String("org_id", ev.OrgID),
			zap.String("stripe_subscription_id", ev.SubscriptionID))
		return nil

	case SubscriptionDeleted:
		// Removal of an already-removed pair is a no-op, so a
		// redelivered or out-of-order delete stays safe.
		if err := r.store.RemoveSubscription(ctx, ev.UserID, ev.OrgID); err != nil {
			return fmt.Errorf("remove subscription: %w", err)
		}
		r.log.Info("Subscription deactivated",
			zap.String("user_id", ev.UserID),
			zap.String("org_id", ev.OrgID))
		return nil

	case AccountUpdated:
		complete := ev.ChargesEnabled && ev.DetailsSubmitted
		if err := r.store.SetOrgOnboarding(ctx, ev.OrgID, complete); err != nil {
			return fmt.Errorf("set onboarding flag: %w", err)
		}
		r.log.Info("Org onboarding flag updated",
			zap.String("org_id", ev.OrgID),
			zap.Bool("complete", complete))
		return nil
	}

	return fmt.Errorf("unhandled billing event %T", event)
}
