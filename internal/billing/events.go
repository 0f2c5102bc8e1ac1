package billing

import (
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v76"
)

// Processor event types this service reconciles. Anything else is
// acknowledged and ignored so processor-side additions stay harmless.
const (
	EventCheckoutCompleted   = "checkout.session.completed"
	EventSubscriptionDeleted = "customer.subscription.deleted"
	EventAccountUpdated      = "account.updated"
)

// Event is the closed union of reconcilable processor events.
type Event interface {
	isBillingEvent()
}

// CheckoutCompleted grants a paid entitlement.
type CheckoutCompleted struct {
	UserID             string
	OrgID              string
	CustomerID         string
	SubscriptionID     string
	ConnectedAccountID string
}

// SubscriptionDeleted revokes a paid entitlement.
type SubscriptionDeleted struct {
	UserID string
	OrgID  string
}

// AccountUpdated reflects the connected account's capability flags.
type AccountUpdated struct {
	OrgID            string
	ChargesEnabled   bool
	DetailsSubmitted bool
}

func (CheckoutCompleted) isBillingEvent()   {}
func (SubscriptionDeleted) isBillingEvent() {}
func (AccountUpdated) isBillingEvent()      {}

// ParseEvent maps a verified processor event onto the closed union.
// A nil, nil return means acknowledge-and-skip: an unknown event type,
// or a known type missing the metadata needed to act on it. The skip is
// deliberate — surfacing an error would make the processor redeliver an
// event that can never succeed.
func ParseEvent(event stripe.Event) (Event, error) {
	switch event.Type {
	case EventCheckoutCompleted:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return nil, fmt.Errorf("decode checkout session: %w", err)
		}
		userID := session.Metadata["userId"]
		orgID := session.Metadata["orgId"]
		if userID == "" || orgID == "" {
			return nil, nil
		}
		ev := CheckoutCompleted{
			UserID:             userID,
			OrgID:              orgID,
			ConnectedAccountID: session.Metadata["connectedAccountId"],
		}
		if session.Customer != nil {
			ev.CustomerID = session.Customer.ID
		}
		if session.Subscription != nil {
			ev.SubscriptionID = session.Subscription.ID
		}
		return ev, nil

	case EventSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("decode subscription: %w", err)
		}
		userID := sub.Metadata["userId"]
		orgID := sub.Metadata["orgId"]
		if userID == "" || orgID == "" {
			return nil, nil
		}
		return SubscriptionDeleted{UserID: userID, OrgID: orgID}, nil

	case EventAccountUpdated:
		var account stripe.Account
		if err := json.Unmarshal(event.Data.Raw, &account); err != nil {
			return nil, fmt.Errorf("decode account: %w", err)
		}
		orgID := account.Metadata["orgId"]
		if orgID == "" {
			return nil, nil
		}
		return AccountUpdated{
			OrgID:            orgID,
			ChargesEnabled:   account.ChargesEnabled,
			DetailsSubmitted: account.DetailsSubmitted,
		}, nil
	}

	return nil, nil
}
