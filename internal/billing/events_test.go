package billing

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"
)

func stripeEvent(eventType string, raw string) stripe.Event {
	return stripe.Event{
		Type: stripe.EventType(eventType),
		Data: &stripe.EventData{Raw: json.RawMessage(raw)},
	}
}

func TestParseCheckoutCompleted(t *testing.T) {
	ev, err := ParseEvent(stripeEvent(EventCheckoutCompleted, `{
		"metadata": {"userId": "u1", "orgId": "o1", "connectedAccountId": "acct_1"},
		"customer": {"id": "cus_1"},
		"subscription": {"id": "sub_1"}
	}`))
	require.NoError(t, err)

	checkout, ok := ev.(CheckoutCompleted)
	require.True(t, ok, "expected CheckoutCompleted, got %T", ev)
	assert.Equal(t, CheckoutCompleted{
		UserID:             "u1",
		OrgID:              "o1",
		CustomerID:         "cus_1",
		SubscriptionID:     "sub_1",
		ConnectedAccountID: "acct_1",
	}, checkout)
}

func TestParseCheckoutMissingMetadataSkips(t *testing.T) {
	ev, err := ParseEvent(stripeEvent(EventCheckoutCompleted, `{
		"metadata": {"userId": "u1"},
		"customer": {"id": "cus_1"}
	}`))
	require.NoError(t, err)
	assert.Nil(t, ev)
}

func TestParseSubscriptionDeleted(t *testing.T) {
	ev, err := ParseEvent(stripeEvent(EventSubscriptionDeleted, `{
		"metadata": {"userId": "u1", "orgId": "o1"}
	}`))
	require.NoError(t, err)
	assert.Equal(t, SubscriptionDeleted{UserID: "u1", OrgID: "o1"}, ev)
}

func TestParseSubscriptionDeletedMissingMetadataSkips(t *testing.T) {
	ev, err := ParseEvent(stripeEvent(EventSubscriptionDeleted, `{"metadata": {}}`))
	require.NoError(t, err)
	assert.Nil(t, ev)
}

func TestParseAccountUpdated(t *testing.T) {
	ev, err := ParseEvent(stripeEvent(EventAccountUpdated, `{
		"metadata": {"orgId": "o1"},
		"charges_enabled": true,
		"details_submitted": false
	}`))
	require.NoError(t, err)
	assert.Equal(t, AccountUpdated{
		OrgID:            "o1",
		ChargesEnabled:   true,
		DetailsSubmitted: false,
	}, ev)
}

func TestParseUnknownEventTypeSkips(t *testing.T) {
	ev, err := ParseEvent(stripeEvent("invoice.paid", `{"id": "in_1"}`))
	require.NoError(t, err)
	assert.Nil(t, ev)
}

func TestParseUndecodablePayload(t *testing.T) {
	_, err := ParseEvent(stripeEvent(EventCheckoutCompleted, `{broken`))
	assert.Error(t, err)
}
