package billing

import (
	"fmt"

	"creatorchat-service/pkg/config"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

// StripeClient wraps the payment-processor operations the service
// performs on behalf of creators and fans. Creator-side objects
// (products, prices, checkout and portal sessions) live on the
// creator's connected account, never on the platform account.
type StripeClient struct {
	api           *client.API
	webhookSecret string
	feePercent    int
}

// NewStripeClient creates a client from service configuration.
func NewStripeClient(cfg *config.StripeConfig) *StripeClient {
	api := &client.API{}
	api.Init(cfg.SecretKey, nil)
	return &StripeClient{
		api:           api,
		webhookSecret: cfg.WebhookSecret,
		feePercent:    cfg.PlatformFeePercent,
	}
}

// Enabled reports whether payment configuration is present. Without it
// the paid tier is disabled and only free grants work.
func (s *StripeClient) Enabled() bool {
	return s.webhookSecret != ""
}

// ConstructWebhookEvent verifies the signature header against the
// shared secret before any event content is trusted. The processor
// delivers events at the account's pinned API version, which need not
// match the SDK's, so the version check is relaxed.
func (s *StripeClient) ConstructWebhookEvent(payload []byte, sigHeader string) (stripe.Event, error) {
	return webhook.ConstructEventWithOptions(payload, sigHeader, s.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
}

// CreateConnectAccount creates a Standard connected account for a
// creator and returns its id.
func (s *StripeClient) CreateConnectAccount(email string) (string, error) {
	account, err := s.api.Accounts.New(&stripe.AccountParams{
		Type:  stripe.String(string(stripe.AccountTypeStandard)),
		Email: stripe.String(email),
	})
	if err != nil {
		return "", fmt.Errorf("create connect account: %w", err)
	}
	return account.ID, nil
}

// CreateAccountLink returns a hosted onboarding URL for the account.
func (s *StripeClient) CreateAccountLink(accountID, refreshURL, returnURL string) (string, error) {
	link, err := s.api.AccountLinks.New(&stripe.AccountLinkParams{
		Account:    stripe.String(accountID),
		RefreshURL: stripe.String(refreshURL),
		ReturnURL:  stripe.String(returnURL),
		Type:       stripe.String("account_onboarding"),
	})
	if err != nil {
		return "", fmt.Errorf("create account link: %w", err)
	}
	return link.URL, nil
}

// AccountOnboardingComplete re-checks the connected account's
// capability flags directly with the processor.
func (s *StripeClient) AccountOnboardingComplete(accountID string) (bool, error) {
	account, err := s.api.Accounts.GetByID(accountID, nil)
	if err != nil {
		return false, fmt.Errorf("retrieve account: %w", err)
	}
	return account.ChargesEnabled && account.DetailsSubmitted, nil
}

// CreateSubscriptionPrice creates a monthly recurring price (and its
// product) on the creator's connected account.
func (s *StripeClient) CreateSubscriptionPrice(connectedAccountID string, amountCents int64, productName string) (string, error) {
	productParams := &stripe.ProductParams{
		Name: stripe.String(productName),
	}
	productParams.SetStripeAccount(connectedAccountID)
	product, err := s.api.Products.New(productParams)
	if err != nil {
		return "", fmt.Errorf("create product: %w", err)
	}

	priceParams := &stripe.PriceParams{
		Product:    stripe.String(product.ID),
		UnitAmount: stripe.Int64(amountCents),
		Currency:   stripe.String(string(stripe.CurrencyUSD)),
		Recurring: &stripe.PriceRecurringParams{
			Interval: stripe.String(string(stripe.PriceRecurringIntervalMonth)),
		},
	}
	priceParams.SetStripeAccount(connectedAccountID)
	price, err := s.api.Prices.New(priceParams)
	if err != nil {
		return "", fmt.Errorf("create price: %w", err)
	}

	return price.ID, nil
}

// CreateCheckoutSession opens a subscription-mode checkout on the
// creator's connected account, taking the platform fee. The metadata
// rides on both the session and the subscription so lifecycle webhooks
// can be reconciled later.
func (s *StripeClient) CreateCheckoutSession(priceID, connectedAccountID, successURL, cancelURL string, metadata map[string]string) (string, error) {
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(successURL),
		CancelURL:  stripe.String(cancelURL),
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			ApplicationFeePercent: stripe.Float64(float64(s.feePercent)),
			Metadata:              metadata,
		},
	}
	params.Metadata = metadata
	params.SetStripeAccount(connectedAccountID)

	session, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	return session.URL, nil
}

// CreatePortalSession opens a billing-portal session for a customer on
// the connected account that owns the subscription.
func (s *StripeClient) CreatePortalSession(customerID, connectedAccountID, returnURL string) (string, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	params.SetStripeAccount(connectedAccountID)

	session, err := s.api.BillingPortalSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("create portal session: %w", err)
	}
	return session.URL, nil
}
