package handler

import (
	"net/http"
	"time"

	"creatorchat-service/internal/billing"
	"creatorchat-service/internal/middleware"
	"creatorchat-service/internal/model"
	"creatorchat-service/pkg/database"
	"creatorchat-service/pkg/logger"
	"creatorchat-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Minimum monthly price the processor will accept for a USD
// subscription.
const minPriceCents = 100

// BillingHandler serves the creator payment-onboarding flow and the fan
// checkout/portal flow. Every Stripe object it creates lives on the
// creator's connected account.
type BillingHandler struct {
	stripe *billing.StripeClient
	appURL string
}

// NewBillingHandler wires the billing endpoints' collaborators.
func NewBillingHandler(stripe *billing.StripeClient, appURL string) *BillingHandler {
	return &BillingHandler{stripe: stripe, appURL: appURL}
}

func (h *BillingHandler) paymentsDisabled(c echo.Context) error {
	return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "payments are not configured"})
}

// Connect creates (or reuses) a connected account for the caller's org
// and returns a hosted onboarding link.
func (h *BillingHandler) Connect(c echo.Context) error {
	log := logger.FromContext(c)

	if !h.stripe.Enabled() {
		return h.paymentsDisabled(c)
	}

	uid, ok := middleware.AuthUID(c)
	if !ok {
		log.Error("Failed to get subject id from context")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Unauthorized"})
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	var org model.Org
	if result := database.GetDB().First(&org, "id = ?", uid); result.Error != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "org not found"})
	}

	accountID := ""
	if org.StripeAccountID != nil {
		accountID = *org.StripeAccountID
	}
	if accountID == "" {
		created, err := h.stripe.CreateConnectAccount(middleware.AuthEmail(c))
		if err != nil {
			log.Error("Failed to create connected account", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create payment account"})
		}
		accountID = created
		if result := database.GetDB().Model(&org).Update("stripe_account_id", accountID); result.Error != nil {
			log.Error("Failed to save connected account id", zap.Error(result.Error))
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to save payment account"})
		}
	}

	refreshURL := h.appURL + "/dashboard?onboarding=refresh"
	returnURL := h.appURL + "/api/stripe/connect/callback?orgId=" + org.ID
	linkURL, err := h.stripe.CreateAccountLink(accountID, refreshURL, returnURL)
	if err != nil {
		log.Error("Failed to create onboarding link", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create onboarding link"})
	}

	log.Info("Payment onboarding started",
		zap.String("org_id", org.ID),
		zap.String("account_id", accountID))
	return c.JSON(http.StatusOK, echo.Map{"url": linkURL})
}

// ConnectCallback is the return leg of hosted onboarding. It re-checks
// the account's capability flags with the processor rather than trusting
// the redirect, stores the result, and sends the browser back to the
// dashboard. The authoritative flag still arrives via account.updated
// webhooks; this check just makes the dashboard correct immediately.
func (h *BillingHandler) ConnectCallback(c echo.Context) error {
	log := logger.FromContext(c)

	if !h.stripe.Enabled() {
		return h.paymentsDisabled(c)
	}

	orgID := c.QueryParam("orgId")
	if orgID == "" {
		return c.Redirect(http.StatusFound, h.appURL+"/dashboard?error=missing_org")
	}

	var org model.Org
	if result := database.GetDB().First(&org, "id = ?", orgID); result.Error != nil || org.StripeAccountID == nil {
		return c.Redirect(http.StatusFound, h.appURL+"/dashboard?error=missing_account")
	}

	complete, err := h.stripe.AccountOnboardingComplete(*org.StripeAccountID)
	if err != nil {
		log.Error("Failed to check onboarding status", zap.Error(err))
		return c.Redirect(http.StatusFound, h.appURL+"/dashboard?onboarding=pending")
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	if result := database.GetDB().Model(&org).Update("stripe_onboarding_complete", complete); result.Error != nil {
		log.Error("Failed to save onboarding status", zap.Error(result.Error))
	}

	if complete {
		return c.Redirect(http.StatusFound, h.appURL+"/dashboard?onboarding=complete")
	}
	return c.Redirect(http.StatusFound, h.appURL+"/dashboard?onboarding=pending")
}

// CreatePrice sets the org's monthly subscription price. Requires
// completed onboarding; writes the price handle and the display amount
// together so the paid tier switches on atomically.
func (h *BillingHandler) CreatePrice(c echo.Context) error {
	log := logger.FromContext(c)

	if !h.stripe.Enabled() {
		return h.paymentsDisabled(c)
	}

	uid, ok := middleware.AuthUID(c)
	if !ok {
		log.Error("Failed to get subject id from context")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Unauthorized"})
	}

	var req struct {
		AmountCents int64 `json:"amount_cents"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse price request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.AmountCents < minPriceCents {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "amount_cents must be at least 100"})
	}

	var org model.Org
	if result := database.GetDB().First(&org, "id = ?", uid); result.Error != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "org not found"})
	}
	if org.StripeAccountID == nil || !org.StripeOnboardingComplete {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "payment onboarding is not complete"})
	}

	priceID, err := h.stripe.CreateSubscriptionPrice(*org.StripeAccountID, req.AmountCents, org.Name+" subscription")
	if err != nil {
		log.Error("Failed to create subscription price", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create price"})
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	updates := map[string]interface{}{
		"stripe_price_id":          priceID,
		"subscription_price_cents": req.AmountCents,
	}
	if result := database.GetDB().Model(&org).Updates(updates); result.Error != nil {
		log.Error("Failed to save price", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to save price"})
	}

	log.Info("Subscription price set",
		zap.String("org_id", org.ID),
		zap.Int64("amount_cents", req.AmountCents))
	return c.JSON(http.StatusOK, echo.Map{
		"price_id":     priceID,
		"amount_cents": req.AmountCents,
	})
}

// Checkout opens a subscription checkout session for the caller against
// a paid org. The session metadata carries the (user, org) pair the
// completion webhook needs to grant the entitlement.
func (h *BillingHandler) Checkout(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordSubscriptionOperation("checkout")

	if !h.stripe.Enabled() {
		return h.paymentsDisabled(c)
	}

	uid, ok := middleware.AuthUID(c)
	if !ok {
		log.Error("Failed to get subject id from context")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Unauthorized"})
	}

	var req struct {
		OrgID string `json:"orgId"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse checkout request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.OrgID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "orgId is required"})
	}

	var org model.Org
	if result := database.GetDB().First(&org, "id = ?", req.OrgID); result.Error != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "org not found"})
	}
	if !org.HasPaidTier() || org.StripeAccountID == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "org has no paid tier"})
	}

	successURL := h.appURL + "/chat?subscribed=" + org.ID
	cancelURL := h.appURL + "/select-creator?canceled=true"
	metadata := map[string]string{
		"userId":             uid,
		"orgId":              org.ID,
		"connectedAccountId": *org.StripeAccountID,
	}

	sessionURL, err := h.stripe.CreateCheckoutSession(*org.StripePriceID, *org.StripeAccountID, successURL, cancelURL, metadata)
	if err != nil {
		log.Error("Failed to create checkout session", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create checkout session"})
	}

	log.Info("Checkout session created",
		zap.String("user_id", uid),
		zap.String("org_id", org.ID))
	return c.JSON(http.StatusOK, echo.Map{"url": sessionURL})
}

// Portal opens a billing-portal session so a fan can manage or cancel a
// paid subscription. Cancellations come back through the
// subscription.deleted webhook.
func (h *BillingHandler) Portal(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordSubscriptionOperation("portal")

	if !h.stripe.Enabled() {
		return h.paymentsDisabled(c)
	}

	uid, ok := middleware.AuthUID(c)
	if !ok {
		log.Error("Failed to get subject id from context")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Unauthorized"})
	}

	var req struct {
		OrgID string `json:"orgId"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse portal request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.OrgID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "orgId is required"})
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var user model.User
	if result := database.GetDB().First(&user, "id = ?", uid); result.Error != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "account not found"})
	}
	if user.StripeCustomerID == nil || *user.StripeCustomerID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "no billing history"})
	}

	var org model.Org
	if result := database.GetDB().First(&org, "id = ?", req.OrgID); result.Error != nil || org.StripeAccountID == nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "org has no payment account"})
	}

	portalURL, err := h.stripe.CreatePortalSession(*user.StripeCustomerID, *org.StripeAccountID, h.appURL+"/chat")
	if err != nil {
		log.Error("Failed to create portal session", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create portal session"})
	}

	return c.JSON(http.StatusOK, echo.Map{"url": portalURL})
}
