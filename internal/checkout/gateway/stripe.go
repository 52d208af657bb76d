package gateway

import (
	"context"
	"fmt"
	"strings"

	checkoutdomain "github.com/smallbiznis/coursepass/internal/checkout/domain"
	"github.com/smallbiznis/coursepass/internal/config"
	"github.com/stripe/stripe-go/v82"
	portalsession "github.com/stripe/stripe-go/v82/billingportal/session"
	stripesession "github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/customer"
	"go.uber.org/zap"
)

// Stripe talks to the Stripe API. The function fields default to the
// stripe-go clients and are swapped in tests.
type Stripe struct {
	enabled bool
	log     *zap.Logger

	createCustomer        func(params *stripe.CustomerParams) (*stripe.Customer, error)
	createCheckoutSession func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	createPortalSession   func(params *stripe.BillingPortalSessionParams) (*stripe.BillingPortalSession, error)
}

func NewStripe(cfg config.Config, log *zap.Logger) checkoutdomain.Gateway {
	key := strings.TrimSpace(cfg.Stripe.SecretKey)
	log = log.Named("checkout.gateway.stripe")
	if key == "" {
		log.Warn("stripe secret key not configured, checkout disabled")
	} else {
		stripe.Key = key
	}
	return &Stripe{
		enabled:               key != "",
		log:                   log,
		createCustomer:        customer.New,
		createCheckoutSession: stripesession.New,
		createPortalSession:   portalsession.New,
	}
}

func (s *Stripe) CreateCustomer(ctx context.Context, req checkoutdomain.CustomerRequest) (string, error) {
	if !s.enabled {
		return "", checkoutdomain.ErrGatewayUnavailable
	}
	params := &stripe.CustomerParams{
		Email: stripe.String(req.Email),
		Name:  stripe.String(req.Name),
	}
	params.Context = ctx
	params.AddMetadata(checkoutdomain.MetadataUserID, req.UserID)

	created, err := s.createCustomer(params)
	if err != nil {
		return "", fmt.Errorf("create stripe customer: %w", err)
	}
	if created == nil || strings.TrimSpace(created.ID) == "" {
		return "", fmt.Errorf("stripe returned empty customer id")
	}
	return created.ID, nil
}

func (s *Stripe) CreateCheckoutSession(ctx context.Context, req checkoutdomain.SessionRequest) (*checkoutdomain.Session, error) {
	if !s.enabled {
		return nil, checkoutdomain.ErrGatewayUnavailable
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(req.Mode),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
		Metadata:   req.Metadata,
	}
	params.Context = ctx
	if req.CustomerID != "" {
		params.Customer = stripe.String(req.CustomerID)
	}

	item := &stripe.CheckoutSessionLineItemParams{Quantity: stripe.Int64(1)}
	switch {
	case req.PriceID != "":
		item.Price = stripe.String(req.PriceID)
	case req.LineItem != nil:
		product := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripe.String(req.LineItem.Name),
		}
		if req.LineItem.ImageURL != "" {
			product.Images = stripe.StringSlice([]string{req.LineItem.ImageURL})
		}
		item.PriceData = &stripe.CheckoutSessionLineItemPriceDataParams{
			Currency:    stripe.String(req.LineItem.Currency),
			UnitAmount:  stripe.Int64(req.LineItem.UnitAmount),
			ProductData: product,
		}
	default:
		return nil, fmt.Errorf("checkout session needs a price or line item")
	}
	params.LineItems = []*stripe.CheckoutSessionLineItemParams{item}

	if len(req.SubscriptionMetadata) > 0 {
		params.SubscriptionData = &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: req.SubscriptionMetadata,
		}
	}

	session, err := s.createCheckoutSession(params)
	if err != nil {
		return nil, fmt.Errorf("create stripe checkout session: %w", err)
	}
	if session == nil || strings.TrimSpace(session.URL) == "" {
		return nil, fmt.Errorf("stripe returned empty checkout URL")
	}
	return &checkoutdomain.Session{ID: session.ID, URL: strings.TrimSpace(session.URL)}, nil
}

func (s *Stripe) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	if !s.enabled {
		return "", checkoutdomain.ErrGatewayUnavailable
	}
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx

	session, err := s.createPortalSession(params)
	if err != nil {
		return "", fmt.Errorf("create stripe billing portal session: %w", err)
	}
	if session == nil || strings.TrimSpace(session.URL) == "" {
		return "", fmt.Errorf("stripe returned empty billing portal URL")
	}
	return strings.TrimSpace(session.URL), nil
}
