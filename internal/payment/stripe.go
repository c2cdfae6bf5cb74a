// Package payment adapts the Stripe SDK to the booking core's
// Gateway port.  The core only ever sees authorization results and
// webhook outcomes; Stripe types stay inside this package.
package payment

import (
    "context"
    "encoding/json"
    "fmt"

    stripe "github.com/stripe/stripe-go/v76"
    "github.com/stripe/stripe-go/v76/client"
    "github.com/stripe/stripe-go/v76/webhook"

    "github.com/velatours/excursion-booking/internal/booking"
)

// StripeGateway implements booking.Gateway on top of Stripe payment
// intents and verifies webhook signatures for the callback handler.
type StripeGateway struct {
    api           *client.API
    webhookSecret string
}

// NewStripeGateway constructs a gateway with its own API client.
func NewStripeGateway(secretKey, webhookSecret string) *StripeGateway {
    api := &client.API{}
    api.Init(secretKey, nil)
    return &StripeGateway{api: api, webhookSecret: webhookSecret}
}

// Authorize creates a payment intent for the requested amount.  The
// correlation token and booking details ride along as metadata so
// the charge remains traceable from the Stripe dashboard and from
// webhook payloads.
func (g *StripeGateway) Authorize(ctx context.Context, req booking.AuthorizeRequest) (*booking.Authorization, error) {
    params := &stripe.PaymentIntentParams{
        Amount:   stripe.Int64(req.AmountCents),
        Currency: stripe.String(req.Currency),
        AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
            Enabled: stripe.Bool(true),
        },
    }
    params.Context = ctx
    for k, v := range req.Metadata {
        params.AddMetadata(k, v)
    }
    params.AddMetadata("correlation_token", req.CorrelationToken)

    pi, err := g.api.PaymentIntents.New(params)
    if err != nil {
        return nil, fmt.Errorf("create payment intent: %w", err)
    }
    return &booking.Authorization{ClientToken: pi.ClientSecret, GatewayRef: pi.ID}, nil
}

// Outcome is a decoded webhook delivery.  Handled is false for event
// types the booking flow does not care about; such deliveries are
// acknowledged without touching any attempt.
type Outcome struct {
    GatewayRef string
    Succeeded  bool
    Handled    bool
}

// ParseWebhook verifies the signature of a raw webhook payload and
// maps payment intent outcomes.  A signature failure is a caller
// error (the delivery is not from Stripe) and must result in a 4xx,
// never in any state change.
func (g *StripeGateway) ParseWebhook(payload []byte, signatureHeader string) (*Outcome, error) {
    ev, err := webhook.ConstructEvent(payload, signatureHeader, g.webhookSecret)
    if err != nil {
        return nil, fmt.Errorf("verify webhook signature: %w", err)
    }
    switch ev.Type {
    case "payment_intent.succeeded", "payment_intent.payment_failed":
        var pi stripe.PaymentIntent
        if err := json.Unmarshal(ev.Data.Raw, &pi); err != nil {
            return nil, fmt.Errorf("decode payment intent: %w", err)
        }
        return &Outcome{
            GatewayRef: pi.ID,
            Succeeded:  ev.Type == "payment_intent.succeeded",
            Handled:    true,
        }, nil
    default:
        return &Outcome{Handled: false}, nil
    }
}
