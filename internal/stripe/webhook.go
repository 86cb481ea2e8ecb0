package stripe

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/stripe/stripe-go/v81/webhook"

	"github.com/xenking/greencart/internal/domain/payment"
)

var _ payment.WebhookVerifier = (*Verifier)(nil)

// Verifier authenticates Stripe webhook payloads with the endpoint secret.
type Verifier struct {
	secret string
}

// NewVerifier creates a Verifier for the given endpoint secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: secret}
}

// VerifyEvent checks the Stripe-Signature header against payload and
// decodes the event. For payment intent events the intent id is taken
// from the event data object.
func (v *Verifier) VerifyEvent(payload []byte, signature string) (*payment.Event, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, v.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, errors.Wrapf(payment.ErrInvalidSignature, "%s", err.Error())
	}

	e := &payment.Event{
		ID:   event.ID,
		Type: payment.EventType(event.Type),
	}
	switch e.Type {
	case payment.EventPaymentSucceeded, payment.EventPaymentFailed:
		if event.Data == nil {
			return nil, errors.Errorf("event %s has no data", event.ID)
		}
		id, err := objectID(event.Data.Raw)
		if err != nil {
			return nil, errors.Wrapf(err, "decode event %s", event.ID)
		}
		e.PaymentIntentID = id
	}
	return e, nil
}

// objectID reads the "id" field of a Stripe data object.
func objectID(raw []byte) (string, error) {
	var id string
	err := jx.DecodeBytes(raw).Obj(func(d *jx.Decoder, key string) error {
		if key != "id" {
			return d.Skip()
		}
		s, err := d.Str()
		id = s
		return err
	})
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", errors.New("object id is empty")
	}
	return id, nil
}
