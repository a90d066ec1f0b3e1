package booking

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/bazaarly/bazaarly-backend/pkg/square"
)

// ChargeInput carries what the payment collaborator needs to collect a stall
// fee.
type ChargeInput struct {
	VendorID    uuid.UUID
	EventID     uuid.UUID
	StallID     uuid.UUID
	AmountCents int64
	SourceID    string
}

// PaymentCharger is the external payment collaborator. Charges run outside
// any database transaction; the ledger state machine absorbs the outcome.
type PaymentCharger interface {
	Charge(ctx context.Context, input ChargeInput) (string, error)
}

type squareCharger struct {
	client *square.Client
}

// NewSquareCharger adapts the Square client to the PaymentCharger contract.
func NewSquareCharger(client *square.Client) (PaymentCharger, error) {
	if client == nil {
		return nil, fmt.Errorf("square client required")
	}
	return &squareCharger{client: client}, nil
}

func (c *squareCharger) Charge(ctx context.Context, input ChargeInput) (string, error) {
	payment, err := c.client.CreatePayment(ctx, square.PaymentCreateParams{
		AmountCents:    input.AmountCents,
		SourceID:       input.SourceID,
		ReferenceID:    input.StallID.String(),
		Note:           fmt.Sprintf("stall booking %s", input.StallID),
		IdempotencyKey: fmt.Sprintf("booking-%s-%s", input.StallID, input.VendorID),
	})
	if err != nil {
		return "", err
	}
	id := payment.GetID()
	if id == nil {
		return "", fmt.Errorf("square payment response missing id")
	}
	return *id, nil
}
