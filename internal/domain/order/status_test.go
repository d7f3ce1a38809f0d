package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFulfillmentTransitions(t *testing.T) {
	allowed := []struct{ from, to Status }{
		{StatusPending, StatusProcessing},
		{StatusPending, StatusCancelled},
		{StatusProcessing, StatusShipped},
		{StatusProcessing, StatusCancelled},
		{StatusShipped, StatusDelivered},
	}
	for _, tt := range allowed {
		assert.True(t, tt.from.CanTransitionTo(tt.to), "%s -> %s", tt.from, tt.to)
	}

	forbidden := []struct{ from, to Status }{
		{StatusPending, StatusShipped},
		{StatusPending, StatusDelivered},
		{StatusShipped, StatusCancelled},
		{StatusDelivered, StatusCancelled},
		{StatusDelivered, StatusPending},
		{StatusCancelled, StatusPending},
		{StatusCancelled, StatusProcessing},
		{StatusShipped, StatusPending},
	}
	for _, tt := range forbidden {
		assert.False(t, tt.from.CanTransitionTo(tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestPaymentTransitions(t *testing.T) {
	allowed := []struct{ from, to PaymentStatus }{
		{PaymentInitiated, PaymentPending},
		{PaymentInitiated, PaymentPaid},
		{PaymentInitiated, PaymentFailed},
		{PaymentPending, PaymentPaid},
		{PaymentPending, PaymentFailed},
	}
	for _, tt := range allowed {
		assert.True(t, tt.from.CanTransitionTo(tt.to), "%s -> %s", tt.from, tt.to)
	}

	// Paid is terminal in every direction.
	for _, next := range []PaymentStatus{PaymentInitiated, PaymentPending, PaymentFailed, PaymentPaid} {
		assert.False(t, PaymentPaid.CanTransitionTo(next), "paid -> %s", next)
	}
	assert.False(t, PaymentFailed.CanTransitionTo(PaymentPaid))
}
