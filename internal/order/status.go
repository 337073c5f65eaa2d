package order

import "github.com/andreasstove999/ecommerce-system/storefront-go/internal/apperr"

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

var transitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusDelivered, StatusCancelled},
}

func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return st, nil
	}
	return "", apperr.New(apperr.KindInvalidArgument, "unknown order status %q", s)
}

// IsInitial reports whether an order may be created in status s. The checkout
// caller picks one of the two after confirming payment.
func (s Status) IsInitial() bool {
	return s == StatusPending || s == StatusProcessing
}

func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
