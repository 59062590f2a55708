package application

import (
	"errors"
	"fmt"

	"github.com/Apurer/delivery-order-engine/internal/domains/orders/domain"
)

var (
	// ErrInvalidInput signals the request violated a domain invariant.
	ErrInvalidInput = errors.New("invalid order input")
)

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrMissingCustomer) ||
		errors.Is(err, domain.ErrMissingStore) ||
		errors.Is(err, domain.ErrNoLineItems) ||
		errors.Is(err, domain.ErrInvalidQuantity) ||
		errors.Is(err, domain.ErrQuantityTooLarge) ||
		errors.Is(err, domain.ErrTotalOverflow) ||
		errors.Is(err, domain.ErrInvalidUnitPrice) ||
		errors.Is(err, domain.ErrMissingProduct) ||
		errors.Is(err, domain.ErrAddressTooLong) ||
		errors.Is(err, domain.ErrMemoTooLong) {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return err
}
