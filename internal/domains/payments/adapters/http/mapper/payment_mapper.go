package mapper

import (
	"time"

	"github.com/Apurer/delivery-order-engine/internal/domains/payments/domain"
)

// Payment is the HTTP view of an order's payment. The gateway key stays internal.
type Payment struct {
	PaymentID     string    `json:"paymentId"`
	OrderID       string    `json:"orderId"`
	Amount        int64     `json:"amount"`
	Status        string    `json:"status"`
	FailureCode   string    `json:"failureCode,omitempty"`
	FailureReason string    `json:"failureReason,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func FromPayment(p *domain.Payment) Payment {
	if p == nil {
		return Payment{}
	}
	return Payment{
		PaymentID:     p.ID,
		OrderID:       p.OrderID,
		Amount:        p.Amount,
		Status:        string(p.Status),
		FailureCode:   p.FailureCode,
		FailureReason: p.FailureReason,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}
