package migrations

import (
	"gorm.io/gorm"

	orderspg "github.com/Apurer/delivery-order-engine/internal/domains/orders/adapters/persistence/postgres"
	paymentspg "github.com/Apurer/delivery-order-engine/internal/domains/payments/adapters/persistence/postgres"
	"github.com/Apurer/delivery-order-engine/internal/platform/outbox"
)

// Run applies the schema for both bounded contexts and the outbox. Adapters never
// migrate on their own.
func Run(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	return db.AutoMigrate(
		&orderspg.StoreRecord{},
		&orderspg.ProductRecord{},
		&orderspg.OrderRecord{},
		&orderspg.IdempotencyRecord{},
		&paymentspg.PaymentRecord{},
		&outbox.MessageRecord{},
	)
}
