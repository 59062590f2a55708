package outbox

import (
	"context"

	"github.com/Apurer/delivery-order-engine/internal/domains/orders/domain"
	"github.com/Apurer/delivery-order-engine/internal/domains/orders/ports"
	platformoutbox "github.com/Apurer/delivery-order-engine/internal/platform/outbox"
	"github.com/Apurer/delivery-order-engine/internal/shared/txn"
)

var _ ports.EventPublisher = (*Publisher)(nil)

// Notifier is woken once an outbox write has committed.
type Notifier interface {
	Notify()
}

// Publisher writes order events to the transactional outbox.
type Publisher struct {
	store    platformoutbox.Store
	notifier Notifier
}

func NewPublisher(store platformoutbox.Store, notifier Notifier) *Publisher {
	return &Publisher{store: store, notifier: notifier}
}

func (p *Publisher) Publish(ctx context.Context, event domain.Event) error {
	msg, err := platformoutbox.NewMessage(event.EventName(), aggregateID(event), event, event.OccurredAt())
	if err != nil {
		return err
	}
	if err := p.store.Append(ctx, msg); err != nil {
		return err
	}
	if p.notifier == nil {
		return nil
	}
	return txn.AfterCommit(ctx, func(context.Context) { p.notifier.Notify() })
}

func aggregateID(event domain.Event) string {
	switch e := event.(type) {
	case domain.PaymentRequested:
		return e.OrderID
	case *domain.PaymentRequested:
		return e.OrderID
	default:
		return ""
	}
}
