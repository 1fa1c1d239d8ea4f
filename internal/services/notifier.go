package services

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Sundaram-65/Campus-marketplace-Fresh/internal/models"
)

// Notifier emits lifecycle notifications. Delivery is best-effort: the
// listing service logs a failed call and carries on, so implementations
// should queue rather than block.
type Notifier interface {
	// NotifyBuyRequest tells the seller a buyer has requested their listing.
	NotifyBuyRequest(ctx context.Context, listing *models.Listing) error
	// NotifySaleConfirmed tells the buyer the seller confirmed the sale.
	NotifySaleConfirmed(ctx context.Context, listing *models.Listing) error
	// NotifySaleRejected tells the rejected buyer. The buyer identity is
	// passed separately because the listing no longer carries it.
	NotifySaleRejected(ctx context.Context, listing *models.Listing, buyerID primitive.ObjectID, buyerName string) error
}

// NopNotifier discards all notifications. Used in tests and in run modes
// without a task queue.
type NopNotifier struct{}

func (NopNotifier) NotifyBuyRequest(context.Context, *models.Listing) error { return nil }
func (NopNotifier) NotifySaleConfirmed(context.Context, *models.Listing) error {
	return nil
}
func (NopNotifier) NotifySaleRejected(context.Context, *models.Listing, primitive.ObjectID, string) error {
	return nil
}
