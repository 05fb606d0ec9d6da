package main

import (
	"github.com/refundly/webhooks/internal/infra/postgres"
)

// Repositories holds all repository instances.
type Repositories struct {
	Subscription *postgres.SubscriptionRepository
	Event        *postgres.EventRepository
	RefundEvent  *postgres.RefundEventRepository
	Refund       *postgres.RefundRepository
	Vendor       *postgres.VendorRepository
}

// NewRepositories initializes all repositories.
func NewRepositories(db *postgres.DB) *Repositories {
	return &Repositories{
		Subscription: postgres.NewSubscriptionRepository(db),
		Event:        postgres.NewEventRepository(db),
		RefundEvent:  postgres.NewRefundEventRepository(db),
		Refund:       postgres.NewRefundRepository(db),
		Vendor:       postgres.NewVendorRepository(db),
	}
}
