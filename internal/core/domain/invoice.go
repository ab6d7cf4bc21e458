package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type InvoiceStatus string

const (
	InvoiceStatusPending   InvoiceStatus = "pending"
	InvoiceStatusPaid      InvoiceStatus = "paid"
	InvoiceStatusUnpaid    InvoiceStatus = "unpaid"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
)

var invoiceTransitions = map[InvoiceStatus][]InvoiceStatus{
	InvoiceStatusPending: {InvoiceStatusPaid, InvoiceStatusUnpaid, InvoiceStatusCancelled},
	InvoiceStatusUnpaid:  {InvoiceStatusPaid, InvoiceStatusCancelled},
}

func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoiceStatusPending, InvoiceStatusPaid, InvoiceStatusUnpaid, InvoiceStatusCancelled:
		return true
	}
	return false
}

func (s InvoiceStatus) CanTransitionTo(next InvoiceStatus) bool {
	return contains(invoiceTransitions[s], next)
}

type InvoiceItem struct {
	ProductID   string `json:"productId"`
	ProductName string `json:"productName"`
	Quantity    int64  `json:"quantity"`
	Price       int64  `json:"price"`
	Total       int64  `json:"total"`
}

type Invoice struct {
	ID        uuid.UUID     `json:"id"`
	OrderID   string        `json:"orderId"`
	BuyerID   string        `json:"buyerId"`
	SellerID  string        `json:"sellerId"`
	Items     []InvoiceItem `json:"items"`
	Subtotal  int64         `json:"subtotal"`
	Tax       int64         `json:"tax"`
	Total     int64         `json:"total"`
	Status    InvoiceStatus `json:"status"`
	PDFURL    *string       `json:"pdfUrl,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// CheckTotals verifies line totals, subtotal and grand total.
func (inv *Invoice) CheckTotals() error {
	if len(inv.Items) == 0 {
		return fmt.Errorf("invoice has no items")
	}
	var subtotal int64
	for i, item := range inv.Items {
		if item.Quantity <= 0 || item.Price < 0 {
			return fmt.Errorf("item %d has invalid quantity or price", i)
		}
		if item.Total != item.Quantity*item.Price {
			return fmt.Errorf("item %d total does not equal quantity times price", i)
		}
		subtotal += item.Total
	}
	if inv.Subtotal != subtotal {
		return fmt.Errorf("subtotal does not equal the sum of item totals")
	}
	if inv.Tax < 0 || inv.Total != inv.Subtotal+inv.Tax {
		return fmt.Errorf("total does not equal subtotal plus tax")
	}
	return nil
}
