package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusFailed    OrderStatus = "failed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Order is a storefront order. Metadata carries the shipping snapshot,
// total_price, and qr_object_path once a QR has been issued.
type Order struct {
	ID         int64
	UserID     *int64
	Status     OrderStatus
	Metadata   map[string]any
	QRImageURL *string
	QRCode     *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TotalPrice reads metadata.total_price, which the checkout stores as a number or a string.
func (o *Order) TotalPrice() (decimal.Decimal, bool) {
	switch v := o.Metadata["total_price"].(type) {
	case float64:
		return decimal.NewFromFloat(v), true
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(v))
		return d, err == nil
	case int64:
		return decimal.NewFromInt(v), true
	}
	return decimal.Zero, false
}

// QRObjectPath returns metadata.qr_object_path when present.
func (o *Order) QRObjectPath() string {
	s, _ := o.Metadata["qr_object_path"].(string)
	return strings.TrimSpace(s)
}

// OrderQRPath is the proxy path that serves an order's QR image.
func OrderQRPath(orderID int64) string {
	return "/images/order/" + strconv.FormatInt(orderID, 10)
}

// HasCanonicalQR reports whether qr_image_url already points at the proxy
// route for this order, meaning a QR was issued and attached before.
func (o *Order) HasCanonicalQR() bool {
	if o.QRImageURL == nil {
		return false
	}
	return strings.HasSuffix(strings.TrimRight(*o.QRImageURL, "/"), OrderQRPath(o.ID))
}

// OrderQRKey is the storage key convention for order QR images.
func OrderQRKey(orderID int64, uid string) string {
	return fmt.Sprintf("orders/%d/%s.png", orderID, uid)
}
