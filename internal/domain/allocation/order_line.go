package allocation

import (
	"strings"

	"github.com/erp/allocation/internal/domain/shared"
)

// OrderLine is one line of customer demand. It is a value: two lines with the
// same fields are the same line.
type OrderLine struct {
	OrderID string `json:"order_id"`
	SKU     string `json:"sku"`
	Qty     int    `json:"qty"`
}

// lineKey identifies an order line inside a batch's allocation set
type lineKey struct {
	orderID string
	sku     string
}

// NewOrderLine creates a validated order line
func NewOrderLine(orderID, sku string, qty int) (OrderLine, error) {
	if strings.TrimSpace(orderID) == "" {
		return OrderLine{}, shared.NewDomainError("INVALID_ORDER_ID", "Order ID cannot be empty")
	}
	if strings.TrimSpace(sku) == "" {
		return OrderLine{}, shared.NewDomainError("INVALID_SKU_VALUE", "SKU cannot be empty")
	}
	if qty <= 0 {
		return OrderLine{}, shared.NewDomainError("INVALID_QUANTITY", "Quantity must be positive")
	}
	return OrderLine{OrderID: orderID, SKU: sku, Qty: qty}, nil
}

func (l OrderLine) key() lineKey {
	return lineKey{orderID: l.OrderID, sku: l.SKU}
}
