package orders

import "github.com/concreta/concreta/internal/sales/customers"

type CreateFromQuotationRequest struct {
	QuotationID     int64   `json:"quotation_id" validate:"required,gt=0"`
	DeliveryAddress *string `json:"delivery_address,omitempty" validate:"omitempty,max=500"`
}

type ListSalesOrdersRequest struct {
	CustomerID *int64
	Status     *SalesOrderStatus
	Limit      int
	Offset     int
}

// CreateResult carries the order and the credit decision taken for it.
type CreateResult struct {
	Order  *SalesOrder               `json:"order"`
	Credit *customers.CreditDecision `json:"credit,omitempty"`
}
