package customers

import "github.com/shopspring/decimal"

type CreateCustomerRequest struct {
	Code             string          `json:"code" validate:"required,max=50"`
	Name             string          `json:"name" validate:"required,max=200"`
	CreditLimit      decimal.Decimal `json:"credit_limit"`
	PaymentTermsDays int             `json:"payment_terms_days" validate:"gte=0,lte=365"`
}

type UpdateCustomerRequest struct {
	Name             *string          `json:"name,omitempty" validate:"omitempty,max=200"`
	CreditLimit      *decimal.Decimal `json:"credit_limit,omitempty"`
	PaymentTermsDays *int             `json:"payment_terms_days,omitempty" validate:"omitempty,gte=0,lte=365"`
	IsActive         *bool            `json:"is_active,omitempty"`
}

type ListCustomersRequest struct {
	Search   string
	IsActive *bool
	Limit    int
	Offset   int
}
