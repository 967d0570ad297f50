package customers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/concreta/concreta/internal/shared"
)

type Service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

func (s *Service) Create(ctx context.Context, req CreateCustomerRequest) (*Customer, error) {
	code := strings.TrimSpace(req.Code)
	if code == "" || strings.TrimSpace(req.Name) == "" {
		return nil, shared.Violation(shared.ErrInvalidInput, "code", code, "code and name required")
	}
	if req.CreditLimit.IsNegative() {
		return nil, shared.Violation(shared.ErrInvalidInput, "credit_limit", req.CreditLimit, ">= 0")
	}
	if req.PaymentTermsDays < 0 || req.PaymentTermsDays > 365 {
		return nil, shared.Violation(shared.ErrInvalidInput, "payment_terms_days", req.PaymentTermsDays, "[0, 365]")
	}

	customer := Customer{
		Code:             code,
		Name:             strings.TrimSpace(req.Name),
		CreditLimit:      req.CreditLimit,
		CreditUsed:       decimal.Zero,
		PaymentTermsDays: req.PaymentTermsDays,
		IsActive:         true,
	}
	id, err := s.repo.Create(ctx, customer)
	if err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return nil, fmt.Errorf("%w: %s", shared.ErrInvalidInput, err)
		}
		return nil, fmt.Errorf("create customer: %w", err)
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Update(ctx context.Context, id int64, req UpdateCustomerRequest) (*Customer, error) {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return nil, fmt.Errorf("get customer: %w", err)
	}

	updates := make(map[string]interface{})
	if req.Name != nil {
		updates["name"] = strings.TrimSpace(*req.Name)
	}
	if req.CreditLimit != nil {
		if req.CreditLimit.IsNegative() {
			return nil, shared.Violation(shared.ErrInvalidInput, "credit_limit", *req.CreditLimit, ">= 0")
		}
		updates["credit_limit"] = *req.CreditLimit
	}
	if req.PaymentTermsDays != nil {
		updates["payment_terms_days"] = *req.PaymentTermsDays
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if err := s.repo.Update(ctx, id, updates); err != nil {
		return nil, fmt.Errorf("update customer: %w", err)
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Get(ctx context.Context, id int64) (*Customer, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, req ListCustomersRequest) ([]Customer, int, error) {
	return s.repo.List(ctx, req)
}

// CheckCredit evaluates the credit gate for a projected order amount.
func (s *Service) CheckCredit(ctx context.Context, id int64, projected decimal.Decimal) (CreditDecision, error) {
	if projected.IsNegative() {
		return CreditDecision{}, shared.Violation(shared.ErrInvalidInput, "projected_amount", projected, ">= 0")
	}
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return CreditDecision{}, fmt.Errorf("get customer: %w", err)
	}
	decision := CreditGate(*c, projected)
	if !decision.Allowed {
		s.logger.Info("credit gate denied",
			slog.Int64("customer_id", id),
			slog.String("projected", projected.StringFixed(2)),
			slog.String("overage", decision.Overage.StringFixed(2)))
	}
	return decision, nil
}
