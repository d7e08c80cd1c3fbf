package middleware

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const ctxCompanyID contextKey = "company_id"

// CompanyIDFromContext returns the tenant set by CompanyContext, or uuid.Nil.
func CompanyIDFromContext(ctx context.Context) uuid.UUID {
	if ctx == nil {
		return uuid.Nil
	}
	if v, ok := ctx.Value(ctxCompanyID).(uuid.UUID); ok {
		return v
	}
	return uuid.Nil
}

// WithCompanyID injects the tenant identifier into the context.
func WithCompanyID(ctx context.Context, companyID uuid.UUID) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxCompanyID, companyID)
}
