package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/siteworks/procurement-backend/api/responses"
	pkgerrors "github.com/siteworks/procurement-backend/pkg/errors"
	"github.com/siteworks/procurement-backend/pkg/logger"
)

const CompanyIDHeader = "X-Company-Id"

// CompanyContext requires the tenant header and scopes the request to it.
func CompanyContext(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get(CompanyIDHeader))
			if raw == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "company context missing"))
				return
			}
			companyID, err := uuid.Parse(raw)
			if err != nil || companyID == uuid.Nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid company id").
					WithDetails(map[string]any{"header": CompanyIDHeader}))
				return
			}

			ctx := WithCompanyID(r.Context(), companyID)
			if logg != nil {
				ctx = logg.WithCompanyID(ctx, companyID.String())
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
