package creditnotes

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/siteworks/procurement-backend/api/middleware"
	"github.com/siteworks/procurement-backend/api/responses"
	"github.com/siteworks/procurement-backend/api/validators"
	svc "github.com/siteworks/procurement-backend/internal/creditnotes"
	pkgerrors "github.com/siteworks/procurement-backend/pkg/errors"
	"github.com/siteworks/procurement-backend/pkg/logger"
	"github.com/siteworks/procurement-backend/pkg/pagination"
)

const pathParam = "creditNoteId"

// Create records a vendor credit note and allocates it across the vendor's
// open debit notes for the site, oldest first.
func Create(service svc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		companyID, ok := requireCompany(w, r, service, logg)
		if !ok {
			return
		}

		var payload createRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		date, err := time.Parse(dateLayout, payload.CreditNoteDate)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid credit_note_date"))
			return
		}

		result, err := service.Create(r.Context(), svc.CreateInput{
			CompanyID:           companyID,
			Number:              payload.Number,
			Date:                date,
			Amount:              payload.CreditAmount,
			DocumentRef:         payload.DocumentRef,
			PurchaseOrderNumber: payload.PurchaseOrderNumber,
			VendorID:            payload.VendorID,
			SiteID:              payload.SiteID,
			DebitNoteIDs:        payload.DebitNoteIDs,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newAllocation(result))
	}
}

func List(service svc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		companyID, ok := requireCompany(w, r, service, logg)
		if !ok {
			return
		}

		params := svc.ListParams{CompanyID: companyID, Cursor: strings.TrimSpace(r.URL.Query().Get("cursor"))}
		var err error
		if params.Limit, err = validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if params.VendorID, err = validators.ParseQueryUUID(r, "vendor_id"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if params.SiteID, err = validators.ParseQueryUUID(r, "site_id"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := service.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		items := make([]CreditNote, 0, len(result.Items))
		for i := range result.Items {
			items = append(items, newCreditNote(&result.Items[i]))
		}
		responses.WriteSuccess(w, listResponse{Items: items, Cursor: result.Cursor})
	}
}

func Detail(service svc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		companyID, ok := requireCompany(w, r, service, logg)
		if !ok {
			return
		}
		id, err := validators.URLParamUUID(r, pathParam)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		credit, err := service.Get(r.Context(), companyID, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCreditNote(credit))
	}
}

func requireCompany(w http.ResponseWriter, r *http.Request, service svc.Service, logg *logger.Logger) (uuid.UUID, bool) {
	if service == nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "credit notes service unavailable"))
		return uuid.Nil, false
	}
	companyID := middleware.CompanyIDFromContext(r.Context())
	if companyID == uuid.Nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "company context missing"))
		return uuid.Nil, false
	}
	return companyID, true
}
