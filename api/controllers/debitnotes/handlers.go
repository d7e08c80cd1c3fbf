package debitnotes

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/siteworks/procurement-backend/api/middleware"
	"github.com/siteworks/procurement-backend/api/responses"
	"github.com/siteworks/procurement-backend/api/validators"
	svc "github.com/siteworks/procurement-backend/internal/debitnotes"
	"github.com/siteworks/procurement-backend/pkg/enums"
	pkgerrors "github.com/siteworks/procurement-backend/pkg/errors"
	"github.com/siteworks/procurement-backend/pkg/logger"
	"github.com/siteworks/procurement-backend/pkg/pagination"
)

const pathParam = "debitNoteId"

// Create raises a new debit note for the company in context.
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

		note, err := service.Create(r.Context(), svc.CreateInput{
			CompanyID:         companyID,
			PurchaseOrderID:   payload.PurchaseOrderID,
			VendorID:          payload.VendorID,
			SiteID:            payload.SiteID,
			SourceDocumentIDs: payload.SourceDocumentIDs,
			Reason:            payload.Reason,
			Remarks:           payload.Remarks,
			GrandTotal:        payload.GrandTotal,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newDebitNote(note))
	}
}

// List pages through the company's debit notes, newest first.
func List(service svc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		companyID, ok := requireCompany(w, r, service, logg)
		if !ok {
			return
		}

		params, err := listParams(r, companyID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := service.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		items := make([]DebitNote, 0, len(result.Items))
		for i := range result.Items {
			items = append(items, newDebitNote(&result.Items[i]))
		}
		responses.WriteSuccess(w, listResponse{Items: items, Cursor: result.Cursor})
	}
}

func Detail(service svc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		companyID, id, ok := requireTarget(w, r, service, logg)
		if !ok {
			return
		}
		note, err := service.Get(r.Context(), companyID, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newDebitNote(note))
	}
}

// Update applies an administrative edit guarded by the note's version.
func Update(service svc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		companyID, id, ok := requireTarget(w, r, service, logg)
		if !ok {
			return
		}

		var payload updateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		note, err := service.Update(r.Context(), svc.UpdateInput{
			CompanyID:         companyID,
			ID:                id,
			Version:           payload.Version,
			Reason:            payload.Reason,
			Remarks:           payload.Remarks,
			SourceDocumentIDs: payload.SourceDocumentIDs,
			GrandTotal:        payload.GrandTotal,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newDebitNote(note))
	}
}

// Send marks a raised debit note as sent to the vendor.
func Send(service svc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		companyID, id, ok := requireTarget(w, r, service, logg)
		if !ok {
			return
		}
		note, err := service.MarkSent(r.Context(), companyID, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newDebitNote(note))
	}
}

func Delete(service svc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		companyID, id, ok := requireTarget(w, r, service, logg)
		if !ok {
			return
		}
		if err := service.Delete(r.Context(), companyID, id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}

func listParams(r *http.Request, companyID uuid.UUID) (svc.ListParams, error) {
	params := svc.ListParams{CompanyID: companyID}

	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return params, err
	}
	params.Limit = limit

	if params.VendorID, err = validators.ParseQueryUUID(r, "vendor_id"); err != nil {
		return params, err
	}
	if params.SiteID, err = validators.ParseQueryUUID(r, "site_id"); err != nil {
		return params, err
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status, err := enums.ParseDebitNoteStatus(raw)
		if err != nil {
			return params, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status").
				WithDetails(map[string]any{"field": "status"})
		}
		params.Status = &status
	}
	params.Cursor = strings.TrimSpace(r.URL.Query().Get("cursor"))
	return params, nil
}

func requireCompany(w http.ResponseWriter, r *http.Request, service svc.Service, logg *logger.Logger) (uuid.UUID, bool) {
	if service == nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "debit notes service unavailable"))
		return uuid.Nil, false
	}
	companyID := middleware.CompanyIDFromContext(r.Context())
	if companyID == uuid.Nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "company context missing"))
		return uuid.Nil, false
	}
	return companyID, true
}

func requireTarget(w http.ResponseWriter, r *http.Request, service svc.Service, logg *logger.Logger) (uuid.UUID, uuid.UUID, bool) {
	companyID, ok := requireCompany(w, r, service, logg)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	id, err := validators.URLParamUUID(r, pathParam)
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return uuid.Nil, uuid.Nil, false
	}
	return companyID, id, true
}
