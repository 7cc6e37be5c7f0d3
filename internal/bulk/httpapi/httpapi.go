// Package httpapi holds the request/response plumbing shared by every kind
// handler: envelope decoding, the error-detail payload, and the URL
// parameters common to all search endpoints.
package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"healthreg/internal/bulk/errs"
	"healthreg/internal/bulk/model"
	"healthreg/internal/bulk/validate"
)

// EntityError reports the validation failures of one entity, addressed by
// whichever identifiers the entity carries.
type EntityError struct {
	ID                string       `json:"id,omitempty"`
	ClientReferenceID string       `json:"clientReferenceId,omitempty"`
	Errors            []errs.Error `json:"errors"`
}

// ErrorDetails flattens an error map into response payload form, in batch
// order.
func ErrorDetails[T model.Entity](entities []T, acc validate.ErrorMap[T]) []EntityError {
	var details []EntityError
	for _, entity := range entities {
		failures := acc[entity]
		if len(failures) == 0 {
			continue
		}
		details = append(details, EntityError{
			ID:                entity.GetID(),
			ClientReferenceID: entity.GetClientReferenceID(),
			Errors:            failures,
		})
	}
	return details
}

// WriteJSON writes a JSON response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// ErrorResponse is the body for request-level failures (malformed envelope,
// storage unavailable). Per-entity failures never use it.
type ErrorResponse struct {
	ResponseInfo model.ResponseInfo `json:"ResponseInfo"`
	Error        errs.Error         `json:"Error"`
}

// WriteError responds with a request-level failure.
func WriteError(w http.ResponseWriter, status int, ri model.RequestInfo, code errs.Code, message string) {
	WriteJSON(w, status, ErrorResponse{
		ResponseInfo: model.ResponseInfoFrom(ri, false),
		Error: errs.Error{
			Code:    code,
			Message: message,
			Type:    errs.NonRecoverable,
		},
	})
}

// Decode reads a JSON request body into dst, rejecting unknown top-level
// garbage but tolerating absent optional fields.
func Decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}

// SearchParams carries the pagination and change-tracking parameters every
// search endpoint reads from the URL rather than the body.
type SearchParams struct {
	TenantID         string
	Limit            int
	Offset           int
	LastChangedSince int64
	IncludeDeleted   bool
}

// ParseSearchParams reads the common search parameters, clamping the limit
// into [1, maxLimit] with defaultLimit when absent.
func ParseSearchParams(r *http.Request, defaultLimit, maxLimit int) (SearchParams, error) {
	q := r.URL.Query()
	p := SearchParams{
		TenantID: q.Get("tenantId"),
		Limit:    defaultLimit,
	}
	if p.TenantID == "" {
		return p, fmt.Errorf("tenantId is required")
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return p, fmt.Errorf("invalid limit %q", raw)
		}
		p.Limit = limit
	}
	if p.Limit > maxLimit {
		p.Limit = maxLimit
	}
	if raw := q.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return p, fmt.Errorf("invalid offset %q", raw)
		}
		p.Offset = offset
	}
	if raw := q.Get("lastChangedSince"); raw != "" {
		since, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || since < 0 {
			return p, fmt.Errorf("invalid lastChangedSince %q", raw)
		}
		p.LastChangedSince = since
	}
	if raw := q.Get("includeDeleted"); raw != "" {
		include, err := strconv.ParseBool(raw)
		if err != nil {
			return p, fmt.Errorf("invalid includeDeleted %q", raw)
		}
		p.IncludeDeleted = include
	}
	return p, nil
}

// Apply folds URL parameters into the body criteria; the URL wins for the
// fields it owns.
func (p SearchParams) Apply(criteria *model.SearchCriteria) {
	criteria.TenantID = p.TenantID
	criteria.Limit = p.Limit
	criteria.Offset = p.Offset
	criteria.LastChangedSince = p.LastChangedSince
	criteria.IncludeDeleted = p.IncludeDeleted
}
