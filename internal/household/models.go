// Package household implements the household registry kind: a unit of
// people living together, addressed for field operations by a locality
// boundary.
package household

import (
	"encoding/json"

	"healthreg/internal/bulk/httpapi"
	"healthreg/internal/bulk/model"
	"healthreg/internal/bulk/store"
)

// Kind is the entity kind name used in topics, metrics, and error messages.
const Kind = "household"

// Address is the household's location, persisted as a document alongside
// the row. LocalityCode is additionally lifted into its own column so
// boundary searches stay indexed.
type Address struct {
	AddressLine1 string  `json:"addressLine1,omitempty"`
	AddressLine2 string  `json:"addressLine2,omitempty"`
	City         string  `json:"city,omitempty"`
	PinCode      string  `json:"pincode,omitempty"`
	LocalityCode string  `json:"localityCode,omitempty"`
	Latitude     float64 `json:"latitude,omitempty"`
	Longitude    float64 `json:"longitude,omitempty"`
}

// Household is one registered household.
type Household struct {
	model.Base
	MemberCount      int             `json:"memberCount,omitempty"`
	Address          *Address        `json:"address,omitempty"`
	AdditionalFields json.RawMessage `json:"additionalFields,omitempty"`
}

func (h *Household) localityCode() string {
	if h.Address == nil {
		return ""
	}
	return h.Address.LocalityCode
}

// Search filters households; identifiers and boundary are the kind-specific
// axes on top of the shared criteria.
type Search struct {
	model.SearchCriteria
	BoundaryCode string `json:"boundaryCode,omitempty"`
}

func (s *Search) SearchBase() model.SearchCriteria { return s.SearchCriteria }

func (s *Search) Clauses() []store.Clause {
	var clauses []store.Clause
	if s.BoundaryCode != "" {
		clauses = append(clauses, store.Clause{Column: "locality_code", Op: "=", Value: s.BoundaryCode})
	}
	return clauses
}

// API envelopes.

type Request struct {
	RequestInfo model.RequestInfo `json:"RequestInfo"`
	Household   *Household        `json:"Household"`
}

type BulkRequest struct {
	RequestInfo model.RequestInfo `json:"RequestInfo"`
	Households  []*Household      `json:"Households"`
}

type SearchRequest struct {
	RequestInfo model.RequestInfo `json:"RequestInfo"`
	Household   *Search           `json:"Household"`
}

type Response struct {
	ResponseInfo model.ResponseInfo `json:"ResponseInfo"`
	Household    *Household         `json:"Household"`
}

type BulkResponse struct {
	ResponseInfo model.ResponseInfo    `json:"ResponseInfo"`
	Households   []*Household          `json:"Households"`
	Errors       []httpapi.EntityError `json:"Errors,omitempty"`
}

type SearchResponse struct {
	ResponseInfo model.ResponseInfo `json:"ResponseInfo"`
	Households   []*Household       `json:"Households"`
	TotalCount   int64              `json:"TotalCount"`
}
