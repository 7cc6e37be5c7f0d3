// Package stock implements the stock-transaction registry kind: movements
// of product variants in and out of facilities. Product variants and
// facilities are owned by remote registries.
package stock

import (
	"healthreg/internal/bulk/httpapi"
	"healthreg/internal/bulk/model"
	"healthreg/internal/bulk/store"
)

const Kind = "stock"

// Stock records one stock transaction at a facility.
type Stock struct {
	model.Base
	ProductVariantID     string `json:"productVariantId"`
	FacilityID           string `json:"facilityId"`
	Quantity             int    `json:"quantity"`
	WayBillNumber        string `json:"wayBillNumber,omitempty"`
	TransactionType      string `json:"transactionType"`
	TransactionReason    string `json:"transactionReason,omitempty"`
	ReferenceID          string `json:"referenceId,omitempty"`
	ReferenceIDType      string `json:"referenceIdType,omitempty"`
	TransactingPartyID   string `json:"transactingPartyId,omitempty"`
	TransactingPartyType string `json:"transactingPartyType,omitempty"`
}

func (s *Stock) productVariantRefs() []string {
	if s.ProductVariantID == "" {
		return nil
	}
	return []string{s.ProductVariantID}
}

func (s *Stock) facilityRefs() []string {
	if s.FacilityID == "" {
		return nil
	}
	return []string{s.FacilityID}
}

// Search filters stock transactions.
type Search struct {
	model.SearchCriteria
	ProductVariantIDs []string `json:"productVariantId,omitempty"`
	FacilityIDs       []string `json:"facilityId,omitempty"`
	TransactionType   string   `json:"transactionType,omitempty"`
	ReferenceID       string   `json:"referenceId,omitempty"`
	WayBillNumber     string   `json:"wayBillNumber,omitempty"`
}

func (s *Search) SearchBase() model.SearchCriteria { return s.SearchCriteria }

func (s *Search) Clauses() []store.Clause {
	var clauses []store.Clause
	if len(s.ProductVariantIDs) > 0 {
		clauses = append(clauses, store.Clause{Column: "product_variant_id", Op: "IN", Value: s.ProductVariantIDs})
	}
	if len(s.FacilityIDs) > 0 {
		clauses = append(clauses, store.Clause{Column: "facility_id", Op: "IN", Value: s.FacilityIDs})
	}
	if s.TransactionType != "" {
		clauses = append(clauses, store.Clause{Column: "transaction_type", Op: "=", Value: s.TransactionType})
	}
	if s.ReferenceID != "" {
		clauses = append(clauses, store.Clause{Column: "reference_id", Op: "=", Value: s.ReferenceID})
	}
	if s.WayBillNumber != "" {
		clauses = append(clauses, store.Clause{Column: "way_bill_number", Op: "=", Value: s.WayBillNumber})
	}
	return clauses
}

// API envelopes.

type Request struct {
	RequestInfo model.RequestInfo `json:"RequestInfo"`
	Stock       *Stock            `json:"Stock"`
}

type BulkRequest struct {
	RequestInfo model.RequestInfo `json:"RequestInfo"`
	Stock       []*Stock          `json:"Stock"`
}

type SearchRequest struct {
	RequestInfo model.RequestInfo `json:"RequestInfo"`
	Stock       *Search           `json:"Stock"`
}

type Response struct {
	ResponseInfo model.ResponseInfo `json:"ResponseInfo"`
	Stock        *Stock             `json:"Stock"`
}

type BulkResponse struct {
	ResponseInfo model.ResponseInfo    `json:"ResponseInfo"`
	Stock        []*Stock              `json:"Stock"`
	Errors       []httpapi.EntityError `json:"Errors,omitempty"`
}

type SearchResponse struct {
	ResponseInfo model.ResponseInfo `json:"ResponseInfo"`
	Stock        []*Stock           `json:"Stock"`
	TotalCount   int64              `json:"TotalCount"`
}
