// Package member implements the household-member registry kind: the link
// between an individual and the household they belong to. Individuals live
// in a separate registry service; households are owned locally.
package member

import (
	"healthreg/internal/bulk/httpapi"
	"healthreg/internal/bulk/model"
	"healthreg/internal/bulk/store"
)

const Kind = "household-member"

// HouseholdMember links one individual to one household. Either identifier
// pair may arrive with only the client reference half set; enrichment writes
// the canonical ids through once the parents are resolved.
type HouseholdMember struct {
	model.Base
	HouseholdID                 string `json:"householdId,omitempty"`
	HouseholdClientReferenceID  string `json:"householdClientReferenceId,omitempty"`
	IndividualID                string `json:"individualId,omitempty"`
	IndividualClientReferenceID string `json:"individualClientReferenceId,omitempty"`
	IsHeadOfHousehold           bool   `json:"isHeadOfHousehold"`
}

// householdRefs returns whichever household identifiers the member carries.
func (m *HouseholdMember) householdRefs() []string {
	var refs []string
	if m.HouseholdID != "" {
		refs = append(refs, m.HouseholdID)
	}
	if m.HouseholdClientReferenceID != "" {
		refs = append(refs, m.HouseholdClientReferenceID)
	}
	return refs
}

func (m *HouseholdMember) individualRefs() []string {
	var refs []string
	if m.IndividualID != "" {
		refs = append(refs, m.IndividualID)
	}
	if m.IndividualClientReferenceID != "" {
		refs = append(refs, m.IndividualClientReferenceID)
	}
	return refs
}

// headKey is the composite key for head-of-household uniqueness: at most one
// head mapping may exist per household. Non-heads do not participate.
func (m *HouseholdMember) headKey() string {
	if !m.IsHeadOfHousehold {
		return ""
	}
	if m.HouseholdID != "" {
		return m.HouseholdID
	}
	return m.HouseholdClientReferenceID
}

// Search filters members by household, individual, or head status.
type Search struct {
	model.SearchCriteria
	HouseholdIDs                []string `json:"householdId,omitempty"`
	HouseholdClientReferenceIDs []string `json:"householdClientReferenceId,omitempty"`
	IndividualIDs               []string `json:"individualId,omitempty"`
	IsHeadOfHousehold           *bool    `json:"isHeadOfHousehold,omitempty"`
}

func (s *Search) SearchBase() model.SearchCriteria { return s.SearchCriteria }

func (s *Search) Clauses() []store.Clause {
	var clauses []store.Clause
	if len(s.HouseholdIDs) > 0 {
		clauses = append(clauses, store.Clause{Column: "household_id", Op: "IN", Value: s.HouseholdIDs})
	}
	if len(s.HouseholdClientReferenceIDs) > 0 {
		clauses = append(clauses, store.Clause{Column: "household_client_reference_id", Op: "IN", Value: s.HouseholdClientReferenceIDs})
	}
	if len(s.IndividualIDs) > 0 {
		clauses = append(clauses, store.Clause{Column: "individual_id", Op: "IN", Value: s.IndividualIDs})
	}
	if s.IsHeadOfHousehold != nil {
		clauses = append(clauses, store.Clause{Column: "is_head_of_household", Op: "=", Value: *s.IsHeadOfHousehold})
	}
	return clauses
}

// API envelopes.

type Request struct {
	RequestInfo     model.RequestInfo `json:"RequestInfo"`
	HouseholdMember *HouseholdMember  `json:"HouseholdMember"`
}

type BulkRequest struct {
	RequestInfo      model.RequestInfo  `json:"RequestInfo"`
	HouseholdMembers []*HouseholdMember `json:"HouseholdMembers"`
}

type SearchRequest struct {
	RequestInfo     model.RequestInfo `json:"RequestInfo"`
	HouseholdMember *Search           `json:"HouseholdMember"`
}

type Response struct {
	ResponseInfo    model.ResponseInfo `json:"ResponseInfo"`
	HouseholdMember *HouseholdMember   `json:"HouseholdMember"`
}

type BulkResponse struct {
	ResponseInfo     model.ResponseInfo    `json:"ResponseInfo"`
	HouseholdMembers []*HouseholdMember    `json:"HouseholdMembers"`
	Errors           []httpapi.EntityError `json:"Errors,omitempty"`
}

type SearchResponse struct {
	ResponseInfo     model.ResponseInfo `json:"ResponseInfo"`
	HouseholdMembers []*HouseholdMember `json:"HouseholdMembers"`
	TotalCount       int64              `json:"TotalCount"`
}
