// Package facilitymapping implements the project↔facility mapping kind: a
// link entity assigning a facility to a project. The combination is unique;
// projects and facilities are owned by remote registries.
package facilitymapping

import (
	"healthreg/internal/bulk/httpapi"
	"healthreg/internal/bulk/model"
	"healthreg/internal/bulk/store"
)

const Kind = "project-facility"

// FacilityMapping assigns one facility to one project.
type FacilityMapping struct {
	model.Base
	ProjectID  string `json:"projectId"`
	FacilityID string `json:"facilityId"`
}

func (m *FacilityMapping) projectRefs() []string {
	if m.ProjectID == "" {
		return nil
	}
	return []string{m.ProjectID}
}

func (m *FacilityMapping) facilityRefs() []string {
	if m.FacilityID == "" {
		return nil
	}
	return []string{m.FacilityID}
}

// combinationKey is the composite uniqueness key. Empty when either half is
// missing, which skips the combination check for that entity.
func (m *FacilityMapping) combinationKey() string {
	if m.ProjectID == "" || m.FacilityID == "" {
		return ""
	}
	return m.ProjectID + ":" + m.FacilityID
}

// Search filters mappings by project or facility.
type Search struct {
	model.SearchCriteria
	ProjectIDs  []string `json:"projectId,omitempty"`
	FacilityIDs []string `json:"facilityId,omitempty"`
}

func (s *Search) SearchBase() model.SearchCriteria { return s.SearchCriteria }

func (s *Search) Clauses() []store.Clause {
	var clauses []store.Clause
	if len(s.ProjectIDs) > 0 {
		clauses = append(clauses, store.Clause{Column: "project_id", Op: "IN", Value: s.ProjectIDs})
	}
	if len(s.FacilityIDs) > 0 {
		clauses = append(clauses, store.Clause{Column: "facility_id", Op: "IN", Value: s.FacilityIDs})
	}
	return clauses
}

// API envelopes.

type Request struct {
	RequestInfo     model.RequestInfo `json:"RequestInfo"`
	ProjectFacility *FacilityMapping  `json:"ProjectFacility"`
}

type BulkRequest struct {
	RequestInfo       model.RequestInfo  `json:"RequestInfo"`
	ProjectFacilities []*FacilityMapping `json:"ProjectFacilities"`
}

type SearchRequest struct {
	RequestInfo     model.RequestInfo `json:"RequestInfo"`
	ProjectFacility *Search           `json:"ProjectFacility"`
}

type Response struct {
	ResponseInfo    model.ResponseInfo `json:"ResponseInfo"`
	ProjectFacility *FacilityMapping   `json:"ProjectFacility"`
}

type BulkResponse struct {
	ResponseInfo      model.ResponseInfo    `json:"ResponseInfo"`
	ProjectFacilities []*FacilityMapping    `json:"ProjectFacilities"`
	Errors            []httpapi.EntityError `json:"Errors,omitempty"`
}

type SearchResponse struct {
	ResponseInfo      model.ResponseInfo `json:"ResponseInfo"`
	ProjectFacilities []*FacilityMapping `json:"ProjectFacilities"`
	TotalCount        int64              `json:"TotalCount"`
}
