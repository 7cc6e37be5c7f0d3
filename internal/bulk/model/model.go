// Package model defines the envelope and entity contracts shared by every
// registry kind: the capability interfaces each entity implements, the
// embeddable Base carrying the common columns, and the bulk request/response
// envelopes.
package model

// AuditDetails records who touched an entity and when. Times are epoch
// milliseconds. CreatedBy/CreatedTime are set once on create; the
// lastModified pair is refreshed on every update.
type AuditDetails struct {
	CreatedBy        string `json:"createdBy,omitempty"`
	LastModifiedBy   string `json:"lastModifiedBy,omitempty"`
	CreatedTime      int64  `json:"createdTime,omitempty"`
	LastModifiedTime int64  `json:"lastModifiedTime,omitempty"`
}

// UserInfo identifies the acting user inside a request envelope.
type UserInfo struct {
	UUID     string `json:"uuid"`
	UserName string `json:"userName,omitempty"`
	TenantID string `json:"tenantId,omitempty"`
}

// RequestInfo is the request envelope metadata every API call carries.
type RequestInfo struct {
	APIID     string    `json:"apiId,omitempty"`
	Ver       string    `json:"ver,omitempty"`
	Ts        int64     `json:"ts,omitempty"`
	MsgID     string    `json:"msgId,omitempty"`
	AuthToken string    `json:"authToken,omitempty"`
	UserInfo  *UserInfo `json:"userInfo,omitempty"`
}

// ResponseInfo mirrors RequestInfo back to the caller with a status.
type ResponseInfo struct {
	APIID  string `json:"apiId,omitempty"`
	Ver    string `json:"ver,omitempty"`
	Ts     int64  `json:"ts,omitempty"`
	MsgID  string `json:"msgId,omitempty"`
	Status string `json:"status"`
}

// ResponseInfoFrom derives a ResponseInfo from the incoming RequestInfo.
func ResponseInfoFrom(ri RequestInfo, success bool) ResponseInfo {
	status := "successful"
	if !success {
		status = "failed"
	}
	return ResponseInfo{
		APIID:  ri.APIID,
		Ver:    ri.Ver,
		Ts:     ri.Ts,
		MsgID:  ri.MsgID,
		Status: status,
	}
}

// Capability interfaces. Every concrete entity kind embeds Base and thereby
// satisfies all of them; validators and enrichment dispatch through these
// instead of reflecting over fields.
type (
	Identifiable interface {
		GetID() string
		SetID(id string)
	}

	ClientReferenced interface {
		GetClientReferenceID() string
		SetClientReferenceID(id string)
	}

	TenantScoped interface {
		GetTenantID() string
	}

	Versioned interface {
		GetRowVersion() int
		SetRowVersion(v int)
	}

	SoftDeletable interface {
		GetIsDeleted() bool
		SetIsDeleted(deleted bool)
	}

	Auditable interface {
		GetAuditDetails() *AuditDetails
		SetAuditDetails(details *AuditDetails)
	}
)

// Entity is the full capability set the pipeline requires. It is constrained
// to comparable so batches can be keyed by object identity: entities carry no
// server id before enrichment, so identity within the batch is the only
// stable key. In practice every instantiation is a pointer type (*Household,
// *Stock, ...).
type Entity interface {
	comparable
	Identifiable
	ClientReferenced
	TenantScoped
	Versioned
	SoftDeletable
	Auditable
}

// Base carries the columns every registry entity shares. Embed it by pointer
// receiver convention: the concrete kind embeds Base and the pointer type
// implements Entity.
type Base struct {
	ID                string        `json:"id,omitempty"`
	ClientReferenceID string        `json:"clientReferenceId,omitempty"`
	TenantID          string        `json:"tenantId"`
	RowVersion        int           `json:"rowVersion,omitempty"`
	IsDeleted         bool          `json:"isDeleted"`
	AuditDetails      *AuditDetails `json:"auditDetails,omitempty"`
}

func (b *Base) GetID() string { return b.ID }
func (b *Base) SetID(id string) { b.ID = id }
func (b *Base) GetClientReferenceID() string { return b.ClientReferenceID }
func (b *Base) SetClientReferenceID(id string) { b.ClientReferenceID = id }
func (b *Base) GetTenantID() string { return b.TenantID }
func (b *Base) GetRowVersion() int { return b.RowVersion }
func (b *Base) SetRowVersion(v int) { b.RowVersion = v }
func (b *Base) GetIsDeleted() bool { return b.IsDeleted }
func (b *Base) SetIsDeleted(deleted bool) { b.IsDeleted = deleted }
func (b *Base) GetAuditDetails() *AuditDetails { return b.AuditDetails }
func (b *Base) SetAuditDetails(details *AuditDetails) { b.AuditDetails = details }

// BulkRequest is the unit of work: one entity kind, many candidates. Order
// is not semantically meaningful except for error reporting.
type BulkRequest[T Entity] struct {
	RequestInfo RequestInfo
	Entities    []T
}

// Actor returns the audit actor for the request: the envelope's user uuid
// when present, otherwise empty (callers fall back to the context actor).
func (r *BulkRequest[T]) Actor() string {
	if r.RequestInfo.UserInfo != nil {
		return r.RequestInfo.UserInfo.UUID
	}
	return ""
}

// SearchCriteria is the filter set common to all kinds. Kind-specific search
// types embed it and add their own fields.
type SearchCriteria struct {
	IDs                []string `json:"id,omitempty"`
	ClientReferenceIDs []string `json:"clientReferenceId,omitempty"`
	TenantID           string   `json:"tenantId"`
	Limit              int      `json:"-"`
	Offset             int      `json:"-"`
	LastChangedSince   int64    `json:"-"`
	IncludeDeleted     bool     `json:"-"`
}

// ByIDOnly reports whether the criteria can short-circuit to a point lookup:
// ids (or client reference ids) are the only filters set.
func (c SearchCriteria) ByIDOnly(extraFilters bool) bool {
	return (len(c.IDs) > 0 || len(c.ClientReferenceIDs) > 0) && !extraFilters
}
