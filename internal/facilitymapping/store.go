package facilitymapping

import (
	"context"

	"github.com/lib/pq"

	"healthreg/internal/bulk/consume"
	"healthreg/internal/bulk/model"
	"healthreg/internal/bulk/store"
)

var columns = []string{
	"id", "client_reference_id", "tenant_id",
	"project_id", "facility_id",
	"created_by", "created_time", "last_modified_by", "last_modified_time",
	"row_version", "is_deleted",
}

func Mapping() store.Mapping[*FacilityMapping] {
	return store.Mapping[*FacilityMapping]{
		Table:   "project_facility",
		Columns: columns,
		Scan:    scanRow,
	}
}

func scanRow(r store.Row) (*FacilityMapping, error) {
	var (
		m     FacilityMapping
		audit model.AuditDetails
	)
	err := r.Scan(
		&m.ID, &m.ClientReferenceID, &m.TenantID,
		&m.ProjectID, &m.FacilityID,
		&audit.CreatedBy, &audit.CreatedTime, &audit.LastModifiedBy, &audit.LastModifiedTime,
		&m.RowVersion, &m.IsDeleted,
	)
	if err != nil {
		return nil, err
	}
	m.AuditDetails = &audit
	return &m, nil
}

func TableSpec() consume.TableSpec[*FacilityMapping] {
	return consume.TableSpec[*FacilityMapping]{
		Table:   "project_facility",
		Columns: columns,
		Values:  rowValues,
	}
}

func rowValues(m *FacilityMapping) []any {
	audit := m.AuditDetails
	if audit == nil {
		audit = &model.AuditDetails{}
	}
	return []any{
		m.ID, m.ClientReferenceID, m.TenantID,
		m.ProjectID, m.FacilityID,
		audit.CreatedBy, audit.CreatedTime, audit.LastModifiedBy, audit.LastModifiedTime,
		m.RowVersion, m.IsDeleted,
	}
}

// Store extends the generic store with the composite-key lookup the
// uniqueness validator needs.
type Store struct {
	*store.Store[*FacilityMapping]
}

func NewStore(generic *store.Store[*FacilityMapping]) *Store {
	return &Store{Store: generic}
}

func (s *Store) FindByCombination(ctx context.Context, tenantID string, keys []string) ([]*FacilityMapping, error) {
	return s.QueryWhere(ctx, tenantID,
		"project_id || ':' || facility_id = ANY($2) AND is_deleted = false",
		pq.Array(keys))
}
