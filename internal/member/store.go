package member

import (
	"context"

	"github.com/lib/pq"

	"healthreg/internal/bulk/consume"
	"healthreg/internal/bulk/model"
	"healthreg/internal/bulk/store"
)

var columns = []string{
	"id", "client_reference_id", "tenant_id",
	"household_id", "household_client_reference_id",
	"individual_id", "individual_client_reference_id",
	"is_head_of_household",
	"created_by", "created_time", "last_modified_by", "last_modified_time",
	"row_version", "is_deleted",
}

func Mapping() store.Mapping[*HouseholdMember] {
	return store.Mapping[*HouseholdMember]{
		Table:   "household_member",
		Columns: columns,
		Scan:    scanRow,
	}
}

func scanRow(r store.Row) (*HouseholdMember, error) {
	var (
		m     HouseholdMember
		audit model.AuditDetails
	)
	err := r.Scan(
		&m.ID, &m.ClientReferenceID, &m.TenantID,
		&m.HouseholdID, &m.HouseholdClientReferenceID,
		&m.IndividualID, &m.IndividualClientReferenceID,
		&m.IsHeadOfHousehold,
		&audit.CreatedBy, &audit.CreatedTime, &audit.LastModifiedBy, &audit.LastModifiedTime,
		&m.RowVersion, &m.IsDeleted,
	)
	if err != nil {
		return nil, err
	}
	m.AuditDetails = &audit
	return &m, nil
}

func TableSpec() consume.TableSpec[*HouseholdMember] {
	return consume.TableSpec[*HouseholdMember]{
		Table:   "household_member",
		Columns: columns,
		Values:  rowValues,
	}
}

func rowValues(m *HouseholdMember) []any {
	audit := m.AuditDetails
	if audit == nil {
		audit = &model.AuditDetails{}
	}
	return []any{
		m.ID, m.ClientReferenceID, m.TenantID,
		m.HouseholdID, m.HouseholdClientReferenceID,
		m.IndividualID, m.IndividualClientReferenceID,
		m.IsHeadOfHousehold,
		audit.CreatedBy, audit.CreatedTime, audit.LastModifiedBy, audit.LastModifiedTime,
		m.RowVersion, m.IsDeleted,
	}
}

// Store extends the generic store with the head-of-household combination
// lookup the uniqueness validator needs. Keys are household identifiers,
// either server or client reference ids.
type Store struct {
	*store.Store[*HouseholdMember]
}

func NewStore(generic *store.Store[*HouseholdMember]) *Store {
	return &Store{Store: generic}
}

func (s *Store) FindByCombination(ctx context.Context, tenantID string, keys []string) ([]*HouseholdMember, error) {
	return s.QueryWhere(ctx, tenantID,
		"(household_id = ANY($2) OR household_client_reference_id = ANY($2)) AND is_head_of_household = true AND is_deleted = false",
		pq.Array(keys))
}
