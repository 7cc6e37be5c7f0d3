package household

import (
	"encoding/json"
	"fmt"

	"healthreg/internal/bulk/consume"
	"healthreg/internal/bulk/model"
	"healthreg/internal/bulk/store"
)

var columns = []string{
	"id", "client_reference_id", "tenant_id",
	"member_count", "address", "locality_code", "additional_fields",
	"created_by", "created_time", "last_modified_by", "last_modified_time",
	"row_version", "is_deleted",
}

// Mapping binds Household to its table for the read path.
func Mapping() store.Mapping[*Household] {
	return store.Mapping[*Household]{
		Table:   "household",
		Columns: columns,
		Scan:    scanRow,
	}
}

func scanRow(r store.Row) (*Household, error) {
	var (
		h          Household
		audit      model.AuditDetails
		address    []byte
		additional []byte
		locality   string
	)
	err := r.Scan(
		&h.ID, &h.ClientReferenceID, &h.TenantID,
		&h.MemberCount, &address, &locality, &additional,
		&audit.CreatedBy, &audit.CreatedTime, &audit.LastModifiedBy, &audit.LastModifiedTime,
		&h.RowVersion, &h.IsDeleted,
	)
	if err != nil {
		return nil, err
	}
	if len(address) > 0 {
		h.Address = &Address{}
		if err := json.Unmarshal(address, h.Address); err != nil {
			return nil, fmt.Errorf("decode household address: %w", err)
		}
	}
	if len(additional) > 0 {
		h.AdditionalFields = json.RawMessage(additional)
	}
	h.AuditDetails = &audit
	return &h, nil
}

// TableSpec binds Household to its table for the consumer write path.
func TableSpec() consume.TableSpec[*Household] {
	return consume.TableSpec[*Household]{
		Table:   "household",
		Columns: columns,
		Values:  rowValues,
	}
}

func rowValues(h *Household) []any {
	audit := h.AuditDetails
	if audit == nil {
		audit = &model.AuditDetails{}
	}
	var address []byte
	if h.Address != nil {
		address, _ = json.Marshal(h.Address)
	}
	return []any{
		h.ID, h.ClientReferenceID, h.TenantID,
		h.MemberCount, address, h.localityCode(), []byte(h.AdditionalFields),
		audit.CreatedBy, audit.CreatedTime, audit.LastModifiedBy, audit.LastModifiedTime,
		h.RowVersion, h.IsDeleted,
	}
}
