package stock

import (
	"healthreg/internal/bulk/consume"
	"healthreg/internal/bulk/model"
	"healthreg/internal/bulk/store"
)

var columns = []string{
	"id", "client_reference_id", "tenant_id",
	"product_variant_id", "facility_id", "quantity", "way_bill_number",
	"transaction_type", "transaction_reason",
	"reference_id", "reference_id_type",
	"transacting_party_id", "transacting_party_type",
	"created_by", "created_time", "last_modified_by", "last_modified_time",
	"row_version", "is_deleted",
}

func Mapping() store.Mapping[*Stock] {
	return store.Mapping[*Stock]{
		Table:   "stock",
		Columns: columns,
		Scan:    scanRow,
	}
}

func scanRow(r store.Row) (*Stock, error) {
	var (
		s     Stock
		audit model.AuditDetails
	)
	err := r.Scan(
		&s.ID, &s.ClientReferenceID, &s.TenantID,
		&s.ProductVariantID, &s.FacilityID, &s.Quantity, &s.WayBillNumber,
		&s.TransactionType, &s.TransactionReason,
		&s.ReferenceID, &s.ReferenceIDType,
		&s.TransactingPartyID, &s.TransactingPartyType,
		&audit.CreatedBy, &audit.CreatedTime, &audit.LastModifiedBy, &audit.LastModifiedTime,
		&s.RowVersion, &s.IsDeleted,
	)
	if err != nil {
		return nil, err
	}
	s.AuditDetails = &audit
	return &s, nil
}

func TableSpec() consume.TableSpec[*Stock] {
	return consume.TableSpec[*Stock]{
		Table:   "stock",
		Columns: columns,
		Values:  rowValues,
	}
}

func rowValues(s *Stock) []any {
	audit := s.AuditDetails
	if audit == nil {
		audit = &model.AuditDetails{}
	}
	return []any{
		s.ID, s.ClientReferenceID, s.TenantID,
		s.ProductVariantID, s.FacilityID, s.Quantity, s.WayBillNumber,
		s.TransactionType, s.TransactionReason,
		s.ReferenceID, s.ReferenceIDType,
		s.TransactingPartyID, s.TransactingPartyType,
		audit.CreatedBy, audit.CreatedTime, audit.LastModifiedBy, audit.LastModifiedTime,
		s.RowVersion, s.IsDeleted,
	}
}
