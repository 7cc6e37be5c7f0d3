package enrich

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"healthreg/internal/bulk/model"
	"healthreg/pkg/requestcontext"
)

type record struct {
	model.Base
	Name string
}

func clientRecord(ref, tenant string) *record {
	return &record{Base: model.Base{ClientReferenceID: ref, TenantID: tenant}}
}

type EnrichSuite struct {
	suite.Suite
	service *Service[*record]
	ctx     context.Context
	now     time.Time
}

func TestEnrichSuite(t *testing.T) {
	suite.Run(t, new(EnrichSuite))
}

func (s *EnrichSuite) SetupTest() {
	logger := slog.New(slog.DiscardHandler)
	s.service = New[*record](UUIDSource{}, logger)
	s.now = time.UnixMilli(1700000000000)
	s.ctx = requestcontext.WithTime(requestcontext.WithActorID(context.Background(), "uid-ctx"), s.now)
}

func (s *EnrichSuite) request(records ...*record) *model.BulkRequest[*record] {
	return &model.BulkRequest[*record]{
		RequestInfo: model.RequestInfo{UserInfo: &model.UserInfo{UUID: "uid-env"}},
		Entities:    records,
	}
}

func (s *EnrichSuite) TestCreate() {
	s.Run("assigns id, audit, version one, not deleted", func() {
		r := clientRecord("ref-1", "ke")
		err := s.service.Create(s.ctx, []*record{r}, s.request(r))
		s.Require().NoError(err)

		s.NotEmpty(r.ID)
		s.Equal(1, r.RowVersion)
		s.False(r.IsDeleted)
		s.Require().NotNil(r.AuditDetails)
		s.Equal("uid-env", r.AuditDetails.CreatedBy)
		s.Equal("uid-env", r.AuditDetails.LastModifiedBy)
		s.Equal(s.now.UnixMilli(), r.AuditDetails.CreatedTime)
		s.Equal(s.now.UnixMilli(), r.AuditDetails.LastModifiedTime)
	})

	s.Run("ids are unique across the batch", func() {
		a := clientRecord("ref-1", "ke")
		b := clientRecord("ref-2", "ke")
		s.Require().NoError(s.service.Create(s.ctx, []*record{a, b}, s.request(a, b)))
		s.NotEqual(a.ID, b.ID)
	})

	s.Run("falls back to the context actor without envelope user", func() {
		r := clientRecord("ref-1", "ke")
		req := &model.BulkRequest[*record]{Entities: []*record{r}}
		s.Require().NoError(s.service.Create(s.ctx, []*record{r}, req))
		s.Equal("uid-ctx", r.AuditDetails.CreatedBy)
	})
}

func (s *EnrichSuite) TestUpdate() {
	stored := &record{Base: model.Base{
		ID:                "srv-1",
		ClientReferenceID: "ref-1",
		TenantID:          "ke",
		RowVersion:        3,
		AuditDetails: &model.AuditDetails{
			CreatedBy:        "uid-orig",
			CreatedTime:      1600000000000,
			LastModifiedBy:   "uid-orig",
			LastModifiedTime: 1600000000000,
		},
	}}

	s.Run("bumps stored version and preserves create audit", func() {
		submitted := clientRecord("ref-1", "ke")
		submitted.RowVersion = 3
		existing := map[string]*record{"ref-1": stored}

		s.service.Update(s.ctx, []*record{submitted}, existing, model.FieldClientReferenceID, s.request(submitted))

		s.Equal("srv-1", submitted.ID)
		s.Equal(4, submitted.RowVersion)
		s.False(submitted.IsDeleted)
		s.Equal("uid-orig", submitted.AuditDetails.CreatedBy)
		s.Equal(int64(1600000000000), submitted.AuditDetails.CreatedTime)
		s.Equal("uid-env", submitted.AuditDetails.LastModifiedBy)
		s.Equal(s.now.UnixMilli(), submitted.AuditDetails.LastModifiedTime)
	})

	s.Run("version comes from the store, not the client", func() {
		submitted := clientRecord("ref-1", "ke")
		submitted.RowVersion = 99
		s.service.Update(s.ctx, []*record{submitted}, map[string]*record{"ref-1": stored}, model.FieldClientReferenceID, s.request(submitted))
		s.Equal(4, submitted.RowVersion)
	})
}

func (s *EnrichSuite) TestDelete() {
	stored := &record{Base: model.Base{
		ID:         "srv-1",
		TenantID:   "ke",
		RowVersion: 2,
		AuditDetails: &model.AuditDetails{
			CreatedBy:   "uid-orig",
			CreatedTime: 1600000000000,
		},
	}}
	submitted := &record{Base: model.Base{ID: "srv-1", TenantID: "ke", RowVersion: 2}}

	s.service.Delete(s.ctx, []*record{submitted}, map[string]*record{"srv-1": stored}, model.FieldID, s.request(submitted))

	s.True(submitted.IsDeleted)
	s.Equal(3, submitted.RowVersion)
	s.Equal("uid-orig", submitted.AuditDetails.CreatedBy)
}
