package bulk

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"

	"healthreg/internal/bulk/enrich"
	"healthreg/internal/bulk/errs"
	"healthreg/internal/bulk/model"
	"healthreg/internal/bulk/store"
	"healthreg/internal/bulk/validate"
	"healthreg/internal/platform/metrics"
)

type thing struct {
	model.Base
}

type thingSearch struct {
	model.SearchCriteria
}

func (s *thingSearch) SearchBase() model.SearchCriteria { return s.SearchCriteria }
func (s *thingSearch) Clauses() []store.Clause          { return nil }

// fakeStorage is an in-memory Storage with scriptable failures.
type fakeStorage struct {
	stored   []*thing
	findErr  error
	saveErr  error
	saved    map[string][]*thing
	findRes  []*thing
	countRes int64
}

func newFakeStorage(stored ...*thing) *fakeStorage {
	return &fakeStorage{stored: stored, saved: make(map[string][]*thing)}
}

func (f *fakeStorage) FindByID(_ context.Context, tenantID string, ids []string, idField string, includeDeleted bool) ([]*thing, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	requested := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		requested[id] = struct{}{}
	}
	var out []*thing
	for _, e := range f.stored {
		if e.TenantID != tenantID {
			continue
		}
		if !includeDeleted && e.IsDeleted {
			continue
		}
		if _, ok := requested[model.Key(e, idField)]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeStorage) Find(context.Context, store.Searchable) ([]*thing, error) {
	return f.findRes, f.findErr
}

func (f *fakeStorage) Count(context.Context, store.Searchable) (int64, error) {
	return f.countRes, f.findErr
}

func (f *fakeStorage) Save(_ context.Context, entities []*thing, topic string) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved[topic] = append(f.saved[topic], entities...)
	return nil
}

type OrchestratorSuite struct {
	suite.Suite
	storage *fakeStorage
	orch    *Orchestrator[*thing]
	topics  Topics
}

func TestOrchestratorSuite(t *testing.T) {
	suite.Run(t, new(OrchestratorSuite))
}

// SetupSubTest clears published state between s.Run subtests; testify only
// runs SetupTest once per test method. Seeded stored entities are kept.
func (s *OrchestratorSuite) SetupSubTest() {
	s.storage.saved = make(map[string][]*thing)
}

func (s *OrchestratorSuite) SetupTest() {
	s.storage = newFakeStorage()
	s.topics = TopicsFor("thing")
	logger := slog.New(slog.DiscardHandler)

	createChain := validate.NewChain(logger,
		validate.NoServerID[*thing]{},
		validate.BatchUniqueness[*thing]{},
		validate.DeletedGuard[*thing]{},
	)
	mutateChain := func() *validate.Chain[*thing] {
		return validate.NewChain(logger,
			validate.BatchUniqueness[*thing]{},
			validate.NewExistence[*thing](s.storage, logger),
			validate.NewRowVersion[*thing](s.storage, logger),
		)
	}

	s.orch = New(Config[*thing]{
		Kind:        "thing",
		CreateChain: createChain,
		UpdateChain: mutateChain(),
		DeleteChain: mutateChain(),
		Enricher:    enrich.New[*thing](enrich.UUIDSource{}, logger),
		Storage:     s.storage,
		Topics:      s.topics,
		Metrics:     metrics.New(prometheus.NewRegistry()),
		Logger:      logger,
	})
}

func ref(id string) *thing {
	return &thing{Base: model.Base{ClientReferenceID: id, TenantID: "ke"}}
}

func (s *OrchestratorSuite) TestCreate() {
	s.Run("partial batch: valid entities published, invalid reported", func() {
		a := ref("ref-1")
		dup := ref("ref-1")
		b := ref("ref-2")

		result := s.orch.Create(context.Background(), &model.BulkRequest[*thing]{Entities: []*thing{a, dup, b}})

		s.Len(result.Entities, 3)
		s.Equal(errs.CodeDuplicateInBatch, result.Errors[dup][0].Code)
		s.Empty(result.Errors[a])
		s.Empty(result.Errors[b])

		published := s.storage.saved[s.topics.Create]
		s.Len(published, 2)
		for _, e := range published {
			s.NotEmpty(e.ID)
			s.Equal(1, e.RowVersion)
		}
		s.Empty(dup.ID)
	})

	s.Run("all-invalid batch yields a result, publishes nothing", func() {
		a := ref("ref-1")
		a.ID = "pre-supplied"
		result := s.orch.Create(context.Background(), &model.BulkRequest[*thing]{Entities: []*thing{a}})

		s.Equal(errs.CodeNullID, result.Errors[a][0].Code)
		s.Empty(s.storage.saved[s.topics.Create])
	})

	s.Run("publish failure marks accepted entities recoverable", func() {
		s.storage.saveErr = errors.New("broker unavailable")
		a := ref("ref-1")
		result := s.orch.Create(context.Background(), &model.BulkRequest[*thing]{Entities: []*thing{a}})

		s.Require().Len(result.Errors[a], 1)
		s.Equal(errs.Recoverable, result.Errors[a][0].Type)
	})
}

func (s *OrchestratorSuite) TestUpdate() {
	stored := &thing{Base: model.Base{
		ID:                "srv-1",
		ClientReferenceID: "ref-1",
		TenantID:          "ke",
		RowVersion:        2,
		AuditDetails:      &model.AuditDetails{CreatedBy: "uid-orig", CreatedTime: 1600000000000},
	}}
	s.storage.stored = []*thing{stored}

	s.Run("stale row version is rejected, current one applied", func() {
		stale := ref("ref-1")
		stale.RowVersion = 1
		current := &thing{Base: model.Base{ClientReferenceID: "ref-1", TenantID: "ke", RowVersion: 2}}

		staleResult := s.orch.Update(context.Background(), &model.BulkRequest[*thing]{Entities: []*thing{stale}})
		s.Equal(errs.CodeRowVersionMismatch, staleResult.Errors[stale][0].Code)
		s.Empty(s.storage.saved[s.topics.Update])

		result := s.orch.Update(context.Background(), &model.BulkRequest[*thing]{Entities: []*thing{current}})
		s.Empty(result.Errors[current])
		s.Require().Len(s.storage.saved[s.topics.Update], 1)
		applied := s.storage.saved[s.topics.Update][0]
		s.Equal("srv-1", applied.ID)
		s.Equal(3, applied.RowVersion)
		s.Equal("uid-orig", applied.AuditDetails.CreatedBy)
	})

	s.Run("unknown target is non-existent", func() {
		missing := ref("ref-404")
		missing.RowVersion = 1
		result := s.orch.Update(context.Background(), &model.BulkRequest[*thing]{Entities: []*thing{missing}})
		s.Equal(errs.CodeNonExistentEntity, result.Errors[missing][0].Code)
	})
}

func (s *OrchestratorSuite) TestDelete() {
	stored := &thing{Base: model.Base{ID: "srv-1", TenantID: "ke", RowVersion: 1, AuditDetails: &model.AuditDetails{}}}
	s.storage.stored = []*thing{stored}

	target := &thing{Base: model.Base{ID: "srv-1", TenantID: "ke", RowVersion: 1}}
	result := s.orch.Delete(context.Background(), &model.BulkRequest[*thing]{Entities: []*thing{target}})

	s.Empty(result.Errors[target])
	s.Require().Len(s.storage.saved[s.topics.Delete], 1)
	s.True(s.storage.saved[s.topics.Delete][0].IsDeleted)
	s.Equal(2, s.storage.saved[s.topics.Delete][0].RowVersion)
}

func (s *OrchestratorSuite) TestDeleteOfDeleted() {
	gone := &thing{Base: model.Base{ID: "srv-1", TenantID: "ke", RowVersion: 2, IsDeleted: true}}
	s.storage.stored = []*thing{gone}

	target := &thing{Base: model.Base{ID: "srv-1", TenantID: "ke", RowVersion: 2}}
	result := s.orch.Delete(context.Background(), &model.BulkRequest[*thing]{Entities: []*thing{target}})

	s.Equal(errs.CodeAlreadyDeleted, result.Errors[target][0].Code)
	s.Empty(s.storage.saved[s.topics.Delete])
}

func (s *OrchestratorSuite) TestSearch() {
	s.Run("identifier-only criteria short-circuit to point lookup", func() {
		stored := &thing{Base: model.Base{ID: "srv-1", TenantID: "ke", AuditDetails: &model.AuditDetails{LastModifiedTime: 200}}}
		s.storage.stored = []*thing{stored}

		result, err := s.orch.Search(context.Background(), &thingSearch{
			SearchCriteria: model.SearchCriteria{IDs: []string{"srv-1"}, TenantID: "ke", Limit: 10},
		})
		s.Require().NoError(err)
		s.Equal(int64(1), result.TotalCount)
		s.Equal([]*thing{stored}, result.Entities)
	})

	s.Run("client reference ids narrow an id lookup on the point path", func() {
		matching := &thing{Base: model.Base{ID: "srv-1", ClientReferenceID: "ref-1", TenantID: "ke"}}
		other := &thing{Base: model.Base{ID: "srv-2", ClientReferenceID: "ref-2", TenantID: "ke"}}
		s.storage.stored = []*thing{matching, other}

		result, err := s.orch.Search(context.Background(), &thingSearch{
			SearchCriteria: model.SearchCriteria{
				IDs:                []string{"srv-1", "srv-2"},
				ClientReferenceIDs: []string{"ref-1"},
				TenantID:           "ke",
				Limit:              10,
			},
		})
		s.Require().NoError(err)
		s.Equal(int64(1), result.TotalCount)
		s.Equal([]*thing{matching}, result.Entities)
	})

	s.Run("lastChangedSince is a strict lower bound on the point path", func() {
		stored := &thing{Base: model.Base{ID: "srv-1", TenantID: "ke", AuditDetails: &model.AuditDetails{LastModifiedTime: 200}}}
		s.storage.stored = []*thing{stored}

		result, err := s.orch.Search(context.Background(), &thingSearch{
			SearchCriteria: model.SearchCriteria{IDs: []string{"srv-1"}, TenantID: "ke", Limit: 10, LastChangedSince: 200},
		})
		s.Require().NoError(err)
		s.Empty(result.Entities)
	})

	s.Run("criteria queries return page and total", func() {
		s.storage.findRes = []*thing{ref("ref-1")}
		s.storage.countRes = 41

		result, err := s.orch.Search(context.Background(), &thingSearch{
			SearchCriteria: model.SearchCriteria{TenantID: "ke", Limit: 1},
		})
		s.Require().NoError(err)
		s.Len(result.Entities, 1)
		s.Equal(int64(41), result.TotalCount)
	})
}
