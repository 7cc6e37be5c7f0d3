//go:build integration

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/suite"

	"healthreg/internal/bulk/model"
	platformredis "healthreg/internal/platform/redis"
	"healthreg/pkg/testutil/containers"
)

type task struct {
	model.Base
	Name string `json:"name"`
}

func taskMapping() Mapping[*task] {
	return Mapping[*task]{
		Table: "task",
		Columns: []string{
			"id", "client_reference_id", "tenant_id", "name",
			"created_by", "created_time", "last_modified_by", "last_modified_time",
			"row_version", "is_deleted",
		},
		Scan: func(r Row) (*task, error) {
			var (
				e     task
				audit model.AuditDetails
			)
			err := r.Scan(
				&e.ID, &e.ClientReferenceID, &e.TenantID, &e.Name,
				&audit.CreatedBy, &audit.CreatedTime, &audit.LastModifiedBy, &audit.LastModifiedTime,
				&e.RowVersion, &e.IsDeleted,
			)
			if err != nil {
				return nil, err
			}
			e.AuditDetails = &audit
			return &e, nil
		},
	}
}

const taskDDL = `
CREATE SCHEMA IF NOT EXISTS ke;
CREATE TABLE IF NOT EXISTS ke.task (
	id                 TEXT PRIMARY KEY,
	client_reference_id TEXT NOT NULL DEFAULT '',
	tenant_id          TEXT NOT NULL,
	name               TEXT NOT NULL DEFAULT '',
	created_by         TEXT NOT NULL DEFAULT '',
	created_time       BIGINT NOT NULL DEFAULT 0,
	last_modified_by   TEXT NOT NULL DEFAULT '',
	last_modified_time BIGINT NOT NULL DEFAULT 0,
	row_version        INT NOT NULL DEFAULT 1,
	is_deleted         BOOLEAN NOT NULL DEFAULT false
);`

// capturingPublisher records what Save hands off instead of talking to a
// broker.
type capturingPublisher struct {
	topics []string
	keys   []string
	bodies [][]byte
}

func (p *capturingPublisher) Push(_ context.Context, topic, key string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	p.topics = append(p.topics, topic)
	p.keys = append(p.keys, key)
	p.bodies = append(p.bodies, raw)
	return nil
}

type StoreIntegrationSuite struct {
	suite.Suite
	db    *sql.DB
	cache *platformredis.Client
	pub   *capturingPublisher
	store *Store[*task]
	ctx   context.Context
}

func TestStoreIntegrationSuite(t *testing.T) {
	suite.Run(t, new(StoreIntegrationSuite))
}

func (s *StoreIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()

	pg := containers.NewPostgresContainer(s.T())
	db, err := sql.Open("postgres", pg.DSN)
	s.Require().NoError(err)
	s.db = db
	_, err = db.ExecContext(s.ctx, taskDDL)
	s.Require().NoError(err)

	rd := containers.NewRedisContainer(s.T())
	cache, err := platformredis.New(s.ctx, rd.Addr)
	s.Require().NoError(err)
	s.cache = cache
}

func (s *StoreIntegrationSuite) SetupTest() {
	_, err := s.db.ExecContext(s.ctx, "TRUNCATE ke.task")
	s.Require().NoError(err)
	s.Require().NoError(s.cache.FlushAll(s.ctx).Err())

	s.pub = &capturingPublisher{}
	s.store = New(s.db, s.cache, s.pub, StatePrefix{}, taskMapping(), time.Minute, slog.New(slog.DiscardHandler))
}

func (s *StoreIntegrationSuite) insert(e *task) {
	audit := e.AuditDetails
	if audit == nil {
		audit = &model.AuditDetails{}
	}
	_, err := s.db.ExecContext(s.ctx,
		`INSERT INTO ke.task VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		e.ID, e.ClientReferenceID, e.TenantID, e.Name,
		audit.CreatedBy, audit.CreatedTime, audit.LastModifiedBy, audit.LastModifiedTime,
		e.RowVersion, e.IsDeleted)
	s.Require().NoError(err)
}

func (s *StoreIntegrationSuite) TestFindByID() {
	live := &task{Base: model.Base{ID: "t-1", ClientReferenceID: "ref-1", TenantID: "ke.nairobi", RowVersion: 1}, Name: "visit"}
	gone := &task{Base: model.Base{ID: "t-2", TenantID: "ke.nairobi", RowVersion: 2, IsDeleted: true}}
	s.insert(live)
	s.insert(gone)

	s.Run("by server id, excluding deleted", func() {
		found, err := s.store.FindByID(s.ctx, "ke.nairobi", []string{"t-1", "t-2"}, model.FieldID, false)
		s.Require().NoError(err)
		s.Require().Len(found, 1)
		s.Equal("t-1", found[0].ID)
	})

	s.Run("deleted rows surface when asked for", func() {
		found, err := s.store.FindByID(s.ctx, "ke.nairobi", []string{"t-2"}, model.FieldID, true)
		s.Require().NoError(err)
		s.Require().Len(found, 1)
		s.True(found[0].GetIsDeleted())
	})

	s.Run("by client reference id", func() {
		found, err := s.store.FindByID(s.ctx, "ke.nairobi", []string{"ref-1"}, model.FieldClientReferenceID, false)
		s.Require().NoError(err)
		s.Require().Len(found, 1)
		s.Equal("t-1", found[0].ID)
	})
}

func (s *StoreIntegrationSuite) TestFindAndCount() {
	for _, spec := range []struct {
		id       string
		modified int64
		deleted  bool
	}{
		{"t-1", 100, false},
		{"t-2", 200, false},
		{"t-3", 300, false},
		{"t-4", 400, true},
	} {
		s.insert(&task{Base: model.Base{
			ID: spec.id, TenantID: "ke.nairobi", RowVersion: 1, IsDeleted: spec.deleted,
			AuditDetails: &model.AuditDetails{LastModifiedTime: spec.modified},
		}})
	}

	s.Run("newest first with pagination, deleted excluded", func() {
		found, err := s.store.Find(s.ctx, &criteria{SearchCriteria: model.SearchCriteria{TenantID: "ke.nairobi", Limit: 2}})
		s.Require().NoError(err)
		s.Require().Len(found, 2)
		s.Equal("t-3", found[0].ID)
		s.Equal("t-2", found[1].ID)

		total, err := s.store.Count(s.ctx, &criteria{SearchCriteria: model.SearchCriteria{TenantID: "ke.nairobi", Limit: 2}})
		s.Require().NoError(err)
		s.Equal(int64(3), total)
	})

	s.Run("lastChangedSince excludes rows modified exactly then", func() {
		found, err := s.store.Find(s.ctx, &criteria{SearchCriteria: model.SearchCriteria{
			TenantID: "ke.nairobi", Limit: 10, LastChangedSince: 200,
		}})
		s.Require().NoError(err)
		s.Require().Len(found, 1)
		s.Equal("t-3", found[0].ID)
	})

	s.Run("other tenants are invisible", func() {
		found, err := s.store.Find(s.ctx, &criteria{SearchCriteria: model.SearchCriteria{TenantID: "mz", Limit: 10}})
		s.Error(err) // schema mz does not exist
		s.Empty(found)
	})
}

func (s *StoreIntegrationSuite) TestSaveAndCache() {
	batch := []*task{
		{Base: model.Base{ID: "t-1", ClientReferenceID: "ref-1", TenantID: "ke.nairobi", RowVersion: 1}, Name: "visit"},
		{Base: model.Base{ID: "t-2", TenantID: "ke.mombasa", RowVersion: 1}},
	}

	s.Require().NoError(s.store.Save(s.ctx, batch, "save-task-topic"))

	s.Run("one message per tenant keyed by tenant", func() {
		s.Len(s.pub.topics, 2)
		s.ElementsMatch([]string{"ke.nairobi", "ke.mombasa"}, s.pub.keys)
	})

	s.Run("published entities land in the cache for point reads", func() {
		// No row was ever written to the table, so a hit proves the cache.
		found, err := s.store.FindByID(s.ctx, "ke.nairobi", []string{"t-1"}, model.FieldID, false)
		s.Require().NoError(err)
		s.Require().Len(found, 1)
		s.Equal("visit", found[0].Name)

		byRef, err := s.store.FindByID(s.ctx, "ke.nairobi", []string{"ref-1"}, model.FieldClientReferenceID, false)
		s.Require().NoError(err)
		s.Require().Len(byRef, 1)
	})
}
