package household

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"

	"healthreg/internal/bulk/enrich"
	"healthreg/internal/bulk/errs"
	"healthreg/internal/bulk/model"
	"healthreg/internal/bulk/store"
	"healthreg/internal/platform/metrics"
)

// fakeStorage keeps households in memory and records published batches.
type fakeStorage struct {
	stored   []*Household
	saved    map[string][]*Household
	findRes  []*Household
	countRes int64
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{saved: make(map[string][]*Household)}
}

func (f *fakeStorage) FindByID(_ context.Context, tenantID string, ids []string, idField string, includeDeleted bool) ([]*Household, error) {
	requested := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		requested[id] = struct{}{}
	}
	var out []*Household
	for _, h := range f.stored {
		if h.TenantID != tenantID {
			continue
		}
		if !includeDeleted && h.IsDeleted {
			continue
		}
		if _, ok := requested[model.Key(h, idField)]; ok {
			out = append(out, h)
		}
	}
	return out, nil
}

func (f *fakeStorage) Find(context.Context, store.Searchable) ([]*Household, error) {
	return f.findRes, nil
}

func (f *fakeStorage) Count(context.Context, store.Searchable) (int64, error) {
	return f.countRes, nil
}

func (f *fakeStorage) Save(_ context.Context, entities []*Household, topic string) error {
	f.saved[topic] = append(f.saved[topic], entities...)
	return nil
}

type HandlerSuite struct {
	suite.Suite
	storage *fakeStorage
	server  *httptest.Server
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	logger := slog.New(slog.DiscardHandler)
	s.storage = newFakeStorage()
	service := NewService(s.storage, enrich.UUIDSource{}, metrics.New(prometheus.NewRegistry()), logger)
	s.server = httptest.NewServer(NewHandler(service, 100, 1000, logger).Routes())
}

func (s *HandlerSuite) TearDownTest() {
	s.server.Close()
}

func (s *HandlerSuite) post(path string, body any) (*http.Response, []byte) {
	raw, err := json.Marshal(body)
	s.Require().NoError(err)
	resp, err := http.Post(s.server.URL+path, "application/json", bytes.NewReader(raw))
	s.Require().NoError(err)
	defer resp.Body.Close()

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	s.Require().NoError(err)
	return resp, buf.Bytes()
}

func (s *HandlerSuite) TestBulkCreate() {
	s.Run("partial batch answers 200 with per-entity errors", func() {
		resp, body := s.post("/v1/bulk/_create", BulkRequest{
			RequestInfo: model.RequestInfo{APIID: "healthreg", MsgID: "m-1"},
			Households: []*Household{
				{Base: model.Base{ClientReferenceID: "ref-1", TenantID: "ke"}, MemberCount: 4},
				{Base: model.Base{ClientReferenceID: "ref-1", TenantID: "ke"}},
				{Base: model.Base{ClientReferenceID: "ref-2", TenantID: "ke"}},
			},
		})
		s.Equal(http.StatusOK, resp.StatusCode)

		var out BulkResponse
		s.Require().NoError(json.Unmarshal(body, &out))
		s.Len(out.Households, 3)
		s.Require().Len(out.Errors, 1)
		s.Equal("ref-1", out.Errors[0].ClientReferenceID)
		s.Equal(errs.CodeDuplicateInBatch, out.Errors[0].Errors[0].Code)

		s.NotEmpty(out.Households[0].ID)
		s.Equal(1, out.Households[0].RowVersion)
		s.Empty(out.Households[1].ID)
		s.Len(s.storage.saved["save-household-topic"], 2)
	})

	s.Run("empty batch is a request-level error", func() {
		resp, _ := s.post("/v1/bulk/_create", BulkRequest{})
		s.Equal(http.StatusBadRequest, resp.StatusCode)
	})

	s.Run("malformed body is a request-level error", func() {
		resp, err := http.Post(s.server.URL+"/v1/bulk/_create", "application/json", bytes.NewReader([]byte("{nope")))
		s.Require().NoError(err)
		resp.Body.Close()
		s.Equal(http.StatusBadRequest, resp.StatusCode)
	})
}

func (s *HandlerSuite) TestSingleCreate() {
	s.Run("valid household is accepted", func() {
		resp, body := s.post("/v1/_create", Request{
			Household: &Household{Base: model.Base{ClientReferenceID: "ref-1", TenantID: "ke"}},
		})
		s.Equal(http.StatusOK, resp.StatusCode)

		var out Response
		s.Require().NoError(json.Unmarshal(body, &out))
		s.NotEmpty(out.Household.ID)
	})

	s.Run("invalid household answers 400 with its errors", func() {
		resp, body := s.post("/v1/_create", Request{
			Household: &Household{Base: model.Base{ID: "pre-set", TenantID: "ke"}},
		})
		s.Equal(http.StatusBadRequest, resp.StatusCode)

		var out BulkResponse
		s.Require().NoError(json.Unmarshal(body, &out))
		s.Require().Len(out.Errors, 1)
		s.Equal(errs.CodeNullID, out.Errors[0].Errors[0].Code)
	})
}

func (s *HandlerSuite) TestBulkUpdate() {
	s.storage.stored = []*Household{{Base: model.Base{
		ID:           "srv-1",
		TenantID:     "ke",
		RowVersion:   2,
		AuditDetails: &model.AuditDetails{CreatedBy: "uid-orig", CreatedTime: 1600000000000},
	}}}

	resp, body := s.post("/v1/bulk/_update", BulkRequest{
		Households: []*Household{
			{Base: model.Base{ID: "srv-1", TenantID: "ke", RowVersion: 2}, MemberCount: 5},
			{Base: model.Base{ID: "srv-404", TenantID: "ke", RowVersion: 1}},
		},
	})
	s.Equal(http.StatusOK, resp.StatusCode)

	var out BulkResponse
	s.Require().NoError(json.Unmarshal(body, &out))
	s.Require().Len(out.Errors, 1)
	s.Equal("srv-404", out.Errors[0].ID)
	s.Equal(errs.CodeNonExistentEntity, out.Errors[0].Errors[0].Code)
	s.Equal(3, out.Households[0].RowVersion)
	s.Len(s.storage.saved["update-household-topic"], 1)
}

func (s *HandlerSuite) TestSearch() {
	s.Run("criteria search returns page and total", func() {
		s.storage.findRes = []*Household{{Base: model.Base{ID: "srv-1", TenantID: "ke"}}}
		s.storage.countRes = 7

		resp, body := s.post("/v1/_search?tenantId=ke&limit=1&offset=0", SearchRequest{
			Household: &Search{BoundaryCode: "L-042"},
		})
		s.Equal(http.StatusOK, resp.StatusCode)

		var out SearchResponse
		s.Require().NoError(json.Unmarshal(body, &out))
		s.Len(out.Households, 1)
		s.Equal(int64(7), out.TotalCount)
	})

	s.Run("missing tenant is rejected", func() {
		resp, _ := s.post("/v1/_search", SearchRequest{Household: &Search{}})
		s.Equal(http.StatusBadRequest, resp.StatusCode)
	})

	s.Run("id-only search bypasses the criteria query", func() {
		s.storage.stored = []*Household{{Base: model.Base{ID: "srv-1", TenantID: "ke", AuditDetails: &model.AuditDetails{}}}}

		resp, body := s.post("/v1/_search?tenantId=ke", SearchRequest{
			Household: &Search{SearchCriteria: model.SearchCriteria{IDs: []string{"srv-1"}}},
		})
		s.Equal(http.StatusOK, resp.StatusCode)

		var out SearchResponse
		s.Require().NoError(json.Unmarshal(body, &out))
		s.Require().Len(out.Households, 1)
		s.Equal("srv-1", out.Households[0].ID)
		s.Equal(int64(1), out.TotalCount)
	})
}
