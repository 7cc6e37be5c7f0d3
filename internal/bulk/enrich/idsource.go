package enrich

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"healthreg/internal/platform/serviceclient"
)

// IDSource hands out server ids for a batch. One call generates n ids so
// enrichment never loops over a remote sequence service.
type IDSource interface {
	NextIDs(ctx context.Context, tenantID string, n int) ([]string, error)
}

// UUIDSource generates random unique ids locally.
type UUIDSource struct{}

func (UUIDSource) NextIDs(_ context.Context, _ string, n int) ([]string, error) {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = uuid.NewString()
	}
	return ids, nil
}

// SequenceSource obtains formatted ids from the external id generation
// service, batched: one HTTP call per tenant group.
type SequenceSource struct {
	client *serviceclient.Client
	idName string
}

// NewSequenceSource builds a source drawing from the named sequence.
func NewSequenceSource(client *serviceclient.Client, idName string) *SequenceSource {
	return &SequenceSource{client: client, idName: idName}
}

type idGenRequest struct {
	IDRequests []idGenItem `json:"idRequests"`
}

type idGenItem struct {
	IDName   string `json:"idName"`
	TenantID string `json:"tenantId"`
	Count    int    `json:"count"`
}

type idGenResponse struct {
	IDResponses []struct {
		ID string `json:"id"`
	} `json:"idResponses"`
}

func (s *SequenceSource) NextIDs(ctx context.Context, tenantID string, n int) ([]string, error) {
	body := idGenRequest{IDRequests: []idGenItem{{IDName: s.idName, TenantID: tenantID, Count: n}}}
	var resp idGenResponse
	if err := s.client.PostJSON(ctx, "/id/v1/_generate", body, &resp); err != nil {
		return nil, fmt.Errorf("generate %d ids: %w", n, err)
	}
	if len(resp.IDResponses) != n {
		return nil, fmt.Errorf("id generation returned %d ids, wanted %d", len(resp.IDResponses), n)
	}
	ids := make([]string, n)
	for i, r := range resp.IDResponses {
		ids[i] = r.ID
	}
	return ids, nil
}
