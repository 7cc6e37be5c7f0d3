package serviceclient

import (
	"context"
	"encoding/json"
	"fmt"
)

// EntityRef is the subset of a peer entity the lookup cares about.
type EntityRef struct {
	ID                string `json:"id"`
	ClientReferenceID string `json:"clientReferenceId"`
}

// SearchLookup checks referenced ids against a peer service's search
// endpoint. One lookup instance is configured per referenced entity kind;
// the request and response payload keys follow the peer's envelope
// convention (e.g. "Individual" for the individual registry).
type SearchLookup struct {
	client      *Client
	path        string
	requestKey  string
	responseKey string
}

// NewSearchLookup builds a lookup for one peer search endpoint.
func NewSearchLookup(client *Client, path, requestKey, responseKey string) *SearchLookup {
	return &SearchLookup{client: client, path: path, requestKey: requestKey, responseKey: responseKey}
}

// ExistingIDs returns the subset of ids that exist in the peer service for
// the tenant. One batched call per invocation; limit equals the batch size
// so the peer returns every match.
func (l *SearchLookup) ExistingIDs(ctx context.Context, tenantID string, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	body := map[string]any{
		"RequestInfo": map[string]any{"apiId": "healthreg"},
		l.requestKey: map[string]any{
			"id":       ids,
			"tenantId": tenantID,
		},
	}
	url := fmt.Sprintf("%s?tenantId=%s&limit=%d&offset=0", l.path, tenantID, len(ids))

	var envelope map[string]json.RawMessage
	if err := l.client.PostJSON(ctx, url, body, &envelope); err != nil {
		return nil, err
	}

	var refs []EntityRef
	if raw, ok := envelope[l.responseKey]; ok {
		if err := json.Unmarshal(raw, &refs); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", l.responseKey, err)
		}
	}

	requested := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		requested[id] = struct{}{}
	}
	var existing []string
	for _, ref := range refs {
		if _, ok := requested[ref.ID]; ok {
			existing = append(existing, ref.ID)
		} else if _, ok := requested[ref.ClientReferenceID]; ok {
			existing = append(existing, ref.ClientReferenceID)
		}
	}
	return existing, nil
}
