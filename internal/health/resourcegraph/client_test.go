package resourcegraph_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resourcegraph/armresourcegraph"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stuartshay/pwsh-azure-health-sub000/internal/health/resourcegraph"
)

// fakeAPI captures the request and returns a scripted response.
type fakeAPI struct {
	request  armresourcegraph.QueryRequest
	response armresourcegraph.ClientResourcesResponse
	err      error
}

func (f *fakeAPI) Resources(_ context.Context, query armresourcegraph.QueryRequest, _ *armresourcegraph.ClientResourcesOptions) (armresourcegraph.ClientResourcesResponse, error) {
	f.request = query
	if f.err != nil {
		return armresourcegraph.ClientResourcesResponse{}, f.err
	}
	return f.response, nil
}

func newTestClient(t *testing.T, api *fakeAPI) *resourcegraph.Client {
	t.Helper()
	client, err := resourcegraph.NewClient(resourcegraph.ClientConfig{
		API:    api,
		Logger: zerolog.Nop(),
	})
	require.NoError(t, err)
	return client
}

func TestClient_Query(t *testing.T) {
	api := &fakeAPI{
		response: armresourcegraph.ClientResourcesResponse{
			QueryResponse: armresourcegraph.QueryResponse{
				Data: []any{
					map[string]any{
						"id":             "event-1",
						"eventType":      "ServiceIssue",
						"status":         "Active",
						"lastUpdateTime": "2026-08-20T10:00:00Z",
					},
					map[string]any{
						"id":             "event-2",
						"eventType":      "PlannedMaintenance",
						"status":         "Resolved",
						"lastUpdateTime": "2026-08-19T08:00:00Z",
					},
				},
			},
		},
	}
	client := newTestClient(t, api)

	queryStart := time.Date(2026, 8, 13, 12, 0, 0, 0, time.UTC)
	result, err := client.Query(context.Background(), "sub-1", queryStart)
	require.NoError(t, err)

	require.Len(t, result.Rows, 2)
	assert.Equal(t, "event-1", result.Rows[0]["id"])
	assert.False(t, result.Truncated)
}

func TestClient_Query_RequestShape(t *testing.T) {
	api := &fakeAPI{}
	client := newTestClient(t, api)

	queryStart := time.Date(2026, 8, 13, 12, 0, 0, 0, time.UTC)
	_, err := client.Query(context.Background(), "sub-1", queryStart)
	require.NoError(t, err)

	require.NotNil(t, api.request.Query)
	query := *api.request.Query
	assert.Contains(t, query, "ServiceHealthResources")
	assert.Contains(t, query, `datetime(2026-08-13T12:00:00Z)`)
	assert.True(t, strings.Contains(query, "ServiceIssue") && strings.Contains(query, "PlannedMaintenance"))

	require.Len(t, api.request.Subscriptions, 1)
	assert.Equal(t, "sub-1", *api.request.Subscriptions[0])

	require.NotNil(t, api.request.Options)
	assert.Equal(t, int32(resourcegraph.PageLimit), *api.request.Options.Top)
	assert.Equal(t, armresourcegraph.ResultFormatObjectArray, *api.request.Options.ResultFormat)
}

func TestClient_Query_TruncatedFlag(t *testing.T) {
	api := &fakeAPI{
		response: armresourcegraph.ClientResourcesResponse{
			QueryResponse: armresourcegraph.QueryResponse{
				Data:            []any{map[string]any{"id": "event-1"}},
				ResultTruncated: to.Ptr(armresourcegraph.ResultTruncatedTrue),
			},
		},
	}
	client := newTestClient(t, api)

	result, err := client.Query(context.Background(), "sub-1", time.Now())
	require.NoError(t, err)

	assert.True(t, result.Truncated)
}

func TestClient_Query_FullPageIsTruncated(t *testing.T) {
	rows := make([]any, resourcegraph.PageLimit)
	for i := range rows {
		rows[i] = map[string]any{"id": "event"}
	}
	api := &fakeAPI{
		response: armresourcegraph.ClientResourcesResponse{
			QueryResponse: armresourcegraph.QueryResponse{Data: rows},
		},
	}
	client := newTestClient(t, api)

	result, err := client.Query(context.Background(), "sub-1", time.Now())
	require.NoError(t, err)

	assert.True(t, result.Truncated, "a full page implies more rows may exist")
}

func TestClient_Query_EmptyResult(t *testing.T) {
	api := &fakeAPI{}
	client := newTestClient(t, api)

	result, err := client.Query(context.Background(), "sub-1", time.Now())
	require.NoError(t, err)

	assert.Empty(t, result.Rows)
	assert.False(t, result.Truncated)
}

func TestClient_Query_UpstreamError(t *testing.T) {
	api := &fakeAPI{err: errors.New("403 forbidden")}
	client := newTestClient(t, api)

	_, err := client.Query(context.Background(), "sub-1", time.Now())
	assert.Error(t, err)
}

func TestClient_Query_UnexpectedShape(t *testing.T) {
	api := &fakeAPI{
		response: armresourcegraph.ClientResourcesResponse{
			QueryResponse: armresourcegraph.QueryResponse{
				Data: map[string]any{"rows": []any{}},
			},
		},
	}
	client := newTestClient(t, api)

	_, err := client.Query(context.Background(), "sub-1", time.Now())
	assert.Error(t, err)
}
