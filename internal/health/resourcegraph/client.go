// Package resourcegraph queries Azure Resource Graph for service health
// events.
package resourcegraph

import (
	"context"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resourcegraph/armresourcegraph"
	"github.com/rs/zerolog"

	"github.com/stuartshay/pwsh-azure-health-sub000/internal/health"
)

const (
	// ProviderName identifies this query source.
	ProviderName = "resourcegraph"

	// PageLimit is the documented Resource Graph row cap per query. Hitting
	// it means older in-scope rows may exist beyond the page.
	PageLimit = 1000
)

// eventsQuery is the KQL query against the ServiceHealthResources table.
// Active events are always re-confirmed regardless of age; Resolved events
// are in scope only while recently updated. The window start is substituted
// as an RFC3339 timestamp.
const eventsQuery = `ServiceHealthResources
| where type == "microsoft.resourcehealth/events"
| where properties.EventType in ("ServiceIssue", "PlannedMaintenance")
| where properties.Status == "Active" or todatetime(properties.LastUpdateTime) >= datetime(%s)
| order by todatetime(properties.LastUpdateTime) desc
| project id,
    trackingId = name,
    eventType = tostring(properties.EventType),
    status = tostring(properties.Status),
    title = tostring(properties.Title),
    summary = tostring(properties.Summary),
    level = tostring(properties.Level),
    lastUpdateTime = tostring(properties.LastUpdateTime),
    impact = properties.Impact`

// resourcesAPI is the slice of the Resource Graph SDK client we use.
type resourcesAPI interface {
	Resources(ctx context.Context, query armresourcegraph.QueryRequest, options *armresourcegraph.ClientResourcesOptions) (armresourcegraph.ClientResourcesResponse, error)
}

// ClientConfig holds configuration for the Resource Graph client.
type ClientConfig struct {
	// Credential is the token credential for ARM calls (required unless API
	// is set).
	Credential azcore.TokenCredential

	// API overrides the underlying SDK client, for tests.
	API resourcesAPI

	// Logger for query operations.
	Logger zerolog.Logger
}

// Client queries Resource Graph for a subscription's health events. It
// implements health.QuerySource.
type Client struct {
	api    resourcesAPI
	logger zerolog.Logger
}

// NewClient creates a Resource Graph query client.
func NewClient(cfg ClientConfig) (*Client, error) {
	api := cfg.API
	if api == nil {
		sdkClient, err := armresourcegraph.NewClient(cfg.Credential, nil)
		if err != nil {
			return nil, fmt.Errorf("creating resource graph client: %w", err)
		}
		api = sdkClient
	}
	return &Client{api: api, logger: cfg.Logger}, nil
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// Query fetches health-event rows for the subscription, scoped to events
// that are Active or updated at or after queryStart, newest first, capped
// at PageLimit rows.
func (c *Client) Query(ctx context.Context, subscriptionID string, queryStart time.Time) (*health.QueryResult, error) {
	query := fmt.Sprintf(eventsQuery, queryStart.UTC().Format(time.RFC3339))

	c.logger.Debug().
		Str("subscription_id", subscriptionID).
		Time("query_start", queryStart).
		Msg("querying resource graph")

	resp, err := c.api.Resources(ctx, armresourcegraph.QueryRequest{
		Query:         to.Ptr(query),
		Subscriptions: []*string{to.Ptr(subscriptionID)},
		Options: &armresourcegraph.QueryRequestOptions{
			Top:          to.Ptr[int32](PageLimit),
			ResultFormat: to.Ptr(armresourcegraph.ResultFormatObjectArray),
		},
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("executing resource graph query: %w", err)
	}

	rows, err := decodeRows(resp.Data)
	if err != nil {
		return nil, err
	}

	truncated := len(rows) >= PageLimit
	if resp.ResultTruncated != nil && *resp.ResultTruncated == armresourcegraph.ResultTruncatedTrue {
		truncated = true
	}

	c.logger.Debug().
		Str("subscription_id", subscriptionID).
		Int("rows", len(rows)).
		Bool("truncated", truncated).
		Msg("resource graph query completed")

	return &health.QueryResult{Rows: rows, Truncated: truncated}, nil
}

// decodeRows unwraps the object-array result payload.
func decodeRows(data any) ([]health.RawEvent, error) {
	if data == nil {
		return nil, nil
	}

	items, ok := data.([]any)
	if !ok {
		return nil, fmt.Errorf("unexpected resource graph result shape %T", data)
	}

	rows := make([]health.RawEvent, 0, len(items))
	for _, item := range items {
		row, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("unexpected resource graph row shape %T", item)
		}
		rows = append(rows, health.RawEvent(row))
	}
	return rows, nil
}
