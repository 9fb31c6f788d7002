package bigquery

import (
	"context"
	"testing"

	"github.com/pharmadata/pharmadata-backend/pkg/config"
)

func TestNewClient_Validation(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		gcp  config.GCPConfig
		cfg  config.BigQueryConfig
	}{
		{
			name: "missing project id",
			gcp:  config.GCPConfig{},
			cfg:  config.BigQueryConfig{Dataset: "pharmadata", UsageEventsTable: "usage_events"},
		},
		{
			name: "missing dataset",
			gcp:  config.GCPConfig{ProjectID: "pharmadata-prod"},
			cfg:  config.BigQueryConfig{UsageEventsTable: "usage_events"},
		},
		{
			name: "missing table",
			gcp:  config.GCPConfig{ProjectID: "pharmadata-prod"},
			cfg:  config.BigQueryConfig{Dataset: "pharmadata"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewClient(ctx, tt.gcp, tt.cfg, nil); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}

func TestNilClientMethods(t *testing.T) {
	var c *Client

	if err := c.Ping(context.Background()); err == nil {
		t.Fatal("expected error from nil client ping")
	}
	if err := c.InsertRows(context.Background(), "usage_events", []any{struct{}{}}); err == nil {
		t.Fatal("expected error from nil client insert")
	}
	if got := c.UsageTable(); got != "" {
		t.Fatalf("UsageTable on nil client = %q", got)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close on nil client: %v", err)
	}
}
