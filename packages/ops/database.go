package ops

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/abdul-hamid-achik/flowspec/packages/core/leaf"
	"github.com/abdul-hamid-achik/flowspec/packages/core/parser"
	"github.com/abdul-hamid-achik/flowspec/packages/db"
)

// DatabaseOp runs the query a database step describes. Connections are
// opened on first use per DSN and reused for the rest of the run.
type DatabaseOp struct {
	mu      sync.Mutex
	clients map[string]*db.Client
}

func (o *DatabaseOp) Kind() parser.StepType {
	return parser.StepDatabase
}

func (o *DatabaseOp) Execute(ctx context.Context, step *parser.Step) (*leaf.Result, error) {
	client, err := o.clientFor(ctx, step.Database.DSN)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result, err := client.Query(ctx, step.Database.Query)
	duration := time.Since(start)
	if err != nil {
		return nil, err
	}

	// Rows become a JSON body so jsonpath extraction and validation
	// work the same way they do for HTTP responses.
	body, err := json.Marshal(map[string]any{
		"rows":      result.Rows,
		"row_count": result.RowCount,
		"columns":   result.Columns,
	})
	if err != nil {
		return nil, leaf.WrapError(leaf.KindParsing, err, "encoding query result")
	}

	return &leaf.Result{
		Response: &leaf.Response{
			Status:   200,
			Headers:  map[string]string{"Content-Type": "application/json"},
			Body:     body,
			Duration: duration,
			Raw:      result,
		},
		Performance: map[string]float64{
			"query_ms": float64(duration.Microseconds()) / 1000.0,
		},
	}, nil
}

func (o *DatabaseOp) clientFor(ctx context.Context, dsn string) (*db.Client, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.clients == nil {
		o.clients = make(map[string]*db.Client)
	}
	if client, ok := o.clients[dsn]; ok {
		return client, nil
	}
	client, err := db.Open(ctx, dsn)
	if err != nil {
		return nil, err
	}
	o.clients[dsn] = client
	return client, nil
}

func (o *DatabaseOp) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	var firstErr error
	for _, client := range o.clients {
		if err := client.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	o.clients = nil
	return firstErr
}
