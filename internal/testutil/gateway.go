package testutil

import (
	"context"
	"sync"

	"github.com/PseudoDevs/IamJohnDevORM/internal/queryir"
)

// Call is one statement received by a RecordingGateway.
type Call struct {
	Kind   string // "query" or "exec"
	SQL    string
	Params []any
}

// RecordingGateway is a statement gateway for tests that records every
// statement and answers from canned results.
//
// Rows are returned for any Query whose SQL has an entry in QueryRows;
// other queries return no rows. Exec returns Affected. A non-nil Err fails
// every call.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type RecordingGateway struct {
	mu sync.Mutex

	QueryRows map[string][]queryir.Row
	Affected  int64
	Err       error

	calls []Call
}

// NewRecordingGateway creates a gateway that reports one affected row per
// Exec and no rows per Query.
func NewRecordingGateway() *RecordingGateway {
	return &RecordingGateway{
		QueryRows: make(map[string][]queryir.Row),
		Affected:  1,
	}
}

// Query implements builder.Gateway.
func (g *RecordingGateway) Query(_ context.Context, sql string, params []any) ([]queryir.Row, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, Call{Kind: "query", SQL: sql, Params: params})
	if g.Err != nil {
		return nil, g.Err
	}
	return g.QueryRows[sql], nil
}

// Exec implements builder.Gateway.
func (g *RecordingGateway) Exec(_ context.Context, sql string, params []any) (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, Call{Kind: "exec", SQL: sql, Params: params})
	if g.Err != nil {
		return 0, g.Err
	}
	return g.Affected, nil
}

// Calls returns a copy of the recorded calls in order.
func (g *RecordingGateway) Calls() []Call {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Call, len(g.calls))
	copy(out, g.calls)
	return out
}

// Reset forgets recorded calls. Canned results are kept.
func (g *RecordingGateway) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = nil
}
