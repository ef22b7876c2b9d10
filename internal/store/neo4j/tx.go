package neo4j

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Session is the subset of neo4j.SessionWithContext the store uses: the
// managed-transaction entry points plus auto-commit Run for schema
// statements.
type Session interface {
	ExecuteRead(ctx context.Context, work neo4j.ManagedTransactionWork, configurers ...func(*neo4j.TransactionConfig)) (any, error)
	ExecuteWrite(ctx context.Context, work neo4j.ManagedTransactionWork, configurers ...func(*neo4j.TransactionConfig)) (any, error)
	Run(ctx context.Context, cypher string, params map[string]any, configurers ...func(*neo4j.TransactionConfig)) (neo4j.ResultWithContext, error)
}

// cypherRunner is the transaction facade: one decoded value or row per
// unit of work, nil when the query matched nothing. Store errors
// propagate unmodified; there is no retry here.
type cypherRunner interface {
	// ReadValue runs the query in a read transaction and decodes the
	// first value of the first row through the inbound coercion.
	ReadValue(ctx context.Context, query string, params map[string]any) (any, error)

	// WriteRecord runs the query in a write transaction with the
	// outbound-coerced params nested under the `data` key, and decodes
	// the full first row into a map keyed by the return aliases.
	WriteRecord(ctx context.Context, query string, params map[string]any) (map[string]any, error)
}

type sessionRunner struct {
	session Session
}

func (r *sessionRunner) ReadValue(ctx context.Context, query string, params map[string]any) (any, error) {
	out, err := r.session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		if !result.Next(ctx) {
			return nil, result.Err()
		}
		record := result.Record()
		if record == nil || len(record.Values) == 0 {
			return nil, nil
		}
		return fromValue(record.Values[0]), nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *sessionRunner) WriteRecord(ctx context.Context, query string, params map[string]any) (map[string]any, error) {
	out, err := r.session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, query, map[string]any{"data": toProps(params)})
		if err != nil {
			return nil, err
		}
		if !result.Next(ctx) {
			return nil, result.Err()
		}
		record := result.Record()
		if record == nil {
			return nil, nil
		}
		row := make(map[string]any, len(record.Keys))
		for i, key := range record.Keys {
			row[key] = fromValue(record.Values[i])
		}
		return row, nil
	})
	if err != nil {
		return nil, err
	}
	row, ok := out.(map[string]any)
	if !ok {
		return nil, nil
	}
	return row, nil
}
