package graph

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// scriptedDriver records executed queries in order and serves canned results
// either per-query or from a FIFO queue (for queries executed repeatedly,
// like the per-hop neighbor expansion).
type scriptedDriver struct {
	Queries []string
	Params  []map[string]interface{}

	Results map[string]neo4j.EagerResult
	Queue   []neo4j.EagerResult
	Err     error
}

func (d *scriptedDriver) ExecuteQuery(ctx context.Context, query string, params map[string]interface{}) (neo4j.EagerResult, error) {
	d.Queries = append(d.Queries, query)
	d.Params = append(d.Params, params)
	if d.Err != nil {
		return neo4j.EagerResult{}, d.Err
	}
	if res, ok := d.Results[query]; ok {
		return res, nil
	}
	if len(d.Queue) > 0 {
		res := d.Queue[0]
		d.Queue = d.Queue[1:]
		return res, nil
	}
	return neo4j.EagerResult{}, nil
}

func (d *scriptedDriver) BuildIndices(ctx context.Context) error      { return nil }
func (d *scriptedDriver) VerifyConnectivity(ctx context.Context) error { return nil }
func (d *scriptedDriver) Close(ctx context.Context) error             { return nil }

func rec(keys []string, values ...interface{}) *neo4j.Record {
	return &neo4j.Record{Keys: keys, Values: values}
}

func result(records ...*neo4j.Record) neo4j.EagerResult {
	return neo4j.EagerResult{Records: records}
}
