package driver

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

type executed struct {
	Query  string
	Params map[string]any
}

// MockDriver records every query and answers from MockResults by query text,
// falling back to MockResult.
type MockDriver struct {
	Executed    []executed
	MockResult  neo4j.EagerResult
	MockResults map[string]neo4j.EagerResult
	Err         error
}

func (m *MockDriver) ExecuteQuery(ctx context.Context, query string, params map[string]any) (neo4j.EagerResult, error) {
	m.Executed = append(m.Executed, executed{Query: query, Params: params})
	if m.Err != nil {
		return neo4j.EagerResult{}, m.Err
	}
	if r, ok := m.MockResults[query]; ok {
		return r, nil
	}
	return m.MockResult, nil
}

func (m *MockDriver) BuildIndices(ctx context.Context) error {
	return nil
}

func (m *MockDriver) Close(ctx context.Context) error {
	return nil
}

func record(keys []string, values ...any) *neo4j.Record {
	return &neo4j.Record{Keys: keys, Values: values}
}

func result(records ...*neo4j.Record) neo4j.EagerResult {
	var keys []string
	if len(records) > 0 {
		keys = records[0].Keys
	}
	return neo4j.EagerResult{Keys: keys, Records: records}
}
