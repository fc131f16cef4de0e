package graph

import (
	"context"
	"sync"
)

// MemoryClient records executed statements and replays queued results. It
// exists so repository logic can be tested without a running graph database.
type MemoryClient struct {
	mu          sync.Mutex
	writes      []Statement
	reads       []Statement
	readQueue   []Result
	writeQueue  []Result
	failWith    error
	pingFailure error
}

// Statement captures one executed cypher string with its parameters.
type Statement struct {
	Cypher string
	Params map[string]any
}

// NewMemoryClient returns an empty in-memory client.
func NewMemoryClient() *MemoryClient {
	return &MemoryClient{}
}

// FailWith makes every subsequent execute call return err.
func (m *MemoryClient) FailWith(err error) *MemoryClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWith = err
	return m
}

// FailPing makes VerifyConnectivity return err.
func (m *MemoryClient) FailPing(err error) *MemoryClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingFailure = err
	return m
}

// QueueReadResult enqueues a result for the next ExecuteRead call.
func (m *MemoryClient) QueueReadResult(res Result) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readQueue = append(m.readQueue, res)
}

// QueueWriteResult enqueues a result for the next ExecuteWrite call.
func (m *MemoryClient) QueueWriteResult(res Result) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeQueue = append(m.writeQueue, res)
}

func (m *MemoryClient) ExecuteWrite(_ context.Context, cypher string, params map[string]any) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failWith != nil {
		return Result{}, m.failWith
	}
	m.writes = append(m.writes, Statement{Cypher: cypher, Params: cloneParams(params)})

	if len(m.writeQueue) == 0 {
		return Result{}, nil
	}
	res := m.writeQueue[0]
	m.writeQueue = m.writeQueue[1:]
	return res, nil
}

func (m *MemoryClient) ExecuteRead(_ context.Context, cypher string, params map[string]any) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failWith != nil {
		return Result{}, m.failWith
	}
	m.reads = append(m.reads, Statement{Cypher: cypher, Params: cloneParams(params)})

	if len(m.readQueue) == 0 {
		return Result{}, nil
	}
	res := m.readQueue[0]
	m.readQueue = m.readQueue[1:]
	return res, nil
}

func (m *MemoryClient) VerifyConnectivity(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pingFailure
}

func (m *MemoryClient) Close(context.Context) error {
	return nil
}

// Writes returns a snapshot of executed write statements.
func (m *MemoryClient) Writes() []Statement {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Statement(nil), m.writes...)
}

// Reads returns a snapshot of executed read statements.
func (m *MemoryClient) Reads() []Statement {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Statement(nil), m.reads...)
}

func cloneParams(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
