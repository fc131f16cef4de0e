package graph

import (
	"context"
	"errors"
)

// Client is the contract the profile repository needs from the underlying
// graph store. Cypher keeps the wallet/dimension/score-event model queryable
// for review tooling without binding the repository to one vendor.
type Client interface {
	ExecuteWrite(ctx context.Context, cypher string, params map[string]any) (Result, error)
	ExecuteRead(ctx context.Context, cypher string, params map[string]any) (Result, error)
	VerifyConnectivity(ctx context.Context) error
	Close(ctx context.Context) error
}

// Result holds the records produced by one query.
type Result struct {
	Records []Record
}

// Record is a single row of key-value pairs.
type Record map[string]any

// Options configures a client implementation.
type Options struct {
	URI            string
	Database       string
	Username       string
	Password       string
	MaxConnections int
}

// ErrMissingURI indicates no graph endpoint was configured.
var ErrMissingURI = errors.New("graph URI is required")
