// Package ebb is a schema-aware data-access layer over an embedded SQL
// database. Given a registry describing tables and their relations, it
// translates nested structured queries and mutations into parameterized SQL,
// executes them inside a single transaction, and reassembles hierarchical
// results.
package ebb

import (
	"fmt"

	"github.com/ebb-sync/ebb/internal/adapter"
	"github.com/ebb-sync/ebb/internal/engine"
	"github.com/ebb-sync/ebb/internal/live"
	"github.com/ebb-sync/ebb/internal/schema"
	"github.com/ebb-sync/ebb/internal/sqlgen"
)

// Row is a record as returned by reads: column → value, with relation
// fields holding a Row or []Row after include expansion.
type Row = adapter.Row

// Input is the structured form of one operation: data/where/select/include
// and the per-kind arguments, as documented on the Table methods.
type Input = map[string]any

// Notifier publishes table-change events for live queries.
type Notifier = live.Notifier

// ShapeManager initiates replication subscriptions for the shapes a sync
// call computes. Implementations are external to this module.
type ShapeManager interface {
	Subscribe(shapes []engine.Shape, key string) error
}

// ReplicationTransformManager applies per-table transforms to replicated
// rows. Implementations are external to this module.
type ReplicationTransformManager interface {
	SetTableTransform(qualifiedName string, transform func(Row) Row) error
	ClearTableTransform(qualifiedName string) error
}

// Config assembles a Client.
type Config struct {
	// DatabasePath is the SQLite database to open. Ignored when Adapter is
	// set.
	DatabasePath string

	// Adapter overrides the database connection, e.g. for tests.
	Adapter adapter.Adapter

	// Registry describes the tables the client serves.
	Registry *schema.Registry

	// Notifier wires live queries to change events. Optional.
	Notifier Notifier

	// Shapes receives sync subscriptions. Optional; Sync fails without it.
	Shapes ShapeManager

	// Replication receives table-transform registrations. Optional.
	Replication ReplicationTransformManager
}

// Client is the top-level handle. Safe for concurrent use; every operation
// owns its own transaction.
type Client struct {
	eng         *engine.Engine
	ad          adapter.Adapter
	reg         *schema.Registry
	notifier    Notifier
	shapes      ShapeManager
	replication ReplicationTransformManager
}

// Open builds a Client from a Config, opening the database when no adapter
// is supplied.
func Open(cfg Config) (*Client, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("config: Registry is required")
	}

	ad := cfg.Adapter
	if ad == nil {
		if cfg.DatabasePath == "" {
			return nil, fmt.Errorf("config: DatabasePath or Adapter is required")
		}
		sqlite, err := adapter.OpenSQLite(cfg.DatabasePath)
		if err != nil {
			return nil, err
		}
		ad = sqlite
	}

	return &Client{
		eng:         engine.New(cfg.Registry, ad, sqlgen.SQLite),
		ad:          ad,
		reg:         cfg.Registry,
		notifier:    cfg.Notifier,
		shapes:      cfg.Shapes,
		replication: cfg.Replication,
	}, nil
}

// Close closes the underlying database.
func (c *Client) Close() error {
	return c.ad.Close()
}

// Table returns the operation surface for one table. The name is resolved
// lazily: reads, writes, sync and live queries on an unknown table fail with
// an invalid-argument error. Replication transform registration does not
// look the table up.
func (c *Client) Table(name string) *Table {
	return &Table{client: c, name: name}
}

// Engine exposes the underlying query engine for advanced integrations.
func (c *Client) Engine() *engine.Engine {
	return c.eng
}
