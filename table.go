package ebb

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ebb-sync/ebb/internal/adapter"
	"github.com/ebb-sync/ebb/internal/engine"
	"github.com/ebb-sync/ebb/internal/live"
	"github.com/ebb-sync/ebb/internal/validate"
)

// Table is the per-table operation surface.
type Table struct {
	client *Client
	name   string
}

// Name returns the table name.
func (t *Table) Name() string {
	return t.name
}

// Create inserts one record, with nested creates for related records, and
// returns the inserted record with generated columns populated.
func (t *Table) Create(ctx context.Context, input Input) (Row, error) {
	return t.client.eng.Create(ctx, t.name, input)
}

// CreateMany inserts a batch with a single statement. Nested relation
// fields are rejected. Returns the inserted row count.
func (t *Table) CreateMany(ctx context.Context, input Input) (int64, error) {
	return t.client.eng.CreateMany(ctx, t.name, input)
}

// FindUnique reads at most one record; nil when no record matches.
func (t *Table) FindUnique(ctx context.Context, input Input) (Row, error) {
	return t.client.eng.FindUnique(ctx, t.name, input)
}

// FindFirst reads the first matching record; nil when none match.
func (t *Table) FindFirst(ctx context.Context, input Input) (Row, error) {
	return t.client.eng.FindFirst(ctx, t.name, input)
}

// FindMany reads all matching records.
func (t *Table) FindMany(ctx context.Context, input Input) ([]Row, error) {
	return t.client.eng.FindMany(ctx, t.name, input)
}

// Update modifies one record, propagating key changes to dependents and
// applying nested relation updates. Returns the updated record.
func (t *Table) Update(ctx context.Context, input Input) (Row, error) {
	return t.client.eng.Update(ctx, t.name, input)
}

// UpdateMany updates all matching rows with one statement. Returns the
// affected row count.
func (t *Table) UpdateMany(ctx context.Context, input Input) (int64, error) {
	return t.client.eng.UpdateMany(ctx, t.name, input)
}

// Upsert updates the matching record or creates it when absent.
func (t *Table) Upsert(ctx context.Context, input Input) (Row, error) {
	return t.client.eng.Upsert(ctx, t.name, input)
}

// Delete removes one record and returns it as it was before deletion.
func (t *Table) Delete(ctx context.Context, input Input) (Row, error) {
	return t.client.eng.Delete(ctx, t.name, input)
}

// DeleteMany deletes all matching rows with one statement. Returns the
// deleted row count.
func (t *Table) DeleteMany(ctx context.Context, input Input) (int64, error) {
	return t.client.eng.DeleteMany(ctx, t.name, input)
}

// SyncResult identifies an established shape subscription.
type SyncResult struct {
	Key string
}

// Sync subscribes this table (and the tables reachable through the include
// tree) to replication. The where filter is compiled to a server-side
// fragment; a missing key gets a generated one.
func (t *Table) Sync(ctx context.Context, input Input) (SyncResult, error) {
	if t.client.shapes == nil {
		return SyncResult{}, fmt.Errorf("sync: no shape manager configured")
	}

	eng := t.client.eng
	tbl, err := eng.Registry().Table(t.name)
	if err != nil {
		return SyncResult{}, engine.NewInvalidArgument("%s", err.Error())
	}
	norm, err := validate.For(tbl, validate.Sync).Validate(input)
	if err != nil {
		return SyncResult{}, engine.NewInvalidArgument("%s", err.Error())
	}

	where, err := eng.CompileSyncWhere(norm["where"])
	if err != nil {
		return SyncResult{}, err
	}
	include, _ := norm["include"].(map[string]any)
	tables, err := eng.TrackedTables(t.name, include)
	if err != nil {
		return SyncResult{}, err
	}

	shapes := make([]engine.Shape, 0, len(tables))
	for _, table := range tables {
		shape := engine.Shape{Table: table}
		if table == t.name {
			shape.Where = where
			shape.Include = includeFields(include)
		}
		shapes = append(shapes, shape)
	}

	key, _ := norm["key"].(string)
	if key == "" {
		key = uuid.NewString()
	}
	if err := t.client.shapes.Subscribe(shapes, key); err != nil {
		return SyncResult{}, err
	}
	return SyncResult{Key: key}, nil
}

func includeFields(include map[string]any) []string {
	out := make([]string, 0, len(include))
	for field, arg := range include {
		if on, ok := arg.(bool); ok && !on {
			continue
		}
		out = append(out, field)
	}
	return out
}

// LiveUnique wraps FindUnique into a re-runnable live query.
func (t *Table) LiveUnique(input Input) (*live.Result, error) {
	return t.liveQuery(input, func(ctx context.Context) ([]adapter.Row, error) {
		row, err := t.FindUnique(ctx, input)
		if err != nil || row == nil {
			return nil, err
		}
		return []adapter.Row{row}, nil
	})
}

// LiveFirst wraps FindFirst into a re-runnable live query.
func (t *Table) LiveFirst(input Input) (*live.Result, error) {
	return t.liveQuery(input, func(ctx context.Context) ([]adapter.Row, error) {
		row, err := t.FindFirst(ctx, input)
		if err != nil || row == nil {
			return nil, err
		}
		return []adapter.Row{row}, nil
	})
}

// LiveMany wraps FindMany into a re-runnable live query.
func (t *Table) LiveMany(input Input) (*live.Result, error) {
	return t.liveQuery(input, func(ctx context.Context) ([]adapter.Row, error) {
		return t.FindMany(ctx, input)
	})
}

func (t *Table) liveQuery(input Input, run live.Runner) (*live.Result, error) {
	include, _ := input["include"].(map[string]any)
	tables, err := t.client.eng.TrackedTables(t.name, include)
	if err != nil {
		return nil, err
	}
	return live.New(tables, run, t.client.notifier), nil
}

// SetReplicationTransform registers a row transform for this table under
// its namespace-qualified name.
func (t *Table) SetReplicationTransform(transform func(Row) Row) error {
	if t.client.replication == nil {
		return fmt.Errorf("replication: no transform manager configured")
	}
	return t.client.replication.SetTableTransform(t.qualifiedName(), transform)
}

// ClearReplicationTransform removes this table's row transform.
func (t *Table) ClearReplicationTransform() error {
	if t.client.replication == nil {
		return fmt.Errorf("replication: no transform manager configured")
	}
	return t.client.replication.ClearTableTransform(t.qualifiedName())
}

func (t *Table) qualifiedName() string {
	return t.client.ad.DefaultNamespace() + "." + t.name
}

// RawQuery executes a read statement after the dangerous-keyword sniff.
func (c *Client) RawQuery(ctx context.Context, sql string, args ...any) ([]Row, error) {
	return c.eng.RawQuery(ctx, adapter.Statement{Text: sql, Args: args})
}

// UnsafeExec executes any statement, bypassing the sniffer.
func (c *Client) UnsafeExec(ctx context.Context, sql string, args ...any) ([]Row, error) {
	return c.eng.UnsafeExec(ctx, adapter.Statement{Text: sql, Args: args})
}
