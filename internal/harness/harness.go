package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ebb-sync/ebb"
	"github.com/ebb-sync/ebb/internal/engine"
	"github.com/ebb-sync/ebb/internal/schema"
)

// StepResult captures one step's outcome for snapshotting.
type StepResult struct {
	Op    string    `json:"op"`
	Table string    `json:"table"`
	Rows  []ebb.Row `json:"rows,omitempty"`
	Count *int64    `json:"count,omitempty"`
	Error string    `json:"error,omitempty"`
}

// Snapshot is the complete outcome of a scenario run.
type Snapshot struct {
	Scenario string       `json:"scenario"`
	Steps    []StepResult `json:"steps"`
}

// Run executes a scenario file against a fresh in-memory database and
// asserts every step's expectations. Returns the snapshot for golden-file
// comparison.
func Run(t *testing.T, path string) *Snapshot {
	t.Helper()

	sc, err := LoadScenario(path)
	require.NoError(t, err)

	reg, err := schema.LoadCUE(sc.Schema)
	require.NoError(t, err, "scenario %s: schema", sc.Name)

	client, err := ebb.Open(ebb.Config{DatabasePath: ":memory:", Registry: reg})
	require.NoError(t, err)
	defer client.Close()

	ctx := context.Background()
	for _, stmt := range sc.Setup {
		_, err := client.UnsafeExec(ctx, stmt)
		require.NoError(t, err, "scenario %s: setup %q", sc.Name, stmt)
	}

	snap := &Snapshot{Scenario: sc.Name}
	for i, step := range sc.Steps {
		result := runStep(ctx, t, client, sc.Name, i, step)
		snap.Steps = append(snap.Steps, result)
	}
	return snap
}

func runStep(ctx context.Context, t *testing.T, client *ebb.Client, scenario string, idx int, step Step) StepResult {
	t.Helper()

	result := StepResult{Op: step.Op, Table: step.Table}
	table := client.Table(step.Table)

	var (
		row   ebb.Row
		rows  []ebb.Row
		count int64
		err   error
	)
	single := true

	switch step.Op {
	case "create":
		row, err = table.Create(ctx, step.Input)
	case "findUnique":
		row, err = table.FindUnique(ctx, step.Input)
	case "findFirst":
		row, err = table.FindFirst(ctx, step.Input)
	case "update":
		row, err = table.Update(ctx, step.Input)
	case "upsert":
		row, err = table.Upsert(ctx, step.Input)
	case "delete":
		row, err = table.Delete(ctx, step.Input)
	case "findMany":
		single = false
		rows, err = table.FindMany(ctx, step.Input)
	case "createMany":
		single = false
		count, err = table.CreateMany(ctx, step.Input)
	case "updateMany":
		single = false
		count, err = table.UpdateMany(ctx, step.Input)
	case "deleteMany":
		single = false
		count, err = table.DeleteMany(ctx, step.Input)
	default:
		t.Fatalf("scenario %s: step %d: unknown op %q", scenario, idx, step.Op)
	}

	if step.ExpectError != "" {
		require.Error(t, err, "scenario %s: step %d (%s %s) expected error %s",
			scenario, idx, step.Op, step.Table, step.ExpectError)
		var ee *engine.Error
		require.ErrorAs(t, err, &ee, "scenario %s: step %d", scenario, idx)
		require.Equal(t, step.ExpectError, string(ee.Code), "scenario %s: step %d", scenario, idx)
		result.Error = string(ee.Code)
		return result
	}
	require.NoError(t, err, "scenario %s: step %d (%s %s)", scenario, idx, step.Op, step.Table)

	switch {
	case single:
		if step.ExpectNil {
			require.Nil(t, row, "scenario %s: step %d", scenario, idx)
			return result
		}
		require.NotNil(t, row, "scenario %s: step %d", scenario, idx)
		result.Rows = []ebb.Row{row}
		if step.Expect != nil {
			matchSubset(t, scenario, idx, step.Expect, row)
		}
	case step.Op == "findMany":
		result.Rows = rows
		if step.ExpectCount != nil {
			require.Len(t, rows, int(*step.ExpectCount), "scenario %s: step %d", scenario, idx)
		}
		if step.ExpectRows != nil {
			require.Len(t, rows, len(step.ExpectRows), "scenario %s: step %d", scenario, idx)
			for j, expect := range step.ExpectRows {
				matchSubset(t, scenario, idx, expect, rows[j])
			}
		}
	default:
		result.Count = &count
		if step.ExpectCount != nil {
			require.Equal(t, *step.ExpectCount, count, "scenario %s: step %d", scenario, idx)
		}
	}
	return result
}

// matchSubset asserts that every expected entry appears in the actual row,
// recursing into attached relation rows.
func matchSubset(t *testing.T, scenario string, idx int, expected map[string]any, actual ebb.Row) {
	t.Helper()

	for key, want := range expected {
		got, ok := actual[key]
		require.True(t, ok, "scenario %s: step %d: field %q missing", scenario, idx, key)

		switch wantTyped := want.(type) {
		case map[string]any:
			child, ok := got.(ebb.Row)
			require.True(t, ok, "scenario %s: step %d: field %q is not a record", scenario, idx, key)
			matchSubset(t, scenario, idx, wantTyped, child)
		case []any:
			children, ok := got.([]ebb.Row)
			require.True(t, ok, "scenario %s: step %d: field %q is not a list", scenario, idx, key)
			require.Len(t, children, len(wantTyped), "scenario %s: step %d: field %q", scenario, idx, key)
			for j, wantChild := range wantTyped {
				wantMap, ok := wantChild.(map[string]any)
				require.True(t, ok, "scenario %s: step %d: field %q[%d]", scenario, idx, key, j)
				matchSubset(t, scenario, idx, wantMap, children[j])
			}
		default:
			require.True(t, looseEqual(want, got),
				"scenario %s: step %d: field %q: want %v (%T), got %v (%T)",
				scenario, idx, key, want, want, got, got)
		}
	}
}

// looseEqual compares expectation values against driver values across the
// representations SQLite hands back: integers widen, booleans store as 0/1.
func looseEqual(want, got any) bool {
	if wb, ok := want.(bool); ok {
		want = int64(0)
		if wb {
			want = int64(1)
		}
	}
	if wf, ok := toFloat(want); ok {
		gf, gok := toFloat(got)
		return gok && wf == gf
	}
	return want == got
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
