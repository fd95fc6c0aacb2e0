package live

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ebb-sync/ebb/internal/adapter"
)

// fakeNotifier records subscriptions and lets tests fire change events.
type fakeNotifier struct {
	tables    [][]string
	callbacks []func()
	cancelled int
}

func (n *fakeNotifier) Subscribe(tables []string, fn func()) func() {
	n.tables = append(n.tables, tables)
	n.callbacks = append(n.callbacks, fn)
	return func() { n.cancelled++ }
}

func (n *fakeNotifier) fire() {
	for _, fn := range n.callbacks {
		fn()
	}
}

func TestResultRunReturnsRowsAndTables(t *testing.T) {
	runs := 0
	r := New([]string{"Author", "Post"}, func(ctx context.Context) ([]adapter.Row, error) {
		runs++
		return []adapter.Row{{"id": int64(runs)}}, nil
	}, nil)

	rows, tables, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Author", "Post"}, tables)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(1), rows[0]["id"])

	// Re-running executes the underlying read again.
	rows, _, err = r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), rows[0]["id"])
}

func TestResultSubscribe(t *testing.T) {
	notifier := &fakeNotifier{}
	r := New([]string{"Post"}, func(ctx context.Context) ([]adapter.Row, error) {
		return nil, nil
	}, notifier)

	fired := 0
	cancel := r.Subscribe(func() { fired++ })

	require.Len(t, notifier.tables, 1)
	assert.Equal(t, []string{"Post"}, notifier.tables[0])

	notifier.fire()
	assert.Equal(t, 1, fired)

	cancel()
	assert.Equal(t, 1, notifier.cancelled)
}

func TestResultSubscribeWithoutNotifier(t *testing.T) {
	r := New(nil, func(ctx context.Context) ([]adapter.Row, error) { return nil, nil }, nil)
	cancel := r.Subscribe(func() {})
	require.NotNil(t, cancel)
	cancel()
}

func TestResultTablesIsACopy(t *testing.T) {
	r := New([]string{"Post"}, func(ctx context.Context) ([]adapter.Row, error) { return nil, nil }, nil)
	tables := r.Tables()
	tables[0] = "mutated"
	assert.Equal(t, []string{"Post"}, r.Tables())
}
