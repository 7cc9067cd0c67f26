package dedup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/docstage/core"
)

var base = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

func rec(id, text string, offset time.Duration) core.ChunkRecord {
	return core.ChunkRecord{
		ProcessedAt: core.NewTimestamp(base.Add(offset)),
		ID:          id,
		Chunk:       text,
		Metadata:    core.BuildMetadata("src", 0, nil, text),
		Embeddings:  []float32{1},
	}
}

func chunks(records []core.ChunkRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Chunk
	}
	return out
}

func TestReconcile_Empty(t *testing.T) {
	assert.Empty(t, Reconcile(nil))
	assert.NotNil(t, Reconcile(nil))
}

func TestReconcile_NewestWins(t *testing.T) {
	records := []core.ChunkRecord{
		rec("A", "old", 0),
		rec("B", "only", 0),
		rec("A", "new", time.Minute),
	}

	out := Reconcile(records)
	require.Len(t, out, 2)
	assert.Equal(t, []string{"new", "only"}, chunks(out))
	assert.Equal(t, "A", out[0].ID)
}

func TestReconcile_OlderAppendedLaterLoses(t *testing.T) {
	records := []core.ChunkRecord{
		rec("A", "newer", time.Hour),
		rec("A", "older", 0),
	}

	assert.Equal(t, []string{"newer"}, chunks(Reconcile(records)))
}

func TestReconcile_TieKeepsEarliestPosition(t *testing.T) {
	records := []core.ChunkRecord{
		rec("A", "first", 0),
		rec("A", "second", 0),
		rec("A", "third", 0),
	}

	assert.Equal(t, []string{"first"}, chunks(Reconcile(records)))
}

func TestReconcile_Idempotent(t *testing.T) {
	records := []core.ChunkRecord{
		rec("C", "c1", 0),
		rec("A", "a1", 0),
		rec("C", "c2", 2*time.Second),
		rec("B", "b1", time.Second),
		rec("A", "a2", time.Second),
		rec("B", "b0", 0),
	}

	once := Reconcile(records)
	twice := Reconcile(once)

	assert.Equal(t, once, twice)
	assert.Equal(t, []string{"c2", "a2", "b1"}, chunks(once))
}

func TestReconcile_OneRecordPerID(t *testing.T) {
	var records []core.ChunkRecord
	for i := 0; i < 50; i++ {
		id := string(rune('a' + i%7))
		records = append(records, rec(id, id, time.Duration(i)*time.Second))
	}

	out := Reconcile(records)
	seen := map[string]bool{}
	for _, r := range out {
		assert.False(t, seen[r.ID], "duplicate id %s", r.ID)
		seen[r.ID] = true
	}
	assert.Len(t, out, 7)
}

func TestReconcileWithStats(t *testing.T) {
	_, stats := ReconcileWithStats([]core.ChunkRecord{
		rec("A", "x", 0), rec("A", "y", time.Second), rec("B", "z", 0),
	})
	assert.Equal(t, Stats{Records: 3, Unique: 2, Superseded: 1}, stats)
}
