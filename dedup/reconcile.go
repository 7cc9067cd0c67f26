// Package dedup reduces the staging log to one authoritative record per id.
package dedup

import (
	"github.com/poiesic/docstage/core"
)

// Reconcile keeps, for every id, the record with the latest ProcessedAt.
// When several records share that instant the one earliest in the log wins.
// Output follows the order in which each id first appears in records.
//
// Reconcile is idempotent: reconciling its own output returns it unchanged.
func Reconcile(records []core.ChunkRecord) []core.ChunkRecord {
	if len(records) == 0 {
		return []core.ChunkRecord{}
	}

	winner := make(map[string]int, len(records))
	order := make([]string, 0, len(records))
	for i := range records {
		id := records[i].ID
		best, seen := winner[id]
		if !seen {
			winner[id] = i
			order = append(order, id)
			continue
		}
		if records[i].ProcessedAt.After(records[best].ProcessedAt.Time) {
			winner[id] = i
		}
	}

	out := make([]core.ChunkRecord, len(order))
	for i, id := range order {
		out[i] = records[winner[id]]
	}
	return out
}

// Stats summarises a reconciliation.
type Stats struct {
	Records    int // records read from the log
	Unique     int // distinct ids kept
	Superseded int // records dropped in favour of a newer one
}

// ReconcileWithStats is Reconcile plus counts for logging.
func ReconcileWithStats(records []core.ChunkRecord) ([]core.ChunkRecord, Stats) {
	out := Reconcile(records)
	return out, Stats{
		Records:    len(records),
		Unique:     len(out),
		Superseded: len(records) - len(out),
	}
}
