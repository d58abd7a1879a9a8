package replay

import "github.com/hubastard/grove-ar/engine/tracking"

// ledger records handle traffic and call counts.
type ledger struct {
	acquired       map[tracking.ID]int
	released       map[tracking.ID]int
	doubleReleases int
	anchorsCreated []tracking.ID
	calls          map[string]int
}

func newLedger() ledger {
	return ledger{
		acquired: map[tracking.ID]int{},
		released: map[tracking.ID]int{},
		calls:    map[string]int{},
	}
}

func (l *ledger) count(name string) { l.calls[name]++ }

// Calls returns how many times the named engine method ran.
func (l *ledger) Calls(name string) int { return l.calls[name] }

func (l *ledger) Acquired(id tracking.ID) int { return l.acquired[id] }
func (l *ledger) Released(id tracking.ID) int { return l.released[id] }

// Outstanding maps every ID with unreleased references to how many remain.
func (l *ledger) Outstanding() map[tracking.ID]int {
	out := map[tracking.ID]int{}
	for id, n := range l.acquired {
		if left := n - l.released[id]; left != 0 {
			out[id] = left
		}
	}
	return out
}

// OutstandingTotal sums Outstanding.
func (l *ledger) OutstandingTotal() int {
	total := 0
	for _, n := range l.Outstanding() {
		total += n
	}
	return total
}

// DoubleReleases counts releases beyond what was acquired.
func (l *ledger) DoubleReleases() int { return l.doubleReleases }

// AnchorsCreated lists anchor IDs in creation order.
func (l *ledger) AnchorsCreated() []tracking.ID {
	return append([]tracking.ID(nil), l.anchorsCreated...)
}
