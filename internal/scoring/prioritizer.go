package scoring

import (
	"sort"
	"strconv"
	"strings"

	"github.com/ZanzyTHEbar/leadpulse/internal/types"
)

const minutesPerDay = 24 * 60

// WaitMinutes is how long a record has been waiting: the recorded wait time,
// else time in the current stage, else 0
func WaitMinutes(r types.Record) float64 {
	if w := types.Float(r.WaitMinutes, -1); w >= 0 {
		return w
	}
	if d := types.Float(r.DaysInStage, -1); d >= 0 {
		return d * minutesPerDay
	}
	return 0
}

// Prioritize orders scored records for display. It works on a copy and
// assigns 1-based ranks. Records without an identity are reported in
// Rejected, indexed by their input position.
//
// Order: composite desc, risk tier desc, wait time desc, identity asc.
func Prioritize(records []ScoredRecord) Queue {
	out := make([]ScoredRecord, 0, len(records))
	var rejected []Rejected
	for i, sr := range records {
		if !sr.Record.HasIdentity() {
			rejected = append(rejected, Rejected{Index: i, Reason: reasonMissingIdentity})
			continue
		}
		out = append(out, sr)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return less(out[i], out[j])
	})

	for i := range out {
		out[i].Rank = i + 1
	}

	if rejected == nil {
		rejected = []Rejected{}
	}
	return Queue{Records: out, Rejected: rejected}
}

func less(a, b ScoredRecord) bool {
	if a.Result.Composite != b.Result.Composite {
		return a.Result.Composite > b.Result.Composite
	}
	if ra, rb := a.Result.Risk.Tier.Rank(), b.Result.Risk.Tier.Rank(); ra != rb {
		return ra > rb
	}
	if wa, wb := WaitMinutes(a.Record), WaitMinutes(b.Record); wa != wb {
		return wa > wb
	}
	return compareIDs(a.Record.ID, b.Record.ID) < 0
}

// compareIDs orders integer identities numerically ahead of all other
// identities, which compare lexically. Ties on numeric value fall back to the
// raw strings so the order stays total.
func compareIDs(a, b string) int {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	na, errA := strconv.ParseInt(a, 10, 64)
	nb, errB := strconv.ParseInt(b, 10, 64)
	switch {
	case errA == nil && errB == nil:
		if na != nb {
			if na < nb {
				return -1
			}
			return 1
		}
	case errA == nil:
		return -1
	case errB == nil:
		return 1
	}
	return strings.Compare(a, b)
}
