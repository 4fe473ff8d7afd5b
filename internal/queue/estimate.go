package queue

// UnknownWait is returned by Estimate when no estimate can be made.
const UnknownWait = -1

// DefaultAvgServiceMinutes is the assumed length of one service.
const DefaultAvgServiceMinutes = 30

// EstimateFunc computes minutes until the entry is expected to be called.
type EstimateFunc func(q *Queue, entryID string, activeStaff, avgServiceMinutes int) int

// Estimate assumes activeStaff people serve in parallel, each taking
// avgServiceMinutes per customer. Time already spent on called entries is
// not credited.
func Estimate(q *Queue, entryID string, activeStaff, avgServiceMinutes int) int {
	if q == nil || activeStaff <= 0 {
		return UnknownWait
	}
	target := q.Entry(entryID)
	if target == nil || !target.IsActive() {
		return UnknownWait
	}
	ahead := 0
	for _, e := range q.Entries {
		if e.IsActive() && e.Position < target.Position {
			ahead++
		}
	}
	eta := (ahead / activeStaff) * avgServiceMinutes
	if eta < 0 {
		return 0
	}
	return eta
}
