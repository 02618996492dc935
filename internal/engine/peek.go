package engine

import "time"

// peek is one temporary-display window: the spec takes over the actuator
// until its deadline, regardless of priority.
type peek struct {
	specID  string
	expires time.Time
}

// peekQueue orders temporary-display requests newest-first for display:
// the most recent request shows, and when its window ends the next-newest
// still-pending one takes over.
type peekQueue struct {
	entries []peek
}

// push registers a window for the spec, replacing any pending window it
// already holds.
func (q *peekQueue) push(specID string, expires time.Time) {
	q.remove(specID)
	q.entries = append(q.entries, peek{specID: specID, expires: expires})
}

// remove drops any pending window for the spec.
func (q *peekQueue) remove(specID string) {
	out := q.entries[:0]
	for _, e := range q.entries {
		if e.specID != specID {
			out = append(out, e)
		}
	}
	q.entries = out
}

// prune drops expired windows and windows whose instance no longer
// exists. Reports whether anything changed.
func (q *peekQueue) prune(now time.Time, alive func(specID string) bool) bool {
	out := q.entries[:0]
	for _, e := range q.entries {
		if now.Before(e.expires) && alive(e.specID) {
			out = append(out, e)
		}
	}
	changed := len(out) != len(q.entries)
	q.entries = out
	return changed
}

// current returns the spec that should be shown right now, if any.
func (q *peekQueue) current() (string, bool) {
	if len(q.entries) == 0 {
		return "", false
	}
	return q.entries[len(q.entries)-1].specID, true
}

func (q *peekQueue) empty() bool {
	return len(q.entries) == 0
}
