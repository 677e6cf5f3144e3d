package health

import "time"

// MergeEvents merges a batch of incoming events into existing and prunes
// aged-out entries. It is a pure function: existing is not mutated.
//
// Rules:
//   - an incoming id not present in existing is inserted;
//   - a present id is replaced only when the incoming LastUpdateTime is
//     strictly newer, so the stored timestamp never decreases;
//   - Resolved events whose LastUpdateTime is older than now-retention are
//     pruned, unless the batch just re-confirmed them; Active events are
//     never pruned, regardless of age.
//
// Re-applying the same batch produces the same result, and the result does
// not depend on the order of events within the batch (for duplicate ids the
// newest record wins either way).
//
// LastQueryTime is carried over unchanged; the orchestrator sets it only on
// the document it successfully persists.
func MergeEvents(existing *CacheDocument, incoming []HealthEvent, now time.Time, retention time.Duration) *CacheDocument {
	merged := existing.Clone()

	seen := make(map[string]struct{}, len(incoming))
	for _, e := range incoming {
		seen[e.ID] = struct{}{}
		cur, ok := merged.Events[e.ID]
		if !ok || e.LastUpdateTime.After(cur.LastUpdateTime) {
			merged.Events[e.ID] = e
		}
	}

	cutoff := now.Add(-retention)
	for id, e := range merged.Events {
		if _, ok := seen[id]; ok {
			continue
		}
		if e.Status == StatusResolved && e.LastUpdateTime.Before(cutoff) {
			delete(merged.Events, id)
		}
	}

	return merged
}
