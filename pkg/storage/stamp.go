package storage

import "time"

// StampEntry copies an audit entry and overwrites its timestamp with the
// current UTC time. Audit entries are stamped at write time regardless of
// any timestamp supplied by the caller.
func StampEntry(entry map[string]any) map[string]any {
	stamped := make(map[string]any, len(entry)+1)
	for k, v := range entry {
		stamped[k] = v
	}
	stamped["timestamp"] = time.Now().UTC().Format(time.RFC3339)

	return stamped
}
