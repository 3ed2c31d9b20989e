package storage

// ErrProjectNotFound is returned by LoadProject when the project does not
// exist. Artifact lookups deliberately do not use it: a missing artifact
// is a nil result, not an error.
type ErrProjectNotFound struct {
	ProjectID string
}

func (e ErrProjectNotFound) Error() string {
	if e.ProjectID == "" {
		return "project not found"
	}

	return "project not found: " + e.ProjectID
}
