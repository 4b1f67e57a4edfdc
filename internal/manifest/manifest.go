// Package manifest owns the hand-off artifact between the two drivesync
// stages: the snapshot stage builds and writes manifests, the reconcile stage
// discovers the newest one through a Repository. Manifests are immutable once
// written and are only ever superseded by a newer file.
package manifest

import "time"

// Entry is one remote document's metadata at snapshot time. Optional fields
// are nil when the listing did not carry them and serialize as JSON null.
type Entry struct {
	ID           string  `json:"id"`
	Name         *string `json:"name"`
	URL          *string `json:"webUrl"`
	Size         *int64  `json:"size"`
	LastModified *string `json:"lastModified"`
	CreatedBy    *string `json:"createdBy"`
}

// NameOrEmpty returns the entry name, or "" when absent.
func (e Entry) NameOrEmpty() string {
	if e.Name == nil {
		return ""
	}
	return *e.Name
}

// Version identifies the remote revision of the entry for change detection.
func (e Entry) Version() string {
	if e.LastModified == nil {
		return ""
	}
	return *e.LastModified
}

// Manifest is a decoded manifest artifact. Its creation time is the file's
// modification time; it is not stored in the document.
type Manifest struct {
	Name    string
	Path    string
	ModTime time.Time
	Entries []Entry
}
