package index

import "context"

// NoteIndex defines the interface for metadata cache operations.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type NoteIndex interface {
	UpsertNote(n NoteRow) error
	DeleteNote(path string) error
	GetChecksum(path string) (string, error)
	GetNote(path string) (*NoteRow, error)
	ListNotes() ([]NoteRow, error)
	AllChecksums() (map[string]string, error)
	ReplaceAssets(paths []string) error
	Assets() ([]string, error)
	Catalog() (*Catalog, error)
	Close() error
}

// Journal records publish runs.
type Journal interface {
	RecordRun(ctx context.Context, run RunRecord) error
	ListRuns(ctx context.Context, limit int) ([]RunRecord, error)
}

// Verify *DB satisfies NoteIndex and Journal at compile time.
var (
	_ NoteIndex = (*DB)(nil)
	_ Journal   = (*DB)(nil)
)
