package bundle

import "context"

// Store persists bundles by name. Implementations must make a written bundle
// visible to List all at once, and make a deleted one disappear all at once.
type Store interface {
	// List returns the names of complete bundles in no particular order.
	List(ctx context.Context) ([]string, error)
	// Exists reports whether anything is stored under name, complete or not.
	Exists(ctx context.Context, name string) (bool, error)
	// Read returns one artifact. A missing bundle or file is ErrBundleNotFound.
	Read(ctx context.Context, name, filename string) ([]byte, error)
	// Write stores artifacts under name, replacing any existing bundle.
	Write(ctx context.Context, name string, artifacts []Artifact) error
	// Delete removes everything stored under name or returns ErrBundleNotFound.
	Delete(ctx context.Context, name string) error
}

// Backend names reported in logs, metrics and spans.
const (
	BackendFS     = "fs"
	BackendS3     = "s3"
	BackendMemory = "memory"
)
