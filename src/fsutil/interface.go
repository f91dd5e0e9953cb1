package fsutil

// FileStore stages uploaded bytes on local disk for the extractors and walks local inputs for the CLI
type FileStore interface {
	// Stage writes data under a unique name that keeps the extension of filename and returns its path
	Stage(filename string, data []byte) (string, error)

	// ReadFile reads a file and returns its contents
	ReadFile(path string) ([]byte, error)

	// Remove deletes a single file; a missing file is not an error
	Remove(path string) error

	// ListFiles returns the regular files below root, or root itself when it is a file
	ListFiles(root string) ([]string, error)
}
