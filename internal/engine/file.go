package engine

import (
	"fmt"
	"os"
)

// PartFile is the staging file a download writes into. It is sized up
// front, every connection writes through its own handle, and the rename
// to the final name happens only after all segments have closed. Partial
// downloads therefore never masquerade as complete files.
type PartFile struct {
	partPath  string
	finalPath string
}

// CreatePartFile creates (or resets) the staging file at size bytes.
func CreatePartFile(partPath, finalPath string, size int64) (*PartFile, error) {
	f, err := os.OpenFile(partPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("could not create part file: %w", err)
	}

	// On Linux/Unix, Truncate creates a sparse file.
	// It updates the metadata size but doesn't fill blocks with zeros yet.
	if err := f.Truncate(size); err != nil {
		f.Close()
		return nil, fmt.Errorf("could not pre-allocate %d bytes: %w", size, err)
	}

	if err := f.Close(); err != nil {
		return nil, err
	}

	return &PartFile{partPath: partPath, finalPath: finalPath}, nil
}

// OpenHandle opens an independent write handle on the staging file.
// Handles never truncate or create: reopening must not destroy bytes
// already written through other handles.
func (p *PartFile) OpenHandle() (*os.File, error) {
	f, err := os.OpenFile(p.partPath, os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("could not open part file: %w", err)
	}
	return f, nil
}

// Finalize renames the staging file to its final name.
func (p *PartFile) Finalize() error {
	if err := os.Rename(p.partPath, p.finalPath); err != nil {
		return fmt.Errorf("could not rename part file: %w", err)
	}
	return nil
}

func (p *PartFile) Path() string { return p.partPath }
