package model

import (
	"bytes"
	"io"
)

// InputFile is a raw file handle received from a caller.
type InputFile struct {
	Name        string
	ContentType string
	Size        int64
	// Open returns a fresh reader positioned at the start of the content.
	// Every pipeline stage opens and closes the file on its own.
	Open func() (io.ReadSeekCloser, error)
}

// NewInputFileFromBytes returns an input file backed by an in memory buffer.
func NewInputFileFromBytes(name, contentType string, data []byte) InputFile {
	return InputFile{
		Name:        name,
		ContentType: contentType,
		Size:        int64(len(data)),
		Open: func() (io.ReadSeekCloser, error) {
			return nopSeekCloser{bytes.NewReader(data)}, nil
		},
	}
}

type nopSeekCloser struct {
	io.ReadSeeker
}

func (nopSeekCloser) Close() error { return nil }

// StagedFile is an input document placed in the object storage, before or
// after its registration on the remote service.
type StagedFile struct {
	OriginalName string
	StorageName  string
	StorageURL   string
	// RemoteServerName is set only once the remote service accepted the file.
	RemoteServerName string
}

// Registered returns true if the remote service accepted the file.
func (s StagedFile) Registered() bool {
	return s.RemoteServerName != ""
}
