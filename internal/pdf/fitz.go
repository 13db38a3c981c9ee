package pdf

import (
	"errors"
	"strings"

	"github.com/gen2brain/go-fitz"
)

// FitzChecker detects encrypted documents with MuPDF.
type FitzChecker struct{}

// IsEncrypted opens the document and reports if it uses any encryption,
// including documents that only set an owner password.
func (FitzChecker) IsEncrypted(data []byte) (bool, error) {
	doc, err := fitz.NewFromMemory(data)
	if doc != nil {
		defer doc.Close()
	}

	// A user password is required to open the document.
	switch {
	case errors.Is(err, fitz.ErrNeedsPassword):
		return true, nil
	case err != nil:
		return false, err
	}

	// Owner password only documents open with an empty user password, MuPDF
	// still reports their security handler.
	encryption := strings.TrimRight(doc.Metadata()["encryption"], "\x00")
	return encryption != "None", nil
}
