// Package storage defines the object storage used to stage the documents
// for the remote service and to host the conversion results.
package storage

import (
	"context"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"
)

// Object is a stored object.
type Object struct {
	// Name is the randomly generated name of the object in the bucket.
	Name string
	// URL is the public retrieval URL of the object.
	URL string
}

// ObjectStore uploads and downloads objects.
type ObjectStore interface {
	// Upload stores the content under a new random name that keeps the
	// extension of originalName.
	Upload(ctx context.Context, body io.Reader, originalName string) (*Object, error)
	// Download returns the content of a stored object.
	Download(ctx context.Context, name string) (io.ReadCloser, error)
}

// Upload is one upload of UploadMany.
type Upload struct {
	OriginalName string
	// Open is called from the upload goroutine, the returned reader is
	// closed once the upload finishes.
	Open func() (io.ReadCloser, error)
}

// UploadMany uploads all the files in parallel, limit bounds the number of
// concurrent uploads (<= 0 means no limit).
//
// The first failure cancels the context of the uploads still running and is
// returned. Objects already uploaded are not removed.
func UploadMany(ctx context.Context, store ObjectStore, uploads []Upload, limit int) ([]Object, error) {
	objects := make([]Object, len(uploads))

	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}

	for i, up := range uploads {
		g.Go(func() error {
			body, err := up.Open()
			if err != nil {
				return fmt.Errorf("could not open %q: %w", up.OriginalName, err)
			}
			defer body.Close()

			obj, err := store.Upload(ctx, body, up.OriginalName)
			if err != nil {
				return fmt.Errorf("could not upload %q: %w", up.OriginalName, err)
			}
			objects[i] = *obj

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return objects, nil
}
