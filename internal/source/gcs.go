package source

import (
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCS downloads an object from Google Cloud Storage using Application
// Default Credentials unless Options says otherwise.
type GCS struct {
	Bucket  string
	Object  string
	Options []option.ClientOption
}

func (g *GCS) Fetch(ctx context.Context) ([]byte, error) {
	if g.Bucket == "" || g.Object == "" {
		return nil, fmt.Errorf("invalid GCS location %q", g.String())
	}

	client, err := storage.NewClient(ctx, g.Options...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	defer client.Close()

	r, err := client.Bucket(g.Bucket).Object(g.Object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("open GCS object reader: %w", err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read GCS object: %w", err)
	}
	return data, nil
}

func (g *GCS) String() string {
	return "gs://" + g.Bucket + "/" + g.Object
}
