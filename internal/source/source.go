// Package source retrieves the raw text of an import file. Every source
// reads the whole content in one call; failures are returned as errors and
// turned into a file-level ParseError by the importer.
package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"google.golang.org/api/option"
)

var ErrUnsupportedScheme = errors.New("unsupported source scheme")

// Source is a byte source for one configured input.
type Source interface {
	Fetch(ctx context.Context) ([]byte, error)
	String() string
}

// Options configures the sources built by Open.
type Options struct {
	HTTPClient *http.Client
	// GoogleOptions are passed to the Cloud Storage and Sheets clients.
	GoogleOptions []option.ClientOption
}

// DefaultOptions returns options with a bounded HTTP client.
func DefaultOptions(timeout time.Duration) Options {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return Options{HTTPClient: &http.Client{Timeout: timeout}}
}

// Open picks a source from uri:
//
//	path/to/file.csv, file:///abs/path.csv
//	http://host/file.csv, https://host/file.csv
//	gs://bucket/object.csv
//	sheets://spreadsheetID/Sheet1!A:D
//
// Open performs no I/O; problems with the input surface on Fetch.
func Open(uri string, opts Options) (Source, error) {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return nil, errors.New("empty source")
	}
	if !strings.Contains(uri, "://") {
		return &File{Path: uri}, nil
	}

	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("parse source %q: %w", uri, err)
	}
	switch u.Scheme {
	case "file":
		return &File{Path: u.Path}, nil
	case "http", "https":
		return &HTTP{URL: uri, Client: opts.HTTPClient}, nil
	case "gs":
		return &GCS{Bucket: u.Host, Object: strings.TrimPrefix(u.Path, "/"), Options: opts.GoogleOptions}, nil
	case "sheets":
		rng, err := url.PathUnescape(strings.TrimPrefix(u.EscapedPath(), "/"))
		if err != nil {
			return nil, fmt.Errorf("parse sheets range %q: %w", u.Path, err)
		}
		return &Sheets{SpreadsheetID: u.Host, Range: rng, Options: opts.GoogleOptions}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, u.Scheme)
	}
}
