// Package source reads and writes serialized graphs from local files,
// HTTP(S) endpoints and S3 buckets. Payloads are JSON or YAML, chosen by
// file extension, and may be snappy-compressed with a trailing ".sz".
package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/golang/snappy"
	"gopkg.in/yaml.v3"

	"github.com/dd0wney/cluso-forcegraph/pkg/graph"
)

const (
	// MaxPayloadSize bounds how much a single source may return
	MaxPayloadSize = 64 << 20

	compressedSuffix = ".sz"
)

var (
	// ErrUnsupportedScheme is returned for URLs no fetcher understands
	ErrUnsupportedScheme = errors.New("unsupported graph source scheme")
	// ErrPayloadTooLarge is returned when a source exceeds MaxPayloadSize
	ErrPayloadTooLarge = errors.New("graph payload too large")
)

// HTTPClient is used for http and https sources
var HTTPClient = &http.Client{Timeout: 30 * time.Second}

// StatusError reports a non-2xx HTTP response
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.Status)
}

// Scheme returns the URL scheme of a source. Plain paths are "file".
func Scheme(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || len(u.Scheme) <= 1 {
		// a one-letter scheme is a Windows drive
		return "file"
	}
	return strings.ToLower(u.Scheme)
}

// Load fetches and decodes the graph at raw
func Load(ctx context.Context, raw string) (*graph.Graph, error) {
	data, err := Fetch(ctx, raw)
	if err != nil {
		return nil, err
	}
	return Decode(data, objectName(raw))
}

// Fetch returns the raw payload at raw
func Fetch(ctx context.Context, raw string) ([]byte, error) {
	switch Scheme(raw) {
	case "file":
		return readFile(filePath(raw))
	case "http", "https":
		return fetchHTTP(ctx, raw)
	case "s3":
		return fetchS3(ctx, raw)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, Scheme(raw))
	}
}

// Save encodes g and stores it at raw. HTTP sources are read-only.
func Save(ctx context.Context, g *graph.Graph, raw string) error {
	data, err := Encode(g, objectName(raw))
	if err != nil {
		return err
	}
	switch Scheme(raw) {
	case "file":
		if err := os.WriteFile(filePath(raw), data, 0o644); err != nil {
			return fmt.Errorf("save graph: %w", err)
		}
		return nil
	case "s3":
		return putS3(ctx, raw, data)
	default:
		return fmt.Errorf("%w: cannot save to %q", ErrUnsupportedScheme, Scheme(raw))
	}
}

// Decode parses a payload named name into a graph. The name selects
// decompression and the document format.
func Decode(data []byte, name string) (*graph.Graph, error) {
	if strings.HasSuffix(name, compressedSuffix) {
		decompressed, err := snappy.Decode(nil, data)
		if err != nil {
			return nil, fmt.Errorf("decompress %s: %w", name, err)
		}
		data = decompressed
		name = strings.TrimSuffix(name, compressedSuffix)
	}

	var doc map[string]any
	if isYAML(name) {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
	} else {
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
	}

	s, err := graph.FromRaw(doc)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	return graph.FromSerialized(s)
}

// Encode serializes g in the format selected by name
func Encode(g *graph.Graph, name string) ([]byte, error) {
	compress := strings.HasSuffix(name, compressedSuffix)
	name = strings.TrimSuffix(name, compressedSuffix)

	var (
		data []byte
		err  error
	)
	if isYAML(name) {
		data, err = yaml.Marshal(g.Export())
	} else {
		data, err = json.MarshalIndent(g.Export(), "", "  ")
	}
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", name, err)
	}
	if compress {
		data = snappy.Encode(nil, data)
	}
	return data, nil
}

func isYAML(name string) bool {
	switch strings.ToLower(path.Ext(name)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// objectName returns the part of a source that carries its extension
func objectName(raw string) string {
	if Scheme(raw) == "file" {
		return filePath(raw)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return u.Path
}

func filePath(raw string) string {
	return strings.TrimPrefix(raw, "file://")
}

func readFile(p string) ([]byte, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("read graph: %w", err)
	}
	defer f.Close()
	return readLimited(f)
}

func fetchHTTP(ctx context.Context, raw string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, raw, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", raw, err)
	}
	req.Header.Set("Accept", "application/json, application/yaml;q=0.9, */*;q=0.5")

	resp, err := HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", raw, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: raw, Status: resp.StatusCode}
	}
	return readLimited(resp.Body)
}

func readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxPayloadSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > MaxPayloadSize {
		return nil, ErrPayloadTooLarge
	}
	return data, nil
}
