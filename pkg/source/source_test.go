package source

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/golang/snappy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dd0wney/cluso-forcegraph/pkg/graph"
)

const flatJSON = `{
  "nodes": [{"id": "a", "val": 3}, {"id": "b", "group": "x"}],
  "links": [{"source": "a", "target": "b", "color": "red"}]
}`

const graphologyYAML = `
nodes:
  - key: a
    attributes:
      val: 2
  - key: b
edges:
  - key: ab
    source: a
    target: b
    attributes:
      width: 1.5
`

func sampleGraph(t *testing.T) *graph.Graph {
	t.Helper()
	g := graph.New()
	require.NoError(t, g.AddNode("a", graph.Attributes{"val": 4.0}))
	require.NoError(t, g.AddNode("b", nil))
	require.NoError(t, g.AddEdgeWithKey("ab", "a", "b", graph.Attributes{"color": "#ff0000"}))
	return g
}

func TestScheme(t *testing.T) {
	cases := map[string]string{
		"graph.json":             "file",
		"/tmp/graph.yaml":        "file",
		"file:///tmp/graph.json": "file",
		`C:\graphs\g.json`:       "file",
		"http://host/g.json":     "http",
		"HTTPS://host/g.json":    "https",
		"s3://bucket/g.json":     "s3",
		"ftp://host/g.json":      "ftp",
	}
	for in, want := range cases {
		assert.Equal(t, want, Scheme(in), in)
	}
}

func TestDecodeFlatJSON(t *testing.T) {
	g, err := Decode([]byte(flatJSON), "graph.json")
	require.NoError(t, err)

	assert.Equal(t, 2, g.Order())
	assert.Equal(t, 1, g.Size())
	v, ok := g.NodeAttribute("a", "val")
	require.True(t, ok)
	assert.Equal(t, 3.0, v)
}

func TestDecodeYAML(t *testing.T) {
	g, err := Decode([]byte(graphologyYAML), "graph.yml")
	require.NoError(t, err)

	assert.Equal(t, 2, g.Order())
	assert.True(t, g.HasEdge("ab"))
	w, ok := g.EdgeAttribute("ab", "width")
	require.True(t, ok)
	assert.Equal(t, 1.5, w)
}

func TestDecodeCompressed(t *testing.T) {
	data := snappy.Encode(nil, []byte(flatJSON))

	g, err := Decode(data, "graph.json.sz")
	require.NoError(t, err)
	assert.Equal(t, 2, g.Order())

	_, err = Decode([]byte("not snappy"), "graph.json.sz")
	assert.Error(t, err)
}

func TestDecodeInvalid(t *testing.T) {
	_, err := Decode([]byte(`{"nodes": 3}`), "graph.json")
	assert.ErrorIs(t, err, graph.ErrInvalidData)

	_, err = Decode([]byte(`{`), "graph.json")
	assert.Error(t, err)
}

func TestFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	for _, name := range []string{"g.json", "g.yaml", "g.json.sz", "g.yml.sz"} {
		t.Run(name, func(t *testing.T) {
			p := filepath.Join(dir, name)
			require.NoError(t, Save(ctx, sampleGraph(t), p))

			g, err := Load(ctx, p)
			require.NoError(t, err)
			assert.Equal(t, 2, g.Order())
			assert.True(t, g.HasEdge("ab"))
			c, _ := g.EdgeAttribute("ab", "color")
			assert.Equal(t, "#ff0000", c)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadUnsupportedScheme(t *testing.T) {
	_, err := Load(context.Background(), "ftp://host/graph.json")
	assert.ErrorIs(t, err, ErrUnsupportedScheme)

	err = Save(context.Background(), sampleGraph(t), "https://host/graph.json")
	assert.ErrorIs(t, err, ErrUnsupportedScheme)
}

func TestLoadHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/graph.json":
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, flatJSON)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	g, err := Load(context.Background(), srv.URL+"/graph.json")
	require.NoError(t, err)
	assert.Equal(t, 2, g.Order())

	_, err = Load(context.Background(), srv.URL+"/missing.json")
	var status *StatusError
	require.True(t, errors.As(err, &status))
	assert.Equal(t, http.StatusNotFound, status.Status)
}

func TestLoadHTTPCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Load(ctx, srv.URL+"/graph.json")
	assert.ErrorIs(t, err, context.Canceled)
}

// memStore is an in-memory ObjectStore
type memStore struct {
	objects map[string][]byte
	types   map[string]string
	mu      sync.Mutex
}

func newMemStore() *memStore {
	return &memStore{objects: make(map[string][]byte), types: make(map[string]string)}
}

func (m *memStore) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (m *memStore) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := aws.ToString(in.Bucket) + "/" + aws.ToString(in.Key)
	m.objects[key] = data
	m.types[key] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func TestS3RoundTrip(t *testing.T) {
	store := newMemStore()
	SetObjectStore(store)
	defer SetObjectStore(nil)
	ctx := context.Background()

	require.NoError(t, Save(ctx, sampleGraph(t), "s3://graphs/team/g.yaml.sz"))
	assert.Equal(t, "application/x-snappy-framed", store.types["graphs/team/g.yaml.sz"])

	g, err := Load(ctx, "s3://graphs/team/g.yaml.sz")
	require.NoError(t, err)
	assert.Equal(t, 2, g.Order())

	_, err = Load(ctx, "s3://graphs/missing.json")
	assert.Error(t, err)

	_, err = Load(ctx, "s3://graphs")
	assert.Error(t, err)
}

func TestWatchReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "g.json")
	require.NoError(t, os.WriteFile(p, []byte(flatJSON), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loaded := make(chan *graph.Graph, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, p, func(g *graph.Graph, err error) {
			if err == nil {
				loaded <- g
			}
		})
	}()

	// give the watcher time to register
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, Save(ctx, sampleGraph(t), p))

	select {
	case g := <-loaded:
		assert.True(t, g.HasEdge("ab"))
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not reload the graph")
	}

	cancel()
	assert.NoError(t, <-done)
}
