package sfr

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tinyTable = `# 1+z logM logSFR logMstar
1 10 0 8
1 12 1 10
2 10 0.5 8
2 12 1.5 10
`

func TestFetcherSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(tinyTable))
	}))
	defer server.Close()

	cache := NewCache(SourceOpener(context.Background(), server.URL, testLogger()), testLogger())
	tab, err := cache.Get(false)
	require.NoError(t, err)

	logM, logZp1 := tab.Axes()
	assert.Equal(t, []float64{10, 12}, logM)
	assert.Len(t, logZp1, 2)
	assert.InDelta(t, 10, tab.Evaluate(12, 0), 1e-9)
}

func TestFetcherStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := NewFetcher(server.URL, testLogger()).Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestFetcherBodyLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		chunk := []byte(strings.Repeat("A", 1<<20))
		for i := 0; i < 66; i++ {
			if _, err := w.Write(chunk); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	_, err := NewFetcher(server.URL, testLogger()).Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "byte limit")
}

func TestSourceOpener_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sfr.dat")
	require.NoError(t, os.WriteFile(path, []byte(tinyTable), 0o644))

	rc, err := SourceOpener(context.Background(), path, testLogger())()
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, tinyTable, string(data))
}
