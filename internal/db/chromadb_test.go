package db

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCollectionPath = "/api/v2/tenants/default_tenant/databases/default_database/collections"

// fakeChroma serves the subset of the v2 API used by the client
func fakeChroma(t *testing.T, queryHandler http.HandlerFunc) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/heartbeat", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]int64{"nanosecond heartbeat": time.Now().UnixNano()})
	})
	mux.HandleFunc(testCollectionPath+"/", func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, testCollectionPath+"/")
		switch {
		case rest == "campus":
			json.NewEncoder(w).Encode(Collection{ID: "col-1", Name: "campus"})
		case rest == "col-1/query":
			queryHandler(w, r)
		case rest == "col-1/count":
			json.NewEncoder(w).Encode(42)
		case rest == "col-1/upsert":
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("{}"))
		default:
			http.Error(w, `{"error":"NotFound"}`, http.StatusNotFound)
		}
	})
	mux.HandleFunc(testCollectionPath, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			var req map[string]interface{}
			json.NewDecoder(r.Body).Decode(&req)
			json.NewEncoder(w).Encode(Collection{ID: "col-new", Name: req["name"].(string), Metadata: req["metadata"].(map[string]interface{})})
			return
		}
		json.NewEncoder(w).Encode([]Collection{{ID: "col-1", Name: "campus"}})
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

// TestNewChromaDBClient tests client initialization
func TestNewChromaDBClient(t *testing.T) {
	tests := []struct {
		name     string
		config   ChromaDBConfig
		wantBase string
	}{
		{
			name:     "defaults applied",
			config:   ChromaDBConfig{Host: "localhost", Port: 8001},
			wantBase: "http://localhost:8001/api/v2/tenants/default_tenant/databases/default_database",
		},
		{
			name: "custom tenant and database",
			config: ChromaDBConfig{
				Host:     "chromadb.example.com",
				Port:     9000,
				Tenant:   "campus",
				Database: "kb",
				Timeout:  60 * time.Second,
			},
			wantBase: "http://chromadb.example.com:9000/api/v2/tenants/campus/databases/kb",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewChromaDBClient(tt.config)
			require.NotNil(t, client)
			assert.NotNil(t, client.httpClient)
			assert.Equal(t, tt.wantBase, client.baseURL)
		})
	}
}

func TestChromaDBClient_Heartbeat(t *testing.T) {
	server := fakeChroma(t, nil)
	client := newChromaDBClientWithURL(server.URL)

	require.NoError(t, client.Heartbeat(context.Background()))
	t.Log("✅ Heartbeat successful")
}

func TestChromaDBClient_HeartbeatDown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := newChromaDBClientWithURL(server.URL)
	assert.Error(t, client.Heartbeat(context.Background()))
}

func TestChromaDBClient_GetCollection(t *testing.T) {
	server := fakeChroma(t, nil)
	client := newChromaDBClientWithURL(server.URL)
	ctx := context.Background()

	t.Run("existing", func(t *testing.T) {
		col, err := client.GetCollection(ctx, "campus")
		require.NoError(t, err)
		assert.Equal(t, "col-1", col.ID)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := client.GetCollection(ctx, "nope")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrCollectionNotFound))
	})
}

func TestChromaDBClient_CreateCollectionDefaultsToCosine(t *testing.T) {
	server := fakeChroma(t, nil)
	client := newChromaDBClientWithURL(server.URL)

	col, err := client.CreateCollection(context.Background(), "fresh", nil)
	require.NoError(t, err)
	assert.Equal(t, "fresh", col.Name)
	assert.Equal(t, "cosine", col.Metadata["hnsw:space"])
}

func TestChromaDBClient_Query(t *testing.T) {
	var captured map[string]interface{}
	server := fakeChroma(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Write([]byte(`{
			"ids": [["a", "b"]],
			"documents": [["first", null]],
			"distances": [[0.1, 0.4]],
			"metadatas": [[{"source": "x"}, null]],
			"embeddings": [[[1, 0], [0, 1]]]
		}`))
	})
	client := newChromaDBClientWithURL(server.URL)

	resp, err := client.Query(context.Background(), "campus", [][]float32{{1, 0}}, 6)
	require.NoError(t, err)

	assert.EqualValues(t, 6, captured["n_results"])
	assert.ElementsMatch(t, []interface{}{"documents", "embeddings", "distances", "metadatas"}, captured["include"])

	require.Len(t, resp.IDs, 1)
	assert.Equal(t, []string{"a", "b"}, resp.IDs[0])
	require.NotNil(t, resp.Documents[0][0])
	assert.Equal(t, "first", *resp.Documents[0][0])
	assert.Nil(t, resp.Documents[0][1])
	assert.Equal(t, []float32{0, 1}, resp.Embeddings[0][1])
}

func TestChromaDBClient_CountAndUpsert(t *testing.T) {
	server := fakeChroma(t, nil)
	client := newChromaDBClientWithURL(server.URL)
	ctx := context.Background()

	count, err := client.CountCollection(ctx, "campus")
	require.NoError(t, err)
	assert.Equal(t, 42, count)

	err = client.UpsertDocuments(ctx, "campus", []string{"id"}, []string{"doc"}, [][]float32{{1}}, nil)
	assert.NoError(t, err)

	err = client.UpsertDocuments(ctx, "missing", []string{"id"}, []string{"doc"}, [][]float32{{1}}, nil)
	assert.ErrorIs(t, err, ErrCollectionNotFound)
}
