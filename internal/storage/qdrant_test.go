package storage_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"job-match-go/internal/config"
	"job-match-go/internal/storage"
	"job-match-go/internal/types"
)

// newMockQdrantServer 返回一个模拟Qdrant API的HTTP服务。
// handlers按 "METHOD path" 注册额外路由，集合检查默认返回已存在。
func newMockQdrantServer(t *testing.T, collection string, handlers map[string]http.HandlerFunc) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/collections/"+collection && r.Method == http.MethodGet {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"result": {"config": {"params": {"vectors": {"size": 4, "distance": "Cosine"}}}}}`))
			return
		}
		if h, ok := handlers[r.Method+" "+r.URL.Path]; ok {
			h(w, r)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
}

func TestQdrant_NewQdrant(t *testing.T) {
	server := newMockQdrantServer(t, "test_collection", nil)
	defer server.Close()

	cfg := &config.QdrantConfig{
		Endpoint:   server.URL,
		Collection: "test_collection",
		Dimension:  4,
	}

	client, err := storage.NewQdrant(cfg,
		storage.WithDistanceMetric("Cosine"),
		storage.WithHTTPTimeout(5*time.Second))

	require.NoError(t, err, "应该成功创建Qdrant客户端")
	require.NotNil(t, client, "客户端不应为nil")
}

func TestQdrant_StoreResumeChunkVectors(t *testing.T) {
	var captured struct {
		Points []struct {
			ID      string                 `json:"id"`
			Vector  []float64              `json:"vector"`
			Payload map[string]interface{} `json:"payload"`
		} `json:"points"`
	}

	server := newMockQdrantServer(t, "test_collection", map[string]http.HandlerFunc{
		"PUT /collections/test_collection/points": func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"result": {"status": "completed"}, "status": "ok", "time": 0.001}`))
		},
	})
	defer server.Close()

	client, err := storage.NewQdrant(&config.QdrantConfig{
		Endpoint:   server.URL,
		Collection: "test_collection",
		Dimension:  4,
	})
	require.NoError(t, err)

	chunks := []types.TextChunk{
		{Index: 0, Content: "golang微服务开发经验"},
		{Index: 1, Content: "精通MySQL和Redis"},
	}
	embeddings := [][]float64{
		{0.1, 0.2, 0.3, 0.4},
		{0.5, 0.6, 0.7, 0.8},
	}

	ids, err := client.StoreResumeChunkVectors(context.Background(), "resume-1", "user-1", chunks, embeddings)
	require.NoError(t, err)
	require.Len(t, ids, 2)

	// 同样的输入必须生成同样的point ID
	idsAgain, err := client.StoreResumeChunkVectors(context.Background(), "resume-1", "user-1", chunks, embeddings)
	require.NoError(t, err)
	assert.Equal(t, ids, idsAgain)

	require.Len(t, captured.Points, 2)
	assert.Equal(t, "resume-1", captured.Points[0].Payload["resume_id"])
	assert.Equal(t, "user-1", captured.Points[0].Payload["user_id"])
	assert.Equal(t, float64(0), captured.Points[0].Payload["chunk_index"])
	assert.Equal(t, "golang微服务开发经验", captured.Points[0].Payload["content_text"])
}

func TestQdrant_StoreResumeChunkVectors_CountMismatch(t *testing.T) {
	server := newMockQdrantServer(t, "test_collection", nil)
	defer server.Close()

	client, err := storage.NewQdrant(&config.QdrantConfig{
		Endpoint:   server.URL,
		Collection: "test_collection",
		Dimension:  4,
	})
	require.NoError(t, err)

	chunks := []types.TextChunk{{Index: 0, Content: "内容"}}
	_, err = client.StoreResumeChunkVectors(context.Background(), "resume-1", "user-1", chunks, [][]float64{})
	assert.Error(t, err)
}

func TestQdrant_StoreResumeChunkVectors_DimensionMismatch(t *testing.T) {
	server := newMockQdrantServer(t, "test_collection", nil)
	defer server.Close()

	client, err := storage.NewQdrant(&config.QdrantConfig{
		Endpoint:   server.URL,
		Collection: "test_collection",
		Dimension:  4,
	})
	require.NoError(t, err)

	chunks := []types.TextChunk{{Index: 0, Content: "内容"}}
	_, err = client.StoreResumeChunkVectors(context.Background(), "resume-1", "user-1", chunks, [][]float64{{0.1, 0.2}})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "维度")
}

func TestQdrant_SearchSimilarChunks(t *testing.T) {
	server := newMockQdrantServer(t, "test_collection", map[string]http.HandlerFunc{
		"POST /collections/test_collection/points/search": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{
				"result": [
					{"id": "p1", "score": 0.95, "payload": {"resume_id": "resume-1", "content_text": "golang开发"}},
					{"id": "p2", "score": 0.81, "payload": {"resume_id": "resume-2", "content_text": "java开发"}}
				],
				"status": "ok",
				"time": 0.002
			}`))
		},
	})
	defer server.Close()

	client, err := storage.NewQdrant(&config.QdrantConfig{
		Endpoint:   server.URL,
		Collection: "test_collection",
		Dimension:  4,
	})
	require.NoError(t, err)

	results, err := client.SearchSimilarChunks(context.Background(), []float64{0.1, 0.2, 0.3, 0.4}, 2, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "p1", results[0].ID)
	assert.InDelta(t, 0.95, float64(results[0].Score), 0.001)
	assert.Equal(t, "resume-1", results[0].Payload["resume_id"])
}

func TestQdrant_DeleteResumeVectors(t *testing.T) {
	var deleteCalled bool
	server := newMockQdrantServer(t, "test_collection", map[string]http.HandlerFunc{
		"POST /collections/test_collection/points/delete": func(w http.ResponseWriter, r *http.Request) {
			deleteCalled = true
			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Contains(t, body, "filter")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"result": {"status": "completed"}, "status": "ok", "time": 0.001}`))
		},
	})
	defer server.Close()

	client, err := storage.NewQdrant(&config.QdrantConfig{
		Endpoint:   server.URL,
		Collection: "test_collection",
		Dimension:  4,
	})
	require.NoError(t, err)

	require.NoError(t, client.DeleteResumeVectors(context.Background(), "resume-1"))
	assert.True(t, deleteCalled)
}
