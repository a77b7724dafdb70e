package parser_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"job-match-go/internal/config"
	"job-match-go/internal/parser"
)

// newMockEmbeddingServer 返回一个OpenAI兼容的Embedding接口模拟服务
func newMockEmbeddingServer(t *testing.T, dims int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Contains(t, r.Header.Get("Authorization"), "Bearer ")

		var req parser.AliyunOpenAIEmbeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		// input 可以是单个字符串或数组
		var count int
		switch v := req.Input.(type) {
		case string:
			count = 1
		case []interface{}:
			count = len(v)
		}

		resp := parser.AliyunOpenAIEmbeddingResponse{
			Object: "list",
			Model:  req.Model,
		}
		for i := 0; i < count; i++ {
			vec := make([]float64, dims)
			for j := range vec {
				vec[j] = float64(i + 1)
			}
			resp.Data = append(resp.Data, parser.AliyunOpenAIDataEntry{
				Object:    "embedding",
				Embedding: vec,
				Index:     i,
			})
		}
		resp.Usage = parser.AliyunOpenAIUsage{PromptTokens: count * 3, TotalTokens: count * 3}

		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func TestAliyunEmbedder_EmbedStrings_Success(t *testing.T) {
	server := newMockEmbeddingServer(t, 4)
	defer server.Close()

	embedder, err := parser.NewAliyunEmbedder("test_api_key", config.EmbeddingConfig{
		Model:      "text-embedding-v3",
		Dimensions: 4,
		BaseURL:    server.URL,
	})
	require.NoError(t, err)

	texts := []string{"你好，世界！", "这是一个测试文本。"}
	embeddings, err := embedder.EmbedStrings(context.Background(), texts)

	require.NoError(t, err)
	require.Len(t, embeddings, len(texts))
	for i, emb := range embeddings {
		assert.Len(t, emb, embedder.GetDimensions(), "第 %d 个向量维度不符", i)
	}
}

// 空输入不应调用API，直接返回空切片
func TestAliyunEmbedder_EmbedStrings_EmptyInput(t *testing.T) {
	embedder, err := parser.NewAliyunEmbedder("dummy_api_key", config.EmbeddingConfig{
		Model:   "text-embedding-v3",
		BaseURL: "http://localhost:1", // 不应被访问
	})
	require.NoError(t, err)

	embeddings, err := embedder.EmbedStrings(context.Background(), nil)
	require.NoError(t, err, "空输入应返回空切片而非错误")
	require.NotNil(t, embeddings)
	require.Empty(t, embeddings)
}

// API返回非200状态码时必须报错
func TestAliyunEmbedder_EmbedStrings_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message": "Invalid API key", "type": "invalid_request_error", "code": "401"}`))
	}))
	defer server.Close()

	embedder, err := parser.NewAliyunEmbedder("bad_key", config.EmbeddingConfig{
		Model:   "text-embedding-v3",
		BaseURL: server.URL,
	})
	require.NoError(t, err)

	_, err = embedder.EmbedStrings(context.Background(), []string{"text"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid API key")
}

func TestAliyunEmbedder_NewAliyunEmbedder_NoAPIKey(t *testing.T) {
	_, err := parser.NewAliyunEmbedder("", config.EmbeddingConfig{})
	require.Error(t, err, "缺少API Key时初始化应失败")
	assert.Contains(t, err.Error(), "API密钥不能为空")
}
