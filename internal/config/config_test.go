package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLoadConfigWithPipelineSection 验证流水线参数能否从 YAML 正确加载
func TestLoadConfigWithPipelineSection(t *testing.T) {
	// 1. 创建一个临时的 YAML 配置文件
	yamlContent := `
pipeline:
  chunk_size: 800
  chunk_overlap: 150
  retrieval_top_k: 6
  match_threshold: 0.5
aliyun:
  model: "qwen-plus"
  task_models:
    jd_enhance: "qwen-max"
`
	// 创建一个临时目录来存放配置文件
	tmpDir, err := os.MkdirTemp("", "config-test")
	require.NoError(t, err, "无法创建临时目录")
	defer os.RemoveAll(tmpDir) // 测试结束后清理目录

	// 配置文件路径
	configPath := filepath.Join(tmpDir, "config.yaml")
	err = os.WriteFile(configPath, []byte(yamlContent), 0644)
	require.NoError(t, err, "无法写入临时配置文件")

	// 2. 调用 LoadConfig 函数加载配置
	config, err := LoadConfig(configPath)

	// 3. 断言结果
	require.NoError(t, err, "加载具有正确语法的配置不应返回错误")
	require.NotNil(t, config, "配置对象不应为 nil")

	assert.Equal(t, 800, config.Pipeline.ChunkSize, "ChunkSize 的值与预期不符")
	assert.Equal(t, 150, config.Pipeline.ChunkOverlap, "ChunkOverlap 的值与预期不符")
	assert.Equal(t, 6, config.Pipeline.RetrievalTopK, "RetrievalTopK 的值与预期不符")
	assert.Equal(t, 0.5, config.Pipeline.MatchThreshold, "MatchThreshold 的值与预期不符")

	// 验证任务专用模型的选择逻辑
	assert.Equal(t, "qwen-max", config.GetModelForTask("jd_enhance"))
	assert.Equal(t, "qwen-plus", config.GetModelForTask("profile_extract"))
}

// TestLoadConfigAppliesDefaults 验证 YAML 未提供的字段会被默认值填充
func TestLoadConfigAppliesDefaults(t *testing.T) {
	yamlContent := `
server:
  address: ""
`
	tmpDir, err := os.MkdirTemp("", "config-test-defaults")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	configPath := filepath.Join(tmpDir, "config.yaml")
	err = os.WriteFile(configPath, []byte(yamlContent), 0644)
	require.NoError(t, err)

	config, err := LoadConfig(configPath)
	require.NoError(t, err)
	require.NotNil(t, config)

	assert.Equal(t, ":8080", config.Server.Address)
	assert.Equal(t, 1000, config.Pipeline.ChunkSize)
	assert.Equal(t, 200, config.Pipeline.ChunkOverlap)
	assert.Equal(t, 4, config.Pipeline.RetrievalTopK)
	assert.Equal(t, 20, config.Pipeline.SkillCap)
	assert.Equal(t, 10, config.Pipeline.FallbackCap)
	assert.Equal(t, 5, config.Pipeline.ContactScanLines)
	assert.Equal(t, 0.3, config.Pipeline.MatchThreshold)
	assert.Equal(t, int64(5*1024*1024), config.Upload.MaxFileSizeBytes)
	assert.Equal(t, []string{"pdf", "docx"}, config.Upload.AllowedExtensions)
}

// TestIsAllowedExtension 验证上传扩展名白名单判断
func TestIsAllowedExtension(t *testing.T) {
	config := createDefaultConfig()

	assert.True(t, config.IsAllowedExtension("resume.pdf"))
	assert.True(t, config.IsAllowedExtension("简历.DOCX"))
	assert.False(t, config.IsAllowedExtension("resume.txt"))
	assert.False(t, config.IsAllowedExtension("resume"))
	assert.False(t, config.IsAllowedExtension(""))
}
