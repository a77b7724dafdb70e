package storage

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"job-match-go/internal/config"
	"job-match-go/internal/constants"
	"job-match-go/internal/types"
)

func newTestRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	adapter, err := NewRedisAdapter(&config.RedisConfig{
		Address:             mr.Addr(),
		DialTimeoutSeconds:  1,
		ReadTimeoutSeconds:  1,
		WriteTimeoutSeconds: 1,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = adapter.Close() })
	return adapter, mr
}

func TestRedis_CheckAndAddFileMD5(t *testing.T) {
	adapter, _ := newTestRedis(t)
	ctx := context.Background()

	// 首次登记
	exists, existingID, err := adapter.CheckAndAddFileMD5(ctx, "d41d8cd98f00b204e9800998ecf8427e", "resume-001")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Empty(t, existingID)

	// 同一MD5重复登记，返回已关联的简历ID
	exists, existingID, err = adapter.CheckAndAddFileMD5(ctx, "d41d8cd98f00b204e9800998ecf8427e", "resume-002")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, "resume-001", existingID)

	// 不同MD5互不影响
	exists, _, err = adapter.CheckAndAddFileMD5(ctx, "900150983cd24fb0d6963f7d28e17f72", "resume-003")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRedis_RemoveFileMD5(t *testing.T) {
	adapter, _ := newTestRedis(t)
	ctx := context.Background()

	_, _, err := adapter.CheckAndAddFileMD5(ctx, "abc123abc123abc123abc123abc12345", "resume-001")
	require.NoError(t, err)

	require.NoError(t, adapter.RemoveFileMD5(ctx, "abc123abc123abc123abc123abc12345"))

	// 移除后同一MD5可重新登记
	exists, _, err := adapter.CheckAndAddFileMD5(ctx, "abc123abc123abc123abc123abc12345", "resume-002")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRedis_UploadLock(t *testing.T) {
	adapter, _ := newTestRedis(t)
	ctx := context.Background()

	lockValue, err := adapter.AcquireUploadLock(ctx, "user-1")
	require.NoError(t, err)
	require.NotEmpty(t, lockValue)

	// 同一用户二次获取失败
	second, err := adapter.AcquireUploadLock(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, second)

	// 其他用户不受影响
	other, err := adapter.AcquireUploadLock(ctx, "user-2")
	require.NoError(t, err)
	assert.NotEmpty(t, other)

	// 错误的持有者标识无法释放
	released, err := adapter.ReleaseUploadLock(ctx, "user-1", "wrong-value")
	require.NoError(t, err)
	assert.False(t, released)

	released, err = adapter.ReleaseUploadLock(ctx, "user-1", lockValue)
	require.NoError(t, err)
	assert.True(t, released)

	// 释放后可重新获取
	again, err := adapter.AcquireUploadLock(ctx, "user-1")
	require.NoError(t, err)
	assert.NotEmpty(t, again)
}

func TestRedis_EnhancedJobCache(t *testing.T) {
	adapter, _ := newTestRedis(t)
	ctx := context.Background()

	_, err := adapter.GetEnhancedJob(ctx, "job-1")
	require.ErrorIs(t, err, ErrNotFound)

	enhanced := &types.EnhancedJob{
		EnhancedDescription: "负责后端服务的设计与实现",
		KeyRequirements:     []string{"Go", "MySQL"},
		Summary:             "后端开发职位",
	}
	require.NoError(t, adapter.CacheEnhancedJob(ctx, "job-1", enhanced))

	got, err := adapter.GetEnhancedJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, enhanced.EnhancedDescription, got.EnhancedDescription)
	assert.Equal(t, enhanced.KeyRequirements, got.KeyRequirements)
	assert.Equal(t, enhanced.Summary, got.Summary)
}

func TestRedis_NormalizedTextCache(t *testing.T) {
	adapter, mr := newTestRedis(t)
	ctx := context.Background()

	_, err := adapter.GetNormalizedText(ctx, "resume-1")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, adapter.CacheNormalizedText(ctx, "resume-1", "john doe senior engineer"))

	text, err := adapter.GetNormalizedText(ctx, "resume-1")
	require.NoError(t, err)
	assert.Equal(t, "john doe senior engineer", text)

	// 过期后不再命中
	mr.FastForward(constants.NormalizedTextCacheTTL)
	_, err = adapter.GetNormalizedText(ctx, "resume-1")
	require.ErrorIs(t, err, ErrNotFound)
}
