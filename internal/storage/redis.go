package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"

	"job-match-go/internal/config"
	"job-match-go/internal/constants"
	"job-match-go/internal/types"
)

// ErrNotFound is returned when a key is not found in Redis.
// It wraps the underlying redis.Nil error for abstraction.
var ErrNotFound = redis.Nil

// 为Redis操作定义专用tracer
var redisTracer = otel.Tracer("job-match-go/storage/redis")

// Redis操作前缀采样率配置
var redisKeySamplingRates = map[string]float64{
	"app:upload:lock:": 0.5,  // 上传锁操作采样50%
	"app:job:":         0.25, // 岗位缓存操作采样25%
	"app:profile:":     0.1,  // 画像文本缓存采样10%
	"app:file:":        0.1,  // 文件去重操作采样10%
}

var (
	rnd      *rand.Rand
	rndMutex sync.Mutex
)

func init() {
	source := rand.NewSource(time.Now().UnixNano())
	rnd = rand.New(source)
}

// shouldSampleRedisOp 根据key前缀决定是否需要创建span
func shouldSampleRedisOp(key string) bool {
	if key == "" {
		return false
	}

	for prefix, rate := range redisKeySamplingRates {
		if strings.HasPrefix(key, prefix) {
			return randFloat() < rate
		}
	}

	// 默认采样率5%
	return randFloat() < 0.05
}

func randFloat() float64 {
	rndMutex.Lock()
	defer rndMutex.Unlock()
	return rnd.Float64()
}

// Redis wraps the Redis client
type Redis struct {
	Client *redis.Client
	config *config.RedisConfig
}

// NewRedisAdapter creates a new Redis client connection
func NewRedisAdapter(cfg *config.RedisConfig) (*Redis, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	opt := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,

		// 连接池设置
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,

		// 超时设置
		DialTimeout:  time.Duration(cfg.DialTimeoutSeconds) * time.Second,
		ReadTimeout:  time.Duration(cfg.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeoutSeconds) * time.Second,

		// 重试设置
		MaxRetries:      cfg.MaxRetries,
		MinRetryBackoff: time.Duration(cfg.MinRetryBackoffMS) * time.Millisecond,
		MaxRetryBackoff: time.Duration(cfg.MaxRetryBackoffMS) * time.Millisecond,

		// 连接生命周期
		ConnMaxLifetime: time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute,
		ConnMaxIdleTime: time.Duration(cfg.ConnMaxIdleTimeMinutes) * time.Minute,
	}

	client := redis.NewClient(opt)

	// 添加OpenTelemetry钩子, 记录所有Redis操作
	if err := redisotel.InstrumentTracing(client); err != nil {
		return nil, fmt.Errorf("failed to instrument Redis with OpenTelemetry: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}

	return &Redis{
		Client: client,
		config: cfg,
	}, nil
}

// Close closes the Redis client connection
func (r *Redis) Close() error {
	if r.Client != nil {
		return r.Client.Close()
	}
	return nil
}

// Ping checks the Redis connection
func (r *Redis) Ping(ctx context.Context) error {
	if r.Client == nil {
		return fmt.Errorf("redis client is not initialized")
	}
	return r.Client.Ping(ctx).Err()
}

// GetMD5ExpireDuration 返回配置的MD5记录过期时间
func (r *Redis) GetMD5ExpireDuration() time.Duration {
	days := r.config.MD5RecordExpireDays
	if days <= 0 {
		days = 365 // 默认1年
	}
	return time.Duration(days) * 24 * time.Hour
}

// CheckAndAddFileMD5 检查文件MD5是否已见过，没见过则原子地登记并关联简历ID。
// 返回 (是否已存在, 已关联的简历ID)。
func (r *Redis) CheckAndAddFileMD5(ctx context.Context, md5Hex string, resumeID string) (exists bool, existingResumeID string, err error) {
	ctx, span := redisTracer.Start(ctx, "Redis.CheckAndAddFileMD5",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		semconv.DBSystemRedis,
		attribute.String("db.redis.database", fmt.Sprintf("%d", r.config.DB)),
		attribute.String("net.peer.name", r.config.Address),
		attribute.String("db.operation", "EVAL"),
		attribute.String("db.redis.key", constants.KeyFileMD5Set),
	)

	if r.Client == nil {
		err = fmt.Errorf("redis client is not initialized")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, "", err
	}

	mapKey := fmt.Sprintf(constants.KeyFileMD5ToProfileUUID, md5Hex)

	// Lua脚本保证检查-登记的原子性:
	// 已存在则返回关联的简历ID，否则登记并设置过期
	script := `
		local exists = redis.call('SISMEMBER', KEYS[1], ARGV[1])
		if exists == 1 then
			return {1, redis.call('GET', KEYS[2]) or ''}
		end
		redis.call('SADD', KEYS[1], ARGV[1])
		redis.call('EXPIRE', KEYS[1], ARGV[3])
		redis.call('SET', KEYS[2], ARGV[2], 'EX', ARGV[4])
		return {0, ''}
	`

	setExpiry := int64(r.GetMD5ExpireDuration().Seconds())
	mapExpiry := int64(constants.MD5MappingCacheDuration.Seconds())

	res, err := r.Client.Eval(ctx, script,
		[]string{constants.KeyFileMD5Set, mapKey},
		md5Hex, resumeID, setExpiry, mapExpiry).Result()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, "", fmt.Errorf("执行原子检查和登记MD5失败: %w", err)
	}

	vals, ok := res.([]interface{})
	if !ok || len(vals) != 2 {
		err = fmt.Errorf("意外的Redis返回类型: %T", res)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, "", err
	}

	existsVal, _ := vals[0].(int64)
	existingResumeID, _ = vals[1].(string)
	exists = existsVal == 1

	span.SetAttributes(attribute.Bool("already_exists", exists))
	span.SetStatus(codes.Ok, "")
	return exists, existingResumeID, nil
}

// RemoveFileMD5 从去重集合中移除文件MD5及其映射
func (r *Redis) RemoveFileMD5(ctx context.Context, md5Hex string) error {
	ctx, span := redisTracer.Start(ctx, "Redis.RemoveFileMD5",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		semconv.DBSystemRedis,
		attribute.String("db.redis.database", fmt.Sprintf("%d", r.config.DB)),
		attribute.String("net.peer.name", r.config.Address),
		attribute.String("db.operation", "SREM"),
		attribute.String("db.redis.key", constants.KeyFileMD5Set),
	)

	pipe := r.Client.Pipeline()
	remCmd := pipe.SRem(ctx, constants.KeyFileMD5Set, md5Hex)
	pipe.Del(ctx, fmt.Sprintf(constants.KeyFileMD5ToProfileUUID, md5Hex))
	_, err := pipe.Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("从集合中移除MD5失败: %w", err)
	}

	span.SetAttributes(attribute.Int64("removed_count", remCmd.Val()))
	span.SetStatus(codes.Ok, "")
	return nil
}

// CacheEnhancedJob 缓存增强后的职位信息
func (r *Redis) CacheEnhancedJob(ctx context.Context, jobID string, enhanced *types.EnhancedJob) error {
	if r.Client == nil {
		return fmt.Errorf("redis client is not initialized")
	}
	if enhanced == nil {
		return fmt.Errorf("增强职位信息不能为空")
	}
	payload, err := json.Marshal(enhanced)
	if err != nil {
		return fmt.Errorf("序列化增强职位信息失败: %w", err)
	}
	key := fmt.Sprintf(constants.KeyEnhancedJD, jobID)
	return r.Set(ctx, key, string(payload), constants.EnhancedJDCacheDuration)
}

// GetEnhancedJob 获取缓存的增强职位信息，未命中返回ErrNotFound
func (r *Redis) GetEnhancedJob(ctx context.Context, jobID string) (*types.EnhancedJob, error) {
	if r.Client == nil {
		return nil, fmt.Errorf("redis client is not initialized")
	}
	key := fmt.Sprintf(constants.KeyEnhancedJD, jobID)
	payload, err := r.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	var enhanced types.EnhancedJob
	if err := json.Unmarshal([]byte(payload), &enhanced); err != nil {
		return nil, fmt.Errorf("反序列化增强职位信息失败: %w", err)
	}
	return &enhanced, nil
}

// CacheNormalizedText 缓存归一化后的简历文本，供重复上传时快速返回
func (r *Redis) CacheNormalizedText(ctx context.Context, resumeID string, text string) error {
	if r.Client == nil {
		return fmt.Errorf("redis client is not initialized")
	}
	key := fmt.Sprintf(constants.KeyNormalizedText, resumeID)
	return r.Set(ctx, key, text, constants.NormalizedTextCacheTTL)
}

// GetNormalizedText 获取缓存的归一化文本，未命中返回ErrNotFound
func (r *Redis) GetNormalizedText(ctx context.Context, resumeID string) (string, error) {
	if r.Client == nil {
		return "", fmt.Errorf("redis client is not initialized")
	}
	key := fmt.Sprintf(constants.KeyNormalizedText, resumeID)
	return r.Get(ctx, key)
}

// AcquireUploadLock 获取某用户的上传互斥锁，保证同一用户同时只有一个处理中的上传。
// 返回锁持有者标识，未获取到锁时返回空串。
func (r *Redis) AcquireUploadLock(ctx context.Context, userID string) (string, error) {
	key := fmt.Sprintf(constants.KeyUploadLock, userID)
	return r.AcquireLock(ctx, key, constants.UploadLockTTL)
}

// ReleaseUploadLock 释放某用户的上传互斥锁
func (r *Redis) ReleaseUploadLock(ctx context.Context, userID string, lockValue string) (bool, error) {
	key := fmt.Sprintf(constants.KeyUploadLock, userID)
	return r.ReleaseLock(ctx, key, lockValue)
}

// Get 获取键的值
func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	if r.Client == nil {
		return "", fmt.Errorf("redis客户端未初始化")
	}

	var span trace.Span

	if shouldSampleRedisOp(key) {
		ctx, span = redisTracer.Start(ctx, "Redis.Get", trace.WithSpanKind(trace.SpanKindClient))
		defer span.End()

		span.SetAttributes(
			attribute.String("db.system", "redis"),
			attribute.String("db.operation", "GET"),
			attribute.String("db.redis.key", key),
			// 避免与redisotel hook产生的span重复
			attribute.Bool("otel.propagate_to_child", false),
		)
	}

	val, err := r.Client.Get(ctx, key).Result()

	if span != nil {
		if err != nil {
			// key不存在是正常分支
			if err == redis.Nil {
				span.SetStatus(codes.Ok, "key not found")
				span.SetAttributes(attribute.Bool("db.redis.key_exists", false))
			} else {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}
			return "", err
		}

		span.SetAttributes(
			attribute.Bool("db.redis.key_exists", true),
			attribute.Int("db.redis.value_length", len(val)),
		)
		span.SetStatus(codes.Ok, "")
	}

	if err != nil {
		return "", err
	}
	return val, nil
}

// Set 设置键的值
func (r *Redis) Set(ctx context.Context, key string, value string, expiration time.Duration) error {
	if r.Client == nil {
		return fmt.Errorf("redis客户端未初始化")
	}

	var span trace.Span

	if shouldSampleRedisOp(key) {
		ctx, span = redisTracer.Start(ctx, "Redis.Set", trace.WithSpanKind(trace.SpanKindClient))
		defer span.End()

		span.SetAttributes(
			attribute.String("db.system", "redis"),
			attribute.String("db.operation", "SET"),
			attribute.String("db.redis.key", key),
			attribute.Int("db.redis.value_length", len(value)),
			attribute.Bool("otel.propagate_to_child", false),
		)

		if expiration > 0 {
			span.SetAttributes(attribute.Int64("db.redis.expiration_ms", expiration.Milliseconds()))
		}
	}

	err := r.Client.Set(ctx, key, value, expiration).Err()

	if span != nil {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
		span.SetStatus(codes.Ok, "")
	}

	return err
}

// AcquireLock 尝试获取一个分布式锁
func (r *Redis) AcquireLock(ctx context.Context, lockKey string, expiration time.Duration) (string, error) {
	if r.Client == nil {
		return "", fmt.Errorf("redis client is not initialized")
	}
	// 随机值作为锁的持有者标识
	lockValue := fmt.Sprintf("%d", time.Now().UnixNano())
	ok, err := r.Client.SetNX(ctx, lockKey, lockValue, expiration).Result()
	if err != nil {
		return "", err
	}
	if ok {
		return lockValue, nil
	}
	// 未能获取锁
	return "", nil
}

// ReleaseLock 释放一个分布式锁，使用Lua脚本保证原子性
func (r *Redis) ReleaseLock(ctx context.Context, lockKey string, lockValue string) (bool, error) {
	if r.Client == nil {
		return false, fmt.Errorf("redis client is not initialized")
	}
	// 仅当值匹配时删除，避免释放他人持有的锁
	script := `
        if redis.call("get", KEYS[1]) == ARGV[1] then
            return redis.call("del", KEYS[1])
        else
            return 0
        end
    `
	res, err := r.Client.Eval(ctx, script, []string{lockKey}, lockValue).Result()
	if err != nil {
		return false, err
	}

	if released, ok := res.(int64); ok && released == 1 {
		return true, nil
	}

	return false, nil
}
