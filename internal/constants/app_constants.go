package constants

import "time"

const (
	// Application-level constants
	DefaultPipelineVer = "1.0" // 流水线版本号，写入画像元数据

	// Pipeline defaults (config 缺省值兜底)
	DefaultChunkSize     = 1000
	DefaultChunkOverlap  = 200
	DefaultRetrievalTopK = 4
	DefaultSkillCap      = 20
	DefaultFallbackCap   = 10
	DefaultContactScan   = 5 // 联系信息扫描的行数上限

	// DefaultMatchThreshold 匹配结果的最低保留分数
	DefaultMatchThreshold = 0.3

	// Cache durations
	EnhancedJDCacheDuration = 24 * time.Hour
	NormalizedTextCacheTTL  = 12 * time.Hour
	UploadLockTTL           = 5 * time.Minute
	MD5MappingCacheDuration = 7 * 24 * time.Hour
)
