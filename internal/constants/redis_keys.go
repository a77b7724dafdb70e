package constants

// Redis Key 前缀和格式常量
// 使用统一的命名规范: app:{module}:{entity}:{unique_id}
const (
	// AppPrefix 是所有Redis Key的统一应用前缀
	AppPrefix = "app"

	// ProfileModulePrefix 画像模块
	ProfileModulePrefix = "profile"
	// JobModulePrefix 岗位模块
	JobModulePrefix = "job"
	// FileModulePrefix 文件模块
	FileModulePrefix = "file"
	// UploadModulePrefix 上传模块
	UploadModulePrefix = "upload"

	// EntityLock 分布式锁实体
	EntityLock = "lock"
	// EntityText 文本实体
	EntityText = "text"
	// EntityEnhanced 增强后的JD实体
	EntityEnhanced = "enhanced"
	// EntityDedupSet 去重集合实体
	EntityDedupSet = "dedup_set"
	// EntityMD5ToUUID MD5到UUID的映射实体
	EntityMD5ToUUID = "md5_to_uuid"

	// KeyUploadLock 同一用户的上传互斥锁 (STRING)
	// 格式: app:upload:lock:{userID}
	KeyUploadLock = AppPrefix + ":" + UploadModulePrefix + ":" + EntityLock + ":%s"

	// KeyNormalizedText 归一化简历文本缓存 (STRING)
	// 格式: app:profile:text:{profileUUID}
	KeyNormalizedText = AppPrefix + ":" + ProfileModulePrefix + ":" + EntityText + ":%s"

	// KeyEnhancedJD 增强后的JD缓存 (STRING)
	// 格式: app:job:enhanced:{jobID}
	KeyEnhancedJD = AppPrefix + ":" + JobModulePrefix + ":" + EntityEnhanced + ":%s"

	// KeyFileMD5Set 文件MD5集合，用于快速去重 (SET)
	// 格式: app:file:dedup_set
	KeyFileMD5Set = AppPrefix + ":" + FileModulePrefix + ":" + EntityDedupSet

	// KeyFileMD5ToProfileUUID MD5到ProfileUUID的映射 (STRING)
	// 格式: app:file:md5_to_uuid:{md5}
	KeyFileMD5ToProfileUUID = AppPrefix + ":" + FileModulePrefix + ":" + EntityMD5ToUUID + ":%s"
)
