package constants

// Redis Key 前缀和格式常量
// 统一命名规范: app:{module}:{entity}:{unique_id}
const (
	// AppPrefix 是所有Redis Key的统一应用前缀
	AppPrefix = "app"

	// JobModulePrefix 岗位模块
	JobModulePrefix = "job"
	// ApplicationModulePrefix 投递模块
	ApplicationModulePrefix = "application"
	// InterviewModulePrefix 面试模块
	InterviewModulePrefix = "interview"

	// EntityText 文本实体
	EntityText = "text"
	// EntityLock 分布式锁实体
	EntityLock = "lock"
	// EntityDedupSet 去重集合实体
	EntityDedupSet = "dedup_set"
	// EntityLink 面试链接实体
	EntityLink = "link"
	// EntityTranscript 面试对话记录实体
	EntityTranscript = "transcript"

	// KeyJobDescriptionText JD文本缓存 (STRING)
	// 格式: app:job:text:{jobID}
	KeyJobDescriptionText = AppPrefix + ":" + JobModulePrefix + ":" + EntityText + ":%s"

	// KeyCVFileMD5Set 简历文件MD5集合，用于快速去重 (SET)
	// 格式: app:application:dedup_set
	KeyCVFileMD5Set = AppPrefix + ":" + ApplicationModulePrefix + ":" + EntityDedupSet

	// KeyInterviewLinkGuard 面试链接一次性发放守卫 (STRING, SETNX)
	// 格式: app:interview:link:{applicationID}
	KeyInterviewLinkGuard = AppPrefix + ":" + InterviewModulePrefix + ":" + EntityLink + ":%s"

	// KeyInterviewTranscript 面试对话记录 (LIST)
	// 格式: app:interview:transcript:{interviewLink}
	KeyInterviewTranscript = AppPrefix + ":" + InterviewModulePrefix + ":" + EntityTranscript + ":%s"

	// KeyCompareLock 同一投递并发比较的分布式锁 (STRING)
	// 格式: app:application:lock:{applicationID}
	KeyCompareLock = AppPrefix + ":" + ApplicationModulePrefix + ":" + EntityLock + ":%s"
)
