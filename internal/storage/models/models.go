package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// JobPost 岗位信息表。
// JobID 允许由调用方提供（便于外部系统对接），未提供时由服务端根据JD文本生成。
type JobPost struct {
	JobID       string    `gorm:"type:char(36);primaryKey"`
	Title       string    `gorm:"type:varchar(255)"`
	Department  string    `gorm:"type:varchar(255)"`
	Location    string    `gorm:"type:varchar(255)"`
	Description string    `gorm:"type:text;not null"`
	Status      string    `gorm:"type:varchar(50);default:'active';index:idx_job_posts_status"`
	CreatedAt   time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt   time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`
}

func (JobPost) TableName() string {
	return "job_posts"
}

// Application 投递表。一次投递对应一份简历和一个目标岗位。
type Application struct {
	ApplicationID  string         `gorm:"type:char(36);primaryKey"`
	JobID          string         `gorm:"type:char(36);not null;index:idx_applications_job_id"`
	CandidateName  string         `gorm:"type:varchar(255)"`
	CandidateEmail string         `gorm:"type:varchar(255);index:idx_applications_candidate_email"`
	// 原始简历文件在MinIO中的对象键，纯文本投递时为空
	CVFilePathOSS string `gorm:"type:varchar(1024)"`
	CVFileMD5     string `gorm:"type:char(32);index:idx_applications_cv_file_md5"`
	CVText        string `gorm:"type:mediumtext"`
	// 结构化解析结果，含 parsing_method 溯源标记
	ParsedResume    datatypes.JSON `gorm:"type:json"`
	SimilarityScore *float64       `gorm:"type:float;index:idx_applications_job_score,priority:2"`
	InterviewLink   *string        `gorm:"type:varchar(512)"`
	Status          string         `gorm:"type:varchar(50);default:'pending';index:idx_applications_status"`
	CreatedAt       time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt       time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`

	Job *JobPost `gorm:"foreignKey:JobID;references:JobID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (Application) TableName() string {
	return "applications"
}

// Interview 面试记录表。InterviewLink 既是对外的访问令牌也是主键。
type Interview struct {
	InterviewLink   string         `gorm:"type:char(36);primaryKey"`
	ApplicationID   string         `gorm:"type:char(36);not null;index:idx_interviews_application_id"`
	Status          string         `gorm:"type:varchar(50);default:'scheduled';index:idx_interviews_status"`
	QuestionCount   int            `gorm:"default:0"`
	AnswerScores    datatypes.JSON `gorm:"type:json"`
	OverallScore    *int           `gorm:"type:int"`
	Recommendation  string         `gorm:"type:varchar(50)"`
	EvaluationJSON  datatypes.JSON `gorm:"type:json"`
	ScheduledAt     *time.Time     `gorm:"type:datetime(6)"`
	CompletedAt     *time.Time     `gorm:"type:datetime(6)"`
	CreatedAt       time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt       time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`

	Application *Application `gorm:"foreignKey:ApplicationID;references:ApplicationID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (Interview) TableName() string {
	return "interviews"
}

// StringToJSON 把字符串直接包装为 datatypes.JSON
func StringToJSON(s string) datatypes.JSON {
	return datatypes.JSON(s)
}

// MapToJSON 把 map[string]interface{} 序列化为 datatypes.JSON
func MapToJSON(m map[string]interface{}) (datatypes.JSON, error) {
	bytes, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return bytes, nil
}

// StructToJSON 把任意可序列化结构转为 datatypes.JSON
func StructToJSON(v interface{}) (datatypes.JSON, error) {
	bytes, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return bytes, nil
}

// JSONOf StructToJSON的宽松版本：自有结构体序列化不会失败，失败时返回nil列
func JSONOf(v interface{}) datatypes.JSON {
	bytes, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return bytes
}
