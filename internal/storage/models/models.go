package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// User 用户主表
type User struct {
	UserID      string    `gorm:"type:char(36);primaryKey"`
	Email       string    `gorm:"type:varchar(255);uniqueIndex:idx_users_email_unique"`
	DisplayName string    `gorm:"type:varchar(255)"`
	Role        string    `gorm:"type:varchar(50);index:idx_users_role"` // applicant / requester
	ResumeID    *string   `gorm:"type:char(36)"`                         // 每个用户至多一份简历
	CreatedAt   time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt   time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`
}

func (User) TableName() string {
	return "users"
}

// Resume 简历及其抽取出的技能档案。
// 每个用户只保留一份，重新上传时原地覆盖。
type Resume struct {
	ResumeID                 string         `gorm:"type:char(36);primaryKey"`
	UserID                   string         `gorm:"type:char(36);not null;uniqueIndex:idx_resumes_user_unique"`
	Name                     string         `gorm:"type:varchar(255)"`
	Email                    string         `gorm:"type:varchar(255)"`
	Phone                    string         `gorm:"type:varchar(50)"`
	TechnicalSkillsJSON      datatypes.JSON `gorm:"type:json"`
	SoftSkillsJSON           datatypes.JSON `gorm:"type:json"`
	ProgrammingLanguagesJSON datatypes.JSON `gorm:"type:json"`
	FrameworksToolsJSON      datatypes.JSON `gorm:"type:json"`
	Certifications           string         `gorm:"type:text"`
	Summary                  string         `gorm:"type:text"`
	ExperienceSummary        string         `gorm:"type:text"`
	EducationSummary         string         `gorm:"type:text"`
	Projects                 string         `gorm:"type:text"`
	Industries               string         `gorm:"type:text"`
	CareerLevel              string         `gorm:"type:text"`
	RawText                  string         `gorm:"type:mediumtext"`
	RawTextMD5               string         `gorm:"type:char(32);index:idx_resumes_raw_text_md5"`
	ExtractionMethod         string         `gorm:"type:varchar(50)"` // rag / fallback
	PipelineVersion          string         `gorm:"type:varchar(50)"`
	OriginalFilename         string         `gorm:"type:varchar(255)"`
	OriginalFilePathOSS      string         `gorm:"type:varchar(1024)"`
	NormalizedTextPathOSS    string         `gorm:"type:varchar(1024)"`
	IsActive                 bool           `gorm:"default:true"`
	CreatedAt                time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt                time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`

	User *User `gorm:"foreignKey:UserID;references:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (Resume) TableName() string {
	return "resumes"
}

// JobApplicant 职位下的申请人条目，追加写入，存储在JobPosting.ApplicantsJSON中
type JobApplicant struct {
	ApplicantID   string    `json:"applicant_id"`
	ApplicationID string    `json:"application_id"`
	Status        string    `json:"status"`
	AppliedAt     time.Time `json:"applied_at"`
}

// JobPosting 职位信息表。
// 删除通过is_active软删除实现，申请人列表仅追加。
type JobPosting struct {
	JobID                       string         `gorm:"type:char(36);primaryKey"`
	Title                       string         `gorm:"type:varchar(255);not null"`
	Company                     string         `gorm:"type:varchar(255);not null"`
	Location                    string         `gorm:"type:varchar(255)"`
	Description                 string         `gorm:"type:text;not null"`
	PostedByUserID              string         `gorm:"type:char(36);index:idx_jobs_posted_by"`
	PDFProcessed                bool           `gorm:"default:false"`
	AIEnhanced                  bool           `gorm:"default:false"`
	IsActive                    bool           `gorm:"default:true;index:idx_jobs_is_active"`
	EnhancedDescription         string         `gorm:"type:text"`
	KeyRequirementsJSON         datatypes.JSON `gorm:"type:json"`
	KeyResponsibilitiesJSON     datatypes.JSON `gorm:"type:json"`
	PreferredQualificationsJSON datatypes.JSON `gorm:"type:json"`
	CompensationInfo            string         `gorm:"type:text"`
	AdditionalDetails           string         `gorm:"type:text"`
	PDFSummary                  string         `gorm:"type:text"`
	OriginalPDFText             string         `gorm:"type:text"` // 截断保存，用于排查
	ApplicantsJSON              datatypes.JSON `gorm:"type:json"`
	CreatedAt                   time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt                   time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`
}

func (JobPosting) TableName() string {
	return "job_postings"
}

// Application 职位申请表
type Application struct {
	ApplicationID  string    `gorm:"type:char(36);primaryKey"`
	JobID          string    `gorm:"type:char(36);not null;index:idx_applications_job_id;uniqueIndex:idx_applications_job_applicant,priority:1"`
	ApplicantID    string    `gorm:"type:char(36);not null;index:idx_applications_applicant_id;uniqueIndex:idx_applications_job_applicant,priority:2"`
	ResumeID       string    `gorm:"type:char(36)"`
	Status         string    `gorm:"type:varchar(50);default:'submitted';index:idx_applications_status"`
	ApplicantName  string    `gorm:"type:varchar(255)"`
	ApplicantEmail string    `gorm:"type:varchar(255)"`
	JobTitle       string    `gorm:"type:varchar(255)"`
	Company        string    `gorm:"type:varchar(255)"`
	AppliedAt      time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt      time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`

	Job *JobPosting `gorm:"foreignKey:JobID;references:JobID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (Application) TableName() string {
	return "applications"
}

// StringSliceToJSON 把字符串切片序列化为datatypes.JSON，nil按空列表处理
func StringSliceToJSON(items []string) (datatypes.JSON, error) {
	if items == nil {
		items = []string{}
	}
	bytes, err := json.Marshal(items)
	if err != nil {
		return nil, err
	}
	return bytes, nil
}

// JSONToStringSlice 反序列化JSON列表字段，空值返回空切片
func JSONToStringSlice(data datatypes.JSON) []string {
	if len(data) == 0 {
		return []string{}
	}
	var items []string
	if err := json.Unmarshal(data, &items); err != nil {
		return []string{}
	}
	return items
}

// ApplicantsToJSON 序列化职位申请人列表
func ApplicantsToJSON(applicants []JobApplicant) (datatypes.JSON, error) {
	if applicants == nil {
		applicants = []JobApplicant{}
	}
	bytes, err := json.Marshal(applicants)
	if err != nil {
		return nil, err
	}
	return bytes, nil
}

// JSONToApplicants 反序列化职位申请人列表，空值或解析失败返回空切片
func JSONToApplicants(data datatypes.JSON) []JobApplicant {
	if len(data) == 0 {
		return []JobApplicant{}
	}
	var applicants []JobApplicant
	if err := json.Unmarshal(data, &applicants); err != nil {
		return []JobApplicant{}
	}
	return applicants
}
