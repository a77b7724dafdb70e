package storage

import "time"

// ProfileReadyEvent 简历画像处理完成事件
type ProfileReadyEvent struct {
	ResumeID         string    `json:"resume_id"`
	UserID           string    `json:"user_id"`
	ExtractionMethod string    `json:"extraction_method"` // rag 或 fallback
	PipelineVersion  string    `json:"pipeline_version"`
	SkillCount       int       `json:"skill_count"`
	OriginalFilename string    `json:"original_filename"`
	ProcessedAt      time.Time `json:"processed_at"`
}

// JobEnhancedEvent 职位描述增强完成事件
type JobEnhancedEvent struct {
	JobID            string    `json:"job_id"`
	Title            string    `json:"title"`
	Company          string    `json:"company"`
	RequirementCount int       `json:"requirement_count"`
	FromCache        bool      `json:"from_cache"`
	EnhancedAt       time.Time `json:"enhanced_at"`
}

// ApplicationSubmittedEvent 投递提交事件
type ApplicationSubmittedEvent struct {
	ApplicationID string    `json:"application_id"`
	JobID         string    `json:"job_id"`
	ApplicantID   string    `json:"applicant_id"`
	ResumeID      string    `json:"resume_id,omitempty"`
	JobTitle      string    `json:"job_title"`
	Company       string    `json:"company"`
	AppliedAt     time.Time `json:"applied_at"`
}
