package handler

import (
	"context"
	"errors"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/gofrs/uuid/v5"
	"gorm.io/gorm"

	"job-match-go/internal/logger"
	"job-match-go/internal/storage"
	"job-match-go/internal/storage/models"
)

// ApplicationHandler 职位申请的HTTP处理器
type ApplicationHandler struct {
	storage *storage.Storage
}

// NewApplicationHandler 创建申请处理器
func NewApplicationHandler(store *storage.Storage) *ApplicationHandler {
	return &ApplicationHandler{storage: store}
}

// HandleApply 提交职位申请。
// POST /api/v1/jobs/:job_id/apply (multipart/form: applicant_id)
// 申请人必须已上传简历; 同一用户对同一职位只能申请一次。
func (h *ApplicationHandler) HandleApply(ctx context.Context, c *app.RequestContext) {
	jobID := c.Param("job_id")
	applicantID := string(c.FormValue("applicant_id"))
	if jobID == "" || applicantID == "" {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "job_id和applicant_id不能为空"})
		return
	}

	job, err := h.storage.MySQL.GetJobPostingByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(consts.StatusNotFound, utils.H{"error": "职位不存在"})
			return
		}
		logger.Ctx(ctx).Error().Err(err).Str("job_id", jobID).Msg("查询职位失败")
		c.JSON(consts.StatusInternalServerError, utils.H{"error": "查询职位失败"})
		return
	}
	if !job.IsActive {
		c.JSON(consts.StatusConflict, utils.H{"error": "职位已下架，无法申请"})
		return
	}

	resume, err := h.storage.MySQL.GetResumeByUserID(ctx, applicantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(consts.StatusUnprocessableEntity, utils.H{"error": "请先上传简历再申请职位"})
			return
		}
		logger.Ctx(ctx).Error().Err(err).Str("applicant_id", applicantID).Msg("查询简历失败")
		c.JSON(consts.StatusInternalServerError, utils.H{"error": "查询简历失败"})
		return
	}

	applied, err := h.storage.MySQL.HasApplied(ctx, jobID, applicantID)
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("job_id", jobID).Msg("查询申请记录失败")
		c.JSON(consts.StatusInternalServerError, utils.H{"error": "查询申请记录失败"})
		return
	}
	if applied {
		c.JSON(consts.StatusConflict, utils.H{"error": "已申请过该职位"})
		return
	}

	applicationUUID, err := uuid.NewV4()
	if err != nil {
		c.JSON(consts.StatusInternalServerError, utils.H{"error": "生成申请ID失败"})
		return
	}

	// 冗余存储申请人与职位的快照字段，列表查询无需联表
	application := &models.Application{
		ApplicationID:  applicationUUID.String(),
		JobID:          jobID,
		ApplicantID:    applicantID,
		ResumeID:       resume.ResumeID,
		Status:         "submitted",
		ApplicantName:  resume.Name,
		ApplicantEmail: resume.Email,
		JobTitle:       job.Title,
		Company:        job.Company,
		AppliedAt:      time.Now(),
	}

	if err := h.storage.MySQL.CreateApplicationAndAppendApplicant(ctx, application); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(consts.StatusConflict, utils.H{"error": "职位已下架，无法申请"})
			return
		}
		logger.Ctx(ctx).Error().Err(err).Str("job_id", jobID).Str("applicant_id", applicantID).Msg("申请落库失败")
		c.JSON(consts.StatusInternalServerError, utils.H{"error": "申请提交失败"})
		return
	}

	// 事件发布为尽力而为，失败不回滚申请
	if h.storage.RabbitMQ != nil {
		if err := h.storage.RabbitMQ.PublishApplicationSubmitted(ctx, &storage.ApplicationSubmittedEvent{
			ApplicationID: application.ApplicationID,
			JobID:         jobID,
			ApplicantID:   applicantID,
			ResumeID:      resume.ResumeID,
			JobTitle:      job.Title,
			Company:       job.Company,
			AppliedAt:     application.AppliedAt,
		}); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Str("application_id", application.ApplicationID).Msg("申请事件发布失败")
		}
	}

	c.JSON(consts.StatusCreated, utils.H{
		"message":          "Application submitted successfully",
		"application_data": applicationJSON(application),
	})
}

// HandleMyApplications 列出某用户提交的所有申请。
// GET /api/v1/users/:user_id/applications
func (h *ApplicationHandler) HandleMyApplications(ctx context.Context, c *app.RequestContext) {
	userID := c.Param("user_id")
	if userID == "" {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "user_id 不能为空"})
		return
	}

	applications, err := h.storage.MySQL.ListApplicationsByApplicant(ctx, userID)
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("user_id", userID).Msg("查询申请列表失败")
		c.JSON(consts.StatusInternalServerError, utils.H{"error": "查询申请列表失败"})
		return
	}

	items := make([]utils.H, 0, len(applications))
	for i := range applications {
		items = append(items, applicationJSON(&applications[i]))
	}

	c.JSON(consts.StatusOK, utils.H{
		"applications": items,
		"total_count":  len(items),
	})
}

// HandleJobApplicants 列出某职位收到的所有申请。
// GET /api/v1/jobs/:job_id/applicants
func (h *ApplicationHandler) HandleJobApplicants(ctx context.Context, c *app.RequestContext) {
	jobID := c.Param("job_id")
	if jobID == "" {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "job_id 不能为空"})
		return
	}

	if _, err := h.storage.MySQL.GetJobPostingByID(ctx, jobID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(consts.StatusNotFound, utils.H{"error": "职位不存在"})
			return
		}
		logger.Ctx(ctx).Error().Err(err).Str("job_id", jobID).Msg("查询职位失败")
		c.JSON(consts.StatusInternalServerError, utils.H{"error": "查询职位失败"})
		return
	}

	applications, err := h.storage.MySQL.ListApplicationsByJob(ctx, jobID)
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("job_id", jobID).Msg("查询职位申请失败")
		c.JSON(consts.StatusInternalServerError, utils.H{"error": "查询职位申请失败"})
		return
	}

	items := make([]utils.H, 0, len(applications))
	for i := range applications {
		items = append(items, applicationJSON(&applications[i]))
	}

	c.JSON(consts.StatusOK, utils.H{
		"job_id":       jobID,
		"applications": items,
		"total_count":  len(items),
	})
}

// applicationJSON 组装对外的申请JSON
func applicationJSON(application *models.Application) utils.H {
	return utils.H{
		"id":              application.ApplicationID,
		"job_id":          application.JobID,
		"applicant_id":    application.ApplicantID,
		"resume_id":       application.ResumeID,
		"status":          application.Status,
		"applicant_name":  application.ApplicantName,
		"applicant_email": application.ApplicantEmail,
		"job_title":       application.JobTitle,
		"company":         application.Company,
		"applied_at":      application.AppliedAt.Format(time.RFC3339),
		"updated_at":      application.UpdatedAt.Format(time.RFC3339),
	}
}
