package handler

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"gorm.io/gorm"

	"job-match-go/internal/config"
	"job-match-go/internal/logger"
	"job-match-go/internal/processor"
	"job-match-go/internal/storage"
	"job-match-go/internal/storage/models"
	"job-match-go/internal/types"
)

// ResumeHandler 简历上传、画像查询与职位匹配的HTTP处理器
type ResumeHandler struct {
	cfg      *config.Config
	storage  *storage.Storage
	pipeline *processor.ResumePipeline
}

// NewResumeHandler 创建简历处理器
func NewResumeHandler(cfg *config.Config, store *storage.Storage, pipeline *processor.ResumePipeline) *ResumeHandler {
	return &ResumeHandler{
		cfg:      cfg,
		storage:  store,
		pipeline: pipeline,
	}
}

// HandleResumeUpload 处理简历上传请求。
// POST /api/v1/users/:user_id/resume (multipart, 字段名 file)
func (h *ResumeHandler) HandleResumeUpload(ctx context.Context, c *app.RequestContext) {
	userID := c.Param("user_id")
	if userID == "" {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "user_id 不能为空"})
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "文件未找到"})
		return
	}

	if fileHeader.Size > h.cfg.Upload.MaxFileSizeBytes {
		c.JSON(consts.StatusRequestEntityTooLarge, utils.H{"error": "文件超过大小限制"})
		return
	}
	if !h.cfg.IsAllowedExtension(fileHeader.Filename) {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "仅支持PDF和DOCX文件"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(consts.StatusInternalServerError, utils.H{"error": "打开文件失败"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(consts.StatusInternalServerError, utils.H{"error": "读取上传文件内容失败"})
		return
	}

	userEmail := string(c.FormValue("email"))
	if user, userErr := h.storage.MySQL.GetUserByID(ctx, userID); userErr == nil && user.Email != "" {
		userEmail = user.Email
	}

	outcome, err := h.pipeline.ProcessResumeUpload(ctx, processor.UploadInput{
		UserID:    userID,
		UserEmail: userEmail,
		Filename:  fileHeader.Filename,
		Data:      data,
	})
	if err != nil {
		status := consts.StatusInternalServerError
		switch {
		case errors.Is(err, processor.ErrEmptyInput), errors.Is(err, processor.ErrUnsupportedFormat):
			status = consts.StatusUnprocessableEntity
		case errors.Is(err, processor.ErrBackendUnavailable):
			status = consts.StatusBadGateway
		}
		logger.Ctx(ctx).Error().Err(err).Str("user_id", userID).Msg("简历处理失败")
		c.JSON(status, utils.H{"error": err.Error()})
		return
	}

	c.JSON(consts.StatusOK, utils.H{
		"message":           "Resume processed successfully",
		"resume_id":         outcome.ResumeID,
		"duplicate":         outcome.Duplicate,
		"extraction_method": string(outcome.Profile.Method),
		"resume_data":       resumeProfileJSON(outcome.ResumeID, userID, outcome.Profile, nil),
	})
}

// HandleGetResume 返回用户的简历画像。
// GET /api/v1/users/:user_id/resume
func (h *ResumeHandler) HandleGetResume(ctx context.Context, c *app.RequestContext) {
	userID := c.Param("user_id")
	if userID == "" {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "user_id 不能为空"})
		return
	}

	resume, err := h.storage.MySQL.GetResumeByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(consts.StatusNotFound, utils.H{"error": "简历不存在"})
			return
		}
		logger.Ctx(ctx).Error().Err(err).Str("user_id", userID).Msg("查询简历失败")
		c.JSON(consts.StatusInternalServerError, utils.H{"error": "查询简历失败"})
		return
	}

	profile := processor.ResumeModelToProfile(resume)
	c.JSON(consts.StatusOK, utils.H{
		"resume_data": resumeProfileJSON(resume.ResumeID, userID, profile, resume),
	})
}

// HandleMatchJobs 用用户画像对在招职位打分。
// GET /api/v1/users/:user_id/matches
func (h *ResumeHandler) HandleMatchJobs(ctx context.Context, c *app.RequestContext) {
	userID := c.Param("user_id")
	if userID == "" {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "user_id 不能为空"})
		return
	}

	results, err := h.pipeline.MatchJobsForUser(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(consts.StatusNotFound, utils.H{"error": "请先上传简历"})
			return
		}
		logger.Ctx(ctx).Error().Err(err).Str("user_id", userID).Msg("职位匹配失败")
		c.JSON(consts.StatusInternalServerError, utils.H{"error": "职位匹配失败"})
		return
	}

	matches := make([]utils.H, 0, len(results))
	for _, r := range results {
		matches = append(matches, utils.H{
			"job_id":          r.JobID,
			"title":           r.Title,
			"company":         r.Company,
			"match_score":     r.MatchScore,
			"matching_skills": r.MatchingSkills,
		})
	}

	c.JSON(consts.StatusOK, utils.H{
		"matches":     matches,
		"total_count": len(matches),
	})
}

// resumeProfileJSON 组装对外的简历画像JSON，resume为nil时省略数据库侧字段
func resumeProfileJSON(resumeID, userID string, profile *types.SkillProfile, resume *models.Resume) utils.H {
	data := utils.H{
		"id":                    resumeID,
		"userId":                userID,
		"name":                  profile.Contact.Name,
		"email":                 profile.Contact.Email,
		"phone":                 profile.Contact.Phone,
		"technical_skills":      profile.TechnicalSkills,
		"soft_skills":           profile.SoftSkills,
		"programming_languages": profile.ProgrammingLanguages,
		"frameworks_tools":      profile.FrameworksTools,
		"certifications":        profile.Certifications,
		"summary":               profile.Summary,
		"experience_summary":    profile.ExperienceSummary,
		"education_summary":     profile.EducationSummary,
		"projects":              profile.Projects,
		"industries":            profile.Industries,
		"career_level":          profile.CareerLevel,
		"extraction_method":     string(profile.Method),
	}
	if resume != nil {
		data["createdAt"] = resume.CreatedAt.Format(time.RFC3339)
		data["updatedAt"] = resume.UpdatedAt.Format(time.RFC3339)
		data["isActive"] = resume.IsActive
		data["original_filename"] = resume.OriginalFilename
	}
	return data
}
