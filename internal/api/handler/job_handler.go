package handler

import (
	"bytes"
	"context"
	"errors"
	"io"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/gofrs/uuid/v5"
	"gorm.io/gorm"

	"job-match-go/internal/config"
	"job-match-go/internal/logger"
	"job-match-go/internal/processor"
	"job-match-go/internal/storage"
	"job-match-go/internal/storage/models"
	"job-match-go/internal/types"
)

// 职位PDF全文在数据库中的保留长度，完整原件在对象存储里
const jobPDFTextDBLimit = 10000

// JobHandler 职位发布与查询的HTTP处理器
type JobHandler struct {
	cfg         *config.Config
	storage     *storage.Storage
	jdProcessor *processor.JDProcessor
}

// NewJobHandler 创建职位处理器
func NewJobHandler(cfg *config.Config, store *storage.Storage, jdProcessor *processor.JDProcessor) *JobHandler {
	return &JobHandler{
		cfg:         cfg,
		storage:     store,
		jdProcessor: jdProcessor,
	}
}

// HandleCreateJob 创建职位，可附带PDF触发LLM增强。
// POST /api/v1/jobs (multipart: title/company/location/description/posted_by + 可选 file)
func (h *JobHandler) HandleCreateJob(ctx context.Context, c *app.RequestContext) {
	title := string(c.FormValue("title"))
	company := string(c.FormValue("company"))
	location := string(c.FormValue("location"))
	description := string(c.FormValue("description"))
	postedBy := string(c.FormValue("posted_by"))

	if title == "" || company == "" || description == "" {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "title、company和description不能为空"})
		return
	}

	jobUUID, err := uuid.NewV4()
	if err != nil {
		c.JSON(consts.StatusInternalServerError, utils.H{"error": "生成职位ID失败"})
		return
	}
	jobID := jobUUID.String()

	job := &models.JobPosting{
		JobID:          jobID,
		Title:          title,
		Company:        company,
		Location:       location,
		Description:    description,
		PostedByUserID: postedBy,
		IsActive:       true,
	}

	// 可选的职位PDF: 提取全文并做LLM增强，失败不影响职位创建
	if fileHeader, fileErr := c.FormFile("file"); fileErr == nil {
		if fileHeader.Size > h.cfg.Upload.MaxFileSizeBytes {
			c.JSON(consts.StatusRequestEntityTooLarge, utils.H{"error": "文件超过大小限制"})
			return
		}

		file, openErr := fileHeader.Open()
		if openErr != nil {
			c.JSON(consts.StatusInternalServerError, utils.H{"error": "打开文件失败"})
			return
		}
		pdfData, readErr := io.ReadAll(file)
		_ = file.Close()
		if readErr != nil {
			c.JSON(consts.StatusInternalServerError, utils.H{"error": "读取上传文件内容失败"})
			return
		}

		h.enhanceJobFromPDF(ctx, job, pdfData)
	}

	if err := h.storage.MySQL.CreateJobPosting(ctx, job); err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("job_id", jobID).Msg("职位落库失败")
		c.JSON(consts.StatusInternalServerError, utils.H{"error": "职位创建失败"})
		return
	}

	c.JSON(consts.StatusCreated, utils.H{
		"message":  "Job created successfully",
		"job_data": jobPostingJSON(job),
	})
}

// enhanceJobFromPDF 对PDF执行增强并把结果写进职位记录。增强失败只记录日志。
func (h *JobHandler) enhanceJobFromPDF(ctx context.Context, job *models.JobPosting, pdfData []byte) {
	if h.storage.MinIO != nil {
		if _, err := h.storage.MinIO.UploadJobDocument(ctx, job.JobID, bytes.NewReader(pdfData), int64(len(pdfData))); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Str("job_id", job.JobID).Msg("职位PDF入对象存储失败")
		}
	}

	if h.jdProcessor == nil {
		return
	}

	result, err := h.jdProcessor.EnhanceJobDocument(ctx, job.JobID, pdfData, types.JobContext{
		Title:       job.Title,
		Company:     job.Company,
		Location:    job.Location,
		Description: job.Description,
	})
	if err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("job_id", job.JobID).Msg("职位PDF增强失败，按原始描述发布")
		return
	}

	enhanced := result.Enhanced
	keyReq, _ := models.StringSliceToJSON(enhanced.KeyRequirements)
	keyResp, _ := models.StringSliceToJSON(enhanced.KeyResponsibilities)
	prefQual, _ := models.StringSliceToJSON(enhanced.PreferredQualifications)
	job.PDFProcessed = true
	job.AIEnhanced = true
	job.EnhancedDescription = enhanced.EnhancedDescription
	job.KeyRequirementsJSON = keyReq
	job.KeyResponsibilitiesJSON = keyResp
	job.PreferredQualificationsJSON = prefQual
	job.CompensationInfo = enhanced.CompensationInfo
	job.AdditionalDetails = enhanced.AdditionalDetails
	job.PDFSummary = enhanced.Summary
	if len(result.RawText) > jobPDFTextDBLimit {
		job.OriginalPDFText = result.RawText[:jobPDFTextDBLimit]
	} else {
		job.OriginalPDFText = result.RawText
	}
}

// HandleGetJob 返回单个职位详情。
// GET /api/v1/jobs/:job_id
func (h *JobHandler) HandleGetJob(ctx context.Context, c *app.RequestContext) {
	jobID := c.Param("job_id")
	if jobID == "" {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "job_id 不能为空"})
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

	c.JSON(consts.StatusOK, utils.H{"job_data": jobPostingJSON(job)})
}

// HandleListJobs 列出所有在招职位，按创建时间倒序。
// GET /api/v1/jobs
func (h *JobHandler) HandleListJobs(ctx context.Context, c *app.RequestContext) {
	var (
		jobs []models.JobPosting
		err  error
	)
	if postedBy := c.Query("posted_by"); postedBy != "" {
		jobs, err = h.storage.MySQL.ListJobPostingsByPoster(ctx, postedBy)
	} else {
		jobs, err = h.storage.MySQL.ListActiveJobPostings(ctx)
	}
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Msg("查询职位列表失败")
		c.JSON(consts.StatusInternalServerError, utils.H{"error": "查询职位列表失败"})
		return
	}

	items := make([]utils.H, 0, len(jobs))
	for i := range jobs {
		items = append(items, jobPostingJSON(&jobs[i]))
	}

	c.JSON(consts.StatusOK, utils.H{
		"jobs":        items,
		"total_count": len(items),
	})
}

// jobUpdateRequest 职位更新的JSON请求体，指针字段区分"未传"与"置空"
type jobUpdateRequest struct {
	Title       *string `json:"title"`
	Company     *string `json:"company"`
	Location    *string `json:"location"`
	Description *string `json:"description"`
}

// HandleUpdateJob 更新职位基础字段。
// PUT /api/v1/jobs/:job_id
func (h *JobHandler) HandleUpdateJob(ctx context.Context, c *app.RequestContext) {
	jobID := c.Param("job_id")
	if jobID == "" {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "job_id 不能为空"})
		return
	}

	var req jobUpdateRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "请求体解析失败"})
		return
	}

	updates := map[string]interface{}{}
	if req.Title != nil {
		updates["title"] = *req.Title
	}
	if req.Company != nil {
		updates["company"] = *req.Company
	}
	if req.Location != nil {
		updates["location"] = *req.Location
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if len(updates) == 0 {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "没有可更新的字段"})
		return
	}

	if _, err := h.storage.MySQL.GetJobPostingByID(ctx, jobID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(consts.StatusNotFound, utils.H{"error": "职位不存在"})
			return
		}
		logger.Ctx(ctx).Error().Err(err).Str("job_id", jobID).Msg("查询职位失败")
		c.JSON(consts.StatusInternalServerError, utils.H{"error": "更新职位失败"})
		return
	}

	if err := h.storage.MySQL.UpdateJobPostingFields(ctx, jobID, updates); err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("job_id", jobID).Msg("更新职位失败")
		c.JSON(consts.StatusInternalServerError, utils.H{"error": "更新职位失败"})
		return
	}

	c.JSON(consts.StatusOK, utils.H{"message": "Job updated successfully"})
}

// HandleDeleteJob 下架职位 (软删除)。
// DELETE /api/v1/jobs/:job_id
func (h *JobHandler) HandleDeleteJob(ctx context.Context, c *app.RequestContext) {
	jobID := c.Param("job_id")
	if jobID == "" {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "job_id 不能为空"})
		return
	}

	if err := h.storage.MySQL.DeactivateJobPosting(ctx, jobID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(consts.StatusNotFound, utils.H{"error": "职位不存在或已下架"})
			return
		}
		logger.Ctx(ctx).Error().Err(err).Str("job_id", jobID).Msg("下架职位失败")
		c.JSON(consts.StatusInternalServerError, utils.H{"error": "下架职位失败"})
		return
	}

	c.JSON(consts.StatusOK, utils.H{"message": "Job deactivated successfully"})
}

// jobPostingJSON 组装对外的职位JSON
func jobPostingJSON(job *models.JobPosting) utils.H {
	return utils.H{
		"id":                       job.JobID,
		"title":                    job.Title,
		"company":                  job.Company,
		"location":                 job.Location,
		"description":              job.Description,
		"posted_by":                job.PostedByUserID,
		"created_at":               job.CreatedAt.Format(time.RFC3339),
		"updated_at":               job.UpdatedAt.Format(time.RFC3339),
		"pdf_processed":            job.PDFProcessed,
		"ai_enhanced":              job.AIEnhanced,
		"is_active":                job.IsActive,
		"enhanced_description":     job.EnhancedDescription,
		"key_requirements":         models.JSONToStringSlice(job.KeyRequirementsJSON),
		"key_responsibilities":     models.JSONToStringSlice(job.KeyResponsibilitiesJSON),
		"preferred_qualifications": models.JSONToStringSlice(job.PreferredQualificationsJSON),
		"compensation_info":        job.CompensationInfo,
		"additional_details":       job.AdditionalDetails,
		"pdf_summary":              job.PDFSummary,
		"applicants":               models.JSONToApplicants(job.ApplicantsJSON),
	}
}
