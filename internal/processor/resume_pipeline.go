package processor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	"job-match-go/internal/config"
	"job-match-go/internal/logger"
	"job-match-go/internal/parser"
	"job-match-go/internal/storage"
	"job-match-go/internal/storage/models"
	"job-match-go/internal/types"
)

var processorTracer = otel.Tracer("job-match-go/processor")

// Components 聚合简历流水线的功能组件，便于集中管理和测试替换
type Components struct {
	Extractor TextExtractor
	Embedder  TextEmbedder
	Primary   ProfileExtractor // 检索增强抽取器
	Fallback  ProfileExtractor // 正则兜底抽取器
	Storage   *storage.Storage
}

// Settings 纯配置项，不包含任何业务逻辑组件
type Settings struct {
	Pipeline        config.PipelineConfig
	PipelineVersion string
}

// ResumePipeline 简历上传到画像落库的完整流水线
type ResumePipeline struct {
	components *Components
	settings   *Settings
	matcher    *Matcher
	logger     zerolog.Logger
}

// UploadInput 一次简历上传的输入
type UploadInput struct {
	UserID    string
	UserEmail string
	Filename  string
	Data      []byte
}

// UploadOutcome 流水线处理结果
type UploadOutcome struct {
	ResumeID  string
	Profile   *types.SkillProfile
	Duplicate bool // 同一用户重复上传了内容相同的文件
}

// NewResumePipeline 创建简历流水线，核心组件缺失时报错
func NewResumePipeline(comp *Components, set *Settings) (*ResumePipeline, error) {
	if comp == nil || set == nil {
		return nil, fmt.Errorf("components和settings不能为空")
	}
	if comp.Extractor == nil {
		return nil, fmt.Errorf("TextExtractor 不能为空")
	}
	if comp.Primary == nil {
		return nil, fmt.Errorf("主抽取器不能为空")
	}
	if comp.Fallback == nil {
		return nil, fmt.Errorf("兜底抽取器不能为空")
	}
	if comp.Storage == nil || comp.Storage.MySQL == nil {
		return nil, fmt.Errorf("MySQL存储不能为空")
	}

	return &ResumePipeline{
		components: comp,
		settings:   set,
		matcher:    NewMatcher(set.Pipeline.MatchThreshold),
		logger:     logger.Logger.With().Str("component", "resume_pipeline").Logger(),
	}, nil
}

// ProcessResumeUpload 执行完整的简历处理流程:
// 提取文本、归一化、联系方式解析、向量入库、画像抽取、对象存储与MySQL落库。
// 向量入库与事件发布失败只降级记录，不影响请求结果。
func (p *ResumePipeline) ProcessResumeUpload(ctx context.Context, input UploadInput) (*UploadOutcome, error) {
	ctx, span := processorTracer.Start(ctx, "ResumePipeline.ProcessResumeUpload")
	defer span.End()

	span.SetAttributes(
		attribute.String("user.id", input.UserID),
		attribute.String("upload.filename", input.Filename),
		attribute.Int("upload.size", len(input.Data)),
	)

	if input.UserID == "" {
		return nil, fmt.Errorf("userID不能为空")
	}
	if len(input.Data) == 0 {
		return nil, NewEmptyInputError("", "上传内容为空")
	}

	// 同一用户同一时刻只允许一次处理
	lockValue := p.acquireLock(ctx, input.UserID)
	if lockValue != "" {
		defer p.releaseLock(ctx, input.UserID, lockValue)
	}

	resumeID, createdBefore, err := p.resolveResumeID(ctx, input.UserID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, NewDatabaseError(resumeID, err.Error())
	}
	span.SetAttributes(attribute.String("resume.id", resumeID))

	// 1. 文本提取
	rawText, _, err := p.components.Extractor.ExtractText(ctx, input.Data, input.Filename)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, NewExtractionError(resumeID, err.Error())
	}
	if strings.TrimSpace(rawText) == "" {
		return nil, NewEmptyInputError(resumeID, "文档未提取到文本")
	}

	// 2. 归一化与联系方式解析
	normalized := parser.NormalizeText(rawText)
	contact := parser.ExtractContactInfo(normalized, p.settings.Pipeline.ContactScanLines)
	if contact.Email == "" {
		contact.Email = input.UserEmail
	}

	// 3. 原件入对象存储并计算MD5
	var originalPath, md5Hex string
	if p.components.Storage.MinIO != nil {
		originalPath, md5Hex, err = p.components.Storage.MinIO.UploadOriginalFile(
			ctx, resumeID, fileExtension(input.Filename), bytes.NewReader(input.Data), int64(len(input.Data)))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, NewStoreError(resumeID, err.Error())
		}
	}

	// 4. MD5去重: 同一用户重复上传同一文件时直接返回已有画像
	md5Registered := false
	if md5Hex != "" && p.components.Storage.Redis != nil {
		exists, existingResumeID, dedupErr := p.components.Storage.Redis.CheckAndAddFileMD5(ctx, md5Hex, resumeID)
		if dedupErr != nil {
			p.logger.Warn().Err(dedupErr).Str("resume_id", resumeID).Msg("MD5去重检查失败，继续处理")
		} else if exists && existingResumeID == resumeID && createdBefore {
			if existing, loadErr := p.loadExistingProfile(ctx, input.UserID); loadErr == nil {
				span.SetAttributes(attribute.Bool("upload.duplicate", true))
				p.logger.Info().Str("resume_id", resumeID).Msg("检测到重复上传，返回已有画像")
				return &UploadOutcome{ResumeID: resumeID, Profile: existing, Duplicate: true}, nil
			}
			// 画像缺失则照常重建
		} else if !exists {
			md5Registered = true
		}
	}

	// 5. 分块、嵌入并写入向量库 (失败不阻断)
	chunks := parser.ChunkText(normalized, p.settings.Pipeline.ChunkSize, p.settings.Pipeline.ChunkOverlap)
	p.storeChunkVectors(ctx, resumeID, input.UserID, chunks)

	// 6. 画像抽取，主抽取器失败时落到兜底
	profile, extractErr := p.components.Primary.Extract(ctx, normalized)
	if extractErr != nil {
		p.logger.Warn().Err(extractErr).Str("resume_id", resumeID).Msg("检索增强抽取失败，使用兜底抽取")
		profile, err = p.components.Fallback.Extract(ctx, normalized)
		if err != nil {
			p.rollbackMD5(ctx, md5Hex, md5Registered)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, NewExtractionError(resumeID, err.Error())
		}
	}
	profile.Contact = contact
	span.SetAttributes(attribute.String("extraction.method", string(profile.Method)))

	// 7. 归一化文本入对象存储与缓存 (失败不阻断)
	normalizedPath := p.storeNormalizedText(ctx, resumeID, normalized)

	// 8. MySQL落库，同一用户的画像原地覆盖
	resume := p.buildResumeModel(resumeID, input, profile, normalized, md5Hex, originalPath, normalizedPath)
	if err := p.components.Storage.MySQL.SaveResumeForUser(ctx, resume); err != nil {
		p.rollbackMD5(ctx, md5Hex, md5Registered)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, NewDatabaseError(resumeID, err.Error())
	}

	// 9. 发布画像完成事件 (失败不阻断)
	p.publishProfileReady(ctx, resume, profile)

	span.SetStatus(codes.Ok, "")
	return &UploadOutcome{ResumeID: resumeID, Profile: profile}, nil
}

// resolveResumeID 返回用户已有的简历ID，首次上传时生成新ID
func (p *ResumePipeline) resolveResumeID(ctx context.Context, userID string) (string, bool, error) {
	existing, err := p.components.Storage.MySQL.GetResumeByUserID(ctx, userID)
	if err == nil && existing != nil {
		return existing.ResumeID, true, nil
	}
	if err != nil && !isNotFound(err) {
		return "", false, err
	}
	id, err := uuid.NewV4()
	if err != nil {
		return "", false, err
	}
	return id.String(), false, nil
}

func (p *ResumePipeline) acquireLock(ctx context.Context, userID string) string {
	if p.components.Storage.Redis == nil {
		return ""
	}
	lockValue, err := p.components.Storage.Redis.AcquireUploadLock(ctx, userID)
	if err != nil {
		p.logger.Warn().Err(err).Str("user_id", userID).Msg("获取上传锁失败，继续处理")
		return ""
	}
	if lockValue == "" {
		p.logger.Info().Str("user_id", userID).Msg("用户已有处理中的上传，本次不加锁")
	}
	return lockValue
}

func (p *ResumePipeline) releaseLock(ctx context.Context, userID, lockValue string) {
	if _, err := p.components.Storage.Redis.ReleaseUploadLock(ctx, userID, lockValue); err != nil {
		p.logger.Warn().Err(err).Str("user_id", userID).Msg("释放上传锁失败")
	}
}

// storeChunkVectors 嵌入分块并写入Qdrant，任何失败只记录日志
func (p *ResumePipeline) storeChunkVectors(ctx context.Context, resumeID, userID string, chunks []string) {
	if p.components.Embedder == nil || p.components.Storage.Qdrant == nil || len(chunks) == 0 {
		return
	}

	vectors, err := p.components.Embedder.EmbedStrings(ctx, chunks)
	if err != nil {
		p.logger.Warn().Err(err).Str("resume_id", resumeID).Msg("分块嵌入失败，跳过向量入库")
		return
	}
	if len(vectors) != len(chunks) {
		p.logger.Warn().Int("chunks", len(chunks)).Int("vectors", len(vectors)).Msg("嵌入数量不匹配，跳过向量入库")
		return
	}

	textChunks := make([]types.TextChunk, len(chunks))
	for i, c := range chunks {
		textChunks[i] = types.TextChunk{Index: i, Content: c}
	}

	if _, err := p.components.Storage.Qdrant.StoreResumeChunkVectors(ctx, resumeID, userID, textChunks, vectors); err != nil {
		p.logger.Warn().Err(err).Str("resume_id", resumeID).Msg("向量入库失败")
	}
}

func (p *ResumePipeline) storeNormalizedText(ctx context.Context, resumeID, normalized string) string {
	var normalizedPath string
	if p.components.Storage.MinIO != nil {
		path, err := p.components.Storage.MinIO.UploadNormalizedText(ctx, resumeID, normalized)
		if err != nil {
			p.logger.Warn().Err(err).Str("resume_id", resumeID).Msg("归一化文本入对象存储失败")
		} else {
			normalizedPath = path
		}
	}
	if p.components.Storage.Redis != nil {
		if err := p.components.Storage.Redis.CacheNormalizedText(ctx, resumeID, normalized); err != nil {
			p.logger.Warn().Err(err).Str("resume_id", resumeID).Msg("归一化文本写缓存失败")
		}
	}
	return normalizedPath
}

func (p *ResumePipeline) buildResumeModel(resumeID string, input UploadInput, profile *types.SkillProfile, normalized, md5Hex, originalPath, normalizedPath string) *models.Resume {
	technicalSkills, _ := models.StringSliceToJSON(profile.TechnicalSkills)
	softSkills, _ := models.StringSliceToJSON(profile.SoftSkills)
	programmingLanguages, _ := models.StringSliceToJSON(profile.ProgrammingLanguages)
	frameworksTools, _ := models.StringSliceToJSON(profile.FrameworksTools)
	return &models.Resume{
		ResumeID:                 resumeID,
		UserID:                   input.UserID,
		Name:                     profile.Contact.Name,
		Email:                    profile.Contact.Email,
		Phone:                    profile.Contact.Phone,
		TechnicalSkillsJSON:      technicalSkills,
		SoftSkillsJSON:           softSkills,
		ProgrammingLanguagesJSON: programmingLanguages,
		FrameworksToolsJSON:      frameworksTools,
		Certifications:           profile.Certifications,
		Summary:                  profile.Summary,
		ExperienceSummary:        profile.ExperienceSummary,
		EducationSummary:         profile.EducationSummary,
		Projects:                 profile.Projects,
		Industries:               profile.Industries,
		CareerLevel:              profile.CareerLevel,
		RawText:                  normalized,
		RawTextMD5:               md5Hex,
		ExtractionMethod:         string(profile.Method),
		PipelineVersion:          p.settings.PipelineVersion,
		OriginalFilename:         input.Filename,
		OriginalFilePathOSS:      originalPath,
		NormalizedTextPathOSS:    normalizedPath,
		IsActive:                 true,
	}
}

func (p *ResumePipeline) rollbackMD5(ctx context.Context, md5Hex string, registered bool) {
	if !registered || md5Hex == "" || p.components.Storage.Redis == nil {
		return
	}
	if err := p.components.Storage.Redis.RemoveFileMD5(ctx, md5Hex); err != nil {
		p.logger.Warn().Err(err).Str("md5", md5Hex).Msg("回滚MD5登记失败")
	}
}

func (p *ResumePipeline) publishProfileReady(ctx context.Context, resume *models.Resume, profile *types.SkillProfile) {
	if p.components.Storage.RabbitMQ == nil {
		return
	}
	event := &storage.ProfileReadyEvent{
		ResumeID:         resume.ResumeID,
		UserID:           resume.UserID,
		ExtractionMethod: string(profile.Method),
		PipelineVersion:  resume.PipelineVersion,
		SkillCount:       len(profile.TechnicalSkills) + len(profile.ProgrammingLanguages),
		OriginalFilename: resume.OriginalFilename,
		ProcessedAt:      time.Now(),
	}
	if err := p.components.Storage.RabbitMQ.PublishProfileReady(ctx, event); err != nil {
		p.logger.Warn().Err(err).Str("resume_id", resume.ResumeID).Msg("发布画像完成事件失败")
	}
}

// loadExistingProfile 从MySQL还原用户已有画像
func (p *ResumePipeline) loadExistingProfile(ctx context.Context, userID string) (*types.SkillProfile, error) {
	resume, err := p.components.Storage.MySQL.GetResumeByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return ResumeModelToProfile(resume), nil
}

// MatchJobsForUser 用用户画像对所有在招职位打分排序
func (p *ResumePipeline) MatchJobsForUser(ctx context.Context, userID string) ([]types.MatchResult, error) {
	ctx, span := processorTracer.Start(ctx, "ResumePipeline.MatchJobsForUser")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	resume, err := p.components.Storage.MySQL.GetResumeByUserID(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	profile := ResumeModelToProfile(resume)

	jobs, err := p.components.Storage.MySQL.ListActiveJobPostings(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, NewDatabaseError(resume.ResumeID, err.Error())
	}

	candidates := make([]types.JobForMatching, 0, len(jobs))
	for _, job := range jobs {
		candidates = append(candidates, types.JobForMatching{
			JobID:                   job.JobID,
			Title:                   job.Title,
			Company:                 job.Company,
			KeyRequirements:         models.JSONToStringSlice(job.KeyRequirementsJSON),
			PreferredQualifications: models.JSONToStringSlice(job.PreferredQualificationsJSON),
		})
	}

	results := p.matcher.Match(profile, candidates)
	span.SetAttributes(
		attribute.Int("jobs.candidates", len(candidates)),
		attribute.Int("jobs.matched", len(results)),
	)
	span.SetStatus(codes.Ok, "")
	return results, nil
}

// ResumeModelToProfile 把数据库行还原为画像结构
func ResumeModelToProfile(resume *models.Resume) *types.SkillProfile {
	return &types.SkillProfile{
		Contact: types.ContactInfo{
			Name:  resume.Name,
			Email: resume.Email,
			Phone: resume.Phone,
		},
		TechnicalSkills:      models.JSONToStringSlice(resume.TechnicalSkillsJSON),
		SoftSkills:           models.JSONToStringSlice(resume.SoftSkillsJSON),
		ProgrammingLanguages: models.JSONToStringSlice(resume.ProgrammingLanguagesJSON),
		FrameworksTools:      models.JSONToStringSlice(resume.FrameworksToolsJSON),
		Certifications:       resume.Certifications,
		ExperienceSummary:    resume.ExperienceSummary,
		EducationSummary:     resume.EducationSummary,
		Projects:             resume.Projects,
		Industries:           resume.Industries,
		CareerLevel:          resume.CareerLevel,
		Summary:              resume.Summary,
		Method:               types.ExtractionMethod(resume.ExtractionMethod),
	}
}

// fileExtension 返回带点的小写扩展名
func fileExtension(filename string) string {
	idx := strings.LastIndex(filename, ".")
	if idx < 0 {
		return ""
	}
	return strings.ToLower(filename[idx:])
}

// isNotFound 判断是否为记录不存在错误
func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
