package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"job-match-go/internal/config"
	"job-match-go/internal/storage/models"
)

var mysqlTracer = otel.Tracer("job-match-go/storage/mysql")

// GormTracingPlugin 是一个GORM插件，用于向OpenTelemetry中添加数据库操作的追踪点
type GormTracingPlugin struct {
	tracer         trace.Tracer
	dbName         string
	dbSystem       string
	disableErrSkip bool
}

// Name 返回插件名称
func (p *GormTracingPlugin) Name() string {
	return "GormOpenTelemetryPlugin"
}

// Initialize 注册GORM回调以启用追踪
func (p *GormTracingPlugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()

	if err := cb.Create().Before("gorm:create").Register("otel:before_create", p.before("CREATE")); err != nil {
		return err
	}
	if err := cb.Create().After("gorm:create").Register("otel:after_create", p.after()); err != nil {
		return err
	}

	if err := cb.Query().Before("gorm:query").Register("otel:before_query", p.before("SELECT")); err != nil {
		return err
	}
	if err := cb.Query().After("gorm:query").Register("otel:after_query", p.after()); err != nil {
		return err
	}

	if err := cb.Update().Before("gorm:update").Register("otel:before_update", p.before("UPDATE")); err != nil {
		return err
	}
	if err := cb.Update().After("gorm:update").Register("otel:after_update", p.after()); err != nil {
		return err
	}

	if err := cb.Delete().Before("gorm:delete").Register("otel:before_delete", p.before("DELETE")); err != nil {
		return err
	}
	if err := cb.Delete().After("gorm:delete").Register("otel:after_delete", p.after()); err != nil {
		return err
	}

	if err := cb.Row().Before("gorm:row").Register("otel:before_row", p.before("ROW")); err != nil {
		return err
	}
	if err := cb.Row().After("gorm:row").Register("otel:after_row", p.after()); err != nil {
		return err
	}

	if err := cb.Raw().Before("gorm:raw").Register("otel:before_raw", p.before("RAW")); err != nil {
		return err
	}
	if err := cb.Raw().After("gorm:raw").Register("otel:after_raw", p.after()); err != nil {
		return err
	}

	return nil
}

// before 返回在GORM操作之前执行的回调函数
func (p *GormTracingPlugin) before(operation string) func(db *gorm.DB) {
	return func(db *gorm.DB) {
		if p.disableErrSkip && db.Statement.SkipHooks {
			return
		}

		ctx := db.Statement.Context
		if ctx == nil {
			ctx = context.Background()
		}

		tableName := db.Statement.Table
		if tableName == "" {
			tableName = "unknown"
		}

		spanName := fmt.Sprintf("%s %s", operation, tableName)
		opts := []trace.SpanStartOption{
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				semconv.DBSystemMySQL,
				attribute.String("db.name", p.dbName),
				attribute.String("db.operation", operation),
				attribute.String("db.sql.table", tableName),
			),
		}

		sqlStatement := db.Statement.SQL.String()
		if sqlStatement != "" {
			opts = append(opts, trace.WithAttributes(
				attribute.String("db.statement", sqlStatement),
			))
		}

		newCtx, span := p.tracer.Start(ctx, spanName, opts...)

		// 把span放进Statement上下文，供after回调取用
		db.Statement.Context = context.WithValue(newCtx, "otel-span", span)
	}
}

// after 返回在GORM操作之后执行的回调函数
func (p *GormTracingPlugin) after() func(db *gorm.DB) {
	return func(db *gorm.DB) {
		span, ok := db.Statement.Context.Value("otel-span").(trace.Span)
		if !ok {
			return
		}
		defer span.End()

		if db.Statement.RowsAffected > 0 {
			span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))
		} else {
			span.SetAttributes(attribute.Int64("db.rows_affected", 0))
		}

		// ErrRecordNotFound 是业务正常分支，不作为span错误上报
		if db.Error != nil {
			if db.Error == gorm.ErrRecordNotFound {
				span.SetAttributes(attribute.String("error.type", "record_not_found"))
				span.SetStatus(codes.Ok, "record not found")
			} else {
				span.SetAttributes(attribute.String("error.type", "database_error"))
				span.SetAttributes(attribute.String("error.message", db.Error.Error()))
				span.RecordError(db.Error)
				span.SetStatus(codes.Error, db.Error.Error())
			}
		} else {
			span.SetStatus(codes.Ok, "")
		}
	}
}

// NewGormTracingPlugin 创建一个新的GORM追踪插件
func NewGormTracingPlugin(dbName string) *GormTracingPlugin {
	return &GormTracingPlugin{
		tracer:         mysqlTracer,
		dbName:         dbName,
		dbSystem:       "mysql",
		disableErrSkip: true,
	}
}

// WithDisableErrSkip 设置是否禁用错误跳过
func (p *GormTracingPlugin) WithDisableErrSkip(disable bool) *GormTracingPlugin {
	p.disableErrSkip = disable
	return p
}

// MySQL 提供关系数据库功能
type MySQL struct {
	db  *gorm.DB
	cfg *config.MySQLConfig
}

// NewMySQL 创建MySQL客户端
func NewMySQL(cfg *config.MySQLConfig) (*MySQL, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MySQL配置不能为空")
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local&timeout=%ds&readTimeout=%ds&writeTimeout=%ds",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database,
		cfg.ConnectTimeoutSeconds, cfg.ReadTimeoutSeconds, cfg.WriteTimeoutSeconds)

	var logLevel logger.LogLevel
	switch cfg.LogLevel {
	case 1:
		logLevel = logger.Silent
	case 2:
		logLevel = logger.Error
	case 3:
		logLevel = logger.Warn
	case 4:
		logLevel = logger.Info
	default:
		logLevel = logger.Info
	}

	gormConfig := &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   logger.Default.LogMode(logLevel),
		PrepareStmt:                              true,
		NowFunc: func() time.Time {
			return time.Now().Local()
		},
	}

	db, err := gorm.Open(mysql.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("连接MySQL失败: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}

	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTimeMinutes) * time.Minute)

	m := &MySQL{
		db:  db,
		cfg: cfg,
	}

	tracingPlugin := NewGormTracingPlugin(cfg.Database).WithDisableErrSkip(true)
	if err := db.Use(tracingPlugin); err != nil {
		return nil, fmt.Errorf("注册追踪插件失败: %w", err)
	}

	if err := m.autoMigrateSchema(); err != nil {
		sqlDB, _ := db.DB()
		if sqlDB != nil {
			sqlDB.Close()
		}
		return nil, fmt.Errorf("自动迁移数据库结构失败: %w", err)
	}

	log.Println("成功连接到MySQL并自动迁移数据库结构")
	return m, nil
}

// autoMigrateSchema 使用GORM自动迁移数据库表结构
func (m *MySQL) autoMigrateSchema() error {
	currentLogger := m.db.Logger

	// 迁移阶段关闭SQL日志打印
	silentLogger := logger.New(
		log.New(log.Writer(), "", log.LstdFlags),
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Silent,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	silentDB := m.db.Session(&gorm.Session{Logger: silentLogger})

	err := silentDB.AutoMigrate(
		&models.User{},
		&models.Resume{},
		&models.JobPosting{},
		&models.Application{},
	)

	m.db = m.db.Session(&gorm.Session{Logger: currentLogger})

	if err != nil {
		return fmt.Errorf("GORM自动迁移失败: %w", err)
	}
	log.Println("GORM数据库结构迁移成功")
	return nil
}

// DB 返回GORM数据库连接实例
func (m *MySQL) DB() *gorm.DB {
	return m.db
}

// Close 关闭数据库连接
func (m *MySQL) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}
	return sqlDB.Close()
}

//
// 用户
//

// UpsertUser 按主键创建或更新用户
func (m *MySQL) UpsertUser(ctx context.Context, user *models.User) error {
	return m.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"email", "display_name", "role"}),
	}).Create(user).Error
}

// GetUserByID 通过 UserID 获取用户记录
func (m *MySQL) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	if err := m.db.WithContext(ctx).Where("user_id = ?", userID).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

//
// 简历
//

// SaveResumeForUser 保存用户的简历档案，每个用户只保留一份。
// 用户已有简历时沿用原ResumeID原地覆盖，否则创建新记录并回填用户的ResumeID。
// 在事务中执行以保证用户表与简历表的一致。
func (m *MySQL) SaveResumeForUser(ctx context.Context, resume *models.Resume) error {
	if resume == nil || resume.UserID == "" {
		return fmt.Errorf("简历记录缺少用户ID")
	}

	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Resume
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", resume.UserID).
			First(&existing).Error

		switch {
		case err == nil:
			resume.ResumeID = existing.ResumeID
			resume.CreatedAt = existing.CreatedAt
			if err := tx.Save(resume).Error; err != nil {
				return fmt.Errorf("覆盖简历失败: %w", err)
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := tx.Create(resume).Error; err != nil {
				return fmt.Errorf("创建简历失败: %w", err)
			}
		default:
			return fmt.Errorf("查询既有简历失败: %w", err)
		}

		return tx.Model(&models.User{}).
			Where("user_id = ?", resume.UserID).
			Update("resume_id", resume.ResumeID).Error
	})
}

// GetResumeByUserID 获取用户的简历记录
func (m *MySQL) GetResumeByUserID(ctx context.Context, userID string) (*models.Resume, error) {
	var resume models.Resume
	if err := m.db.WithContext(ctx).Where("user_id = ?", userID).First(&resume).Error; err != nil {
		return nil, err
	}
	return &resume, nil
}

// GetResumeByID 通过 ResumeID 获取简历记录
func (m *MySQL) GetResumeByID(ctx context.Context, resumeID string) (*models.Resume, error) {
	var resume models.Resume
	if err := m.db.WithContext(ctx).Where("resume_id = ?", resumeID).First(&resume).Error; err != nil {
		return nil, err
	}
	return &resume, nil
}

// ListResumesBatch 按主键游标分页列出有效简历，供离线重建任务扫描全表。
// afterResumeID为空时从头开始。
func (m *MySQL) ListResumesBatch(ctx context.Context, afterResumeID string, limit int) ([]models.Resume, error) {
	if limit <= 0 {
		limit = 100
	}
	query := m.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("resume_id ASC").
		Limit(limit)
	if afterResumeID != "" {
		query = query.Where("resume_id > ?", afterResumeID)
	}
	var resumes []models.Resume
	if err := query.Find(&resumes).Error; err != nil {
		return nil, err
	}
	return resumes, nil
}

//
// 职位
//

// CreateJobPosting 创建职位记录
func (m *MySQL) CreateJobPosting(ctx context.Context, job *models.JobPosting) error {
	return m.db.WithContext(ctx).Create(job).Error
}

// GetJobPostingByID 获取职位记录，无论是否已下线
func (m *MySQL) GetJobPostingByID(ctx context.Context, jobID string) (*models.JobPosting, error) {
	var job models.JobPosting
	if err := m.db.WithContext(ctx).Where("job_id = ?", jobID).First(&job).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

// ListActiveJobPostings 按创建时间倒序列出所有在线职位
func (m *MySQL) ListActiveJobPostings(ctx context.Context) ([]models.JobPosting, error) {
	var jobs []models.JobPosting
	if err := m.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("created_at DESC").
		Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

// ListJobPostingsByPoster 列出某用户发布的所有在线职位
func (m *MySQL) ListJobPostingsByPoster(ctx context.Context, userID string) ([]models.JobPosting, error) {
	var jobs []models.JobPosting
	if err := m.db.WithContext(ctx).
		Where("posted_by_user_id = ? AND is_active = ?", userID, true).
		Order("created_at DESC").
		Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

// UpdateJobPostingFields 更新职位的部分字段
func (m *MySQL) UpdateJobPostingFields(ctx context.Context, jobID string, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	return m.db.WithContext(ctx).Model(&models.JobPosting{}).
		Where("job_id = ?", jobID).
		Updates(updates).Error
}

// DeactivateJobPosting 软删除职位，记录保留
func (m *MySQL) DeactivateJobPosting(ctx context.Context, jobID string) error {
	result := m.db.WithContext(ctx).Model(&models.JobPosting{}).
		Where("job_id = ? AND is_active = ?", jobID, true).
		Update("is_active", false)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

//
// 申请
//

// CreateApplicationAndAppendApplicant 创建申请并把申请人追加到职位的申请人列表。
// 申请人列表只追加不回收; 两处写入在同一事务中完成。
func (m *MySQL) CreateApplicationAndAppendApplicant(ctx context.Context, application *models.Application) error {
	ctx, span := mysqlTracer.Start(ctx, "MySQL.CreateApplicationAndAppendApplicant",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("job.id", application.JobID),
		),
	)
	defer span.End()

	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var job models.JobPosting
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("job_id = ? AND is_active = ?", application.JobID, true).
			First(&job).Error; err != nil {
			return err
		}

		if err := tx.Create(application).Error; err != nil {
			return err
		}

		applicants := models.JSONToApplicants(job.ApplicantsJSON)
		applicants = append(applicants, models.JobApplicant{
			ApplicantID:   application.ApplicantID,
			ApplicationID: application.ApplicationID,
			Status:        application.Status,
			AppliedAt:     application.AppliedAt,
		})
		applicantsJSON, err := models.ApplicantsToJSON(applicants)
		if err != nil {
			return fmt.Errorf("序列化申请人列表失败: %w", err)
		}

		return tx.Model(&models.JobPosting{}).
			Where("job_id = ?", application.JobID).
			Update("applicants_json", applicantsJSON).Error
	})

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

// ListApplicationsByApplicant 列出某用户提交的所有申请，按申请时间倒序
func (m *MySQL) ListApplicationsByApplicant(ctx context.Context, applicantID string) ([]models.Application, error) {
	var applications []models.Application
	if err := m.db.WithContext(ctx).
		Where("applicant_id = ?", applicantID).
		Order("applied_at DESC").
		Find(&applications).Error; err != nil {
		return nil, err
	}
	return applications, nil
}

// ListApplicationsByJob 列出某职位收到的所有申请，按申请时间倒序
func (m *MySQL) ListApplicationsByJob(ctx context.Context, jobID string) ([]models.Application, error) {
	var applications []models.Application
	if err := m.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("applied_at DESC").
		Find(&applications).Error; err != nil {
		return nil, err
	}
	return applications, nil
}

// HasApplied 判断用户是否已申请过某职位
func (m *MySQL) HasApplied(ctx context.Context, jobID, applicantID string) (bool, error) {
	var count int64
	if err := m.db.WithContext(ctx).Model(&models.Application{}).
		Where("job_id = ? AND applicant_id = ?", jobID, applicantID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
