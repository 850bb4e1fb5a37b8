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
	"gorm.io/gorm/logger"

	"recruit-agent-go/internal/config"
	"recruit-agent-go/internal/storage/models"
)

var mysqlTracer = otel.Tracer("recruit-agent-go/storage/mysql")

// 语义化的存储层错误，供API层映射为 409/404
var (
	ErrJobAlreadyExists = errors.New("job already exists")
	ErrJobNotFound      = errors.New("job not found")
)

// GormTracingPlugin GORM插件，为数据库操作打OpenTelemetry追踪点
type GormTracingPlugin struct {
	tracer         trace.Tracer
	dbName         string
	disableErrSkip bool
}

func (p *GormTracingPlugin) Name() string {
	return "GormOpenTelemetryPlugin"
}

// Initialize 为各类CRUD操作注册Before/After回调
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

	if err := cb.Raw().Before("gorm:raw").Register("otel:before_raw", p.before("RAW")); err != nil {
		return err
	}
	if err := cb.Raw().After("gorm:raw").Register("otel:after_raw", p.after()); err != nil {
		return err
	}

	return nil
}

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

		newCtx, span := p.tracer.Start(ctx, spanName, opts...)
		db.Statement.Context = context.WithValue(newCtx, "otel-span", span)
	}
}

func (p *GormTracingPlugin) after() func(db *gorm.DB) {
	return func(db *gorm.DB) {
		span, ok := db.Statement.Context.Value("otel-span").(trace.Span)
		if !ok {
			return
		}
		defer span.End()

		span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))

		// ErrRecordNotFound 属于正常业务分支，不作为错误上报
		if db.Error != nil {
			if errors.Is(db.Error, gorm.ErrRecordNotFound) {
				span.SetAttributes(attribute.String("error.type", "record_not_found"))
				span.SetStatus(codes.Ok, "record not found")
			} else {
				span.SetAttributes(attribute.String("error.type", "database_error"))
				span.RecordError(db.Error)
				span.SetStatus(codes.Error, db.Error.Error())
			}
		} else {
			span.SetStatus(codes.Ok, "")
		}
	}
}

// NewGormTracingPlugin 创建GORM追踪插件
func NewGormTracingPlugin(dbName string) *GormTracingPlugin {
	return &GormTracingPlugin{
		tracer:         mysqlTracer,
		dbName:         dbName,
		disableErrSkip: true,
	}
}

// MySQL 提供关系数据库功能
type MySQL struct {
	db  *gorm.DB
	cfg *config.MySQLConfig
}

// NewMySQL 创建MySQL客户端并自动迁移表结构
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
	default:
		logLevel = logger.Info
	}

	gormConfig := &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   logger.Default.LogMode(logLevel),
		PrepareStmt:                              true,
		// 把驱动错误翻译成 gorm.ErrDuplicatedKey 等语义错误
		TranslateError: true,
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

	m := &MySQL{db: db, cfg: cfg}

	if err := db.Use(NewGormTracingPlugin(cfg.Database)); err != nil {
		return nil, fmt.Errorf("注册追踪插件失败: %w", err)
	}

	if err := m.autoMigrateSchema(); err != nil {
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			_ = sqlDB.Close()
		}
		return nil, fmt.Errorf("自动迁移数据库结构失败: %w", err)
	}

	log.Println("成功连接到MySQL并自动迁移数据库结构")
	return m, nil
}

// autoMigrateSchema 迁移期间静默SQL日志
func (m *MySQL) autoMigrateSchema() error {
	silentLogger := logger.New(
		log.New(log.Writer(), "", log.LstdFlags),
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Silent,
			IgnoreRecordNotFoundError: true,
		},
	)

	silentDB := m.db.Session(&gorm.Session{Logger: silentLogger})

	err := silentDB.AutoMigrate(
		&models.JobPost{},
		&models.Application{},
		&models.Interview{},
		&models.OutboxMessage{},
	)
	if err != nil {
		return fmt.Errorf("GORM自动迁移失败: %w", err)
	}
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

// CreateJobPost 创建岗位，主键冲突返回 ErrJobAlreadyExists
func (m *MySQL) CreateJobPost(ctx context.Context, job *models.JobPost) error {
	ctx, span := mysqlTracer.Start(ctx, "MySQL.CreateJobPost",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("job.id", job.JobID)))
	defer span.End()

	err := m.db.WithContext(ctx).Create(job).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			span.SetAttributes(attribute.Bool("job.duplicate", true))
			span.SetStatus(codes.Ok, "duplicate job")
			return ErrJobAlreadyExists
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("创建岗位失败: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// GetJobPost 按ID获取岗位，不存在时返回 ErrJobNotFound
func (m *MySQL) GetJobPost(ctx context.Context, jobID string) (*models.JobPost, error) {
	var job models.JobPost
	err := m.db.WithContext(ctx).Where("job_id = ?", jobID).First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("查询岗位失败: %w", err)
	}
	return &job, nil
}

// ListJobPosts 分页列出岗位，status为空时不过滤
func (m *MySQL) ListJobPosts(ctx context.Context, status string, limit, offset int) ([]models.JobPost, int64, error) {
	if limit <= 0 {
		limit = 20
	}

	query := m.db.WithContext(ctx).Model(&models.JobPost{})
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("统计岗位数量失败: %w", err)
	}

	var jobs []models.JobPost
	if err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&jobs).Error; err != nil {
		return nil, 0, fmt.Errorf("查询岗位列表失败: %w", err)
	}
	return jobs, total, nil
}

// UpdateJobPost 更新岗位（基于主键覆盖）
func (m *MySQL) UpdateJobPost(ctx context.Context, job *models.JobPost) error {
	return m.db.WithContext(ctx).Save(job).Error
}

// CreateApplication 创建投递记录
func (m *MySQL) CreateApplication(ctx context.Context, app *models.Application) error {
	return m.db.WithContext(ctx).Create(app).Error
}

// CreateApplicationWithOutbox 在同一事务中落盘投递记录与发件箱事件
func (m *MySQL) CreateApplicationWithOutbox(ctx context.Context, app *models.Application, event *models.OutboxMessage) error {
	ctx, span := mysqlTracer.Start(ctx, "MySQL.CreateApplicationWithOutbox",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("application.id", app.ApplicationID),
			attribute.String("event.type", event.EventType),
		))
	defer span.End()

	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(app).Error; err != nil {
			return fmt.Errorf("创建投递记录失败: %w", err)
		}
		if err := tx.Create(event).Error; err != nil {
			return fmt.Errorf("写入发件箱失败: %w", err)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// GetApplication 按ID获取投递记录
func (m *MySQL) GetApplication(ctx context.Context, applicationID string) (*models.Application, error) {
	var app models.Application
	err := m.db.WithContext(ctx).Where("application_id = ?", applicationID).First(&app).Error
	if err != nil {
		return nil, err
	}
	return &app, nil
}

// ListApplicationsByJob 列出某岗位的投递，按相似度降序
func (m *MySQL) ListApplicationsByJob(ctx context.Context, jobID string, limit, offset int) ([]models.Application, int64, error) {
	if limit <= 0 {
		limit = 20
	}

	query := m.db.WithContext(ctx).Model(&models.Application{}).Where("job_id = ?", jobID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("统计投递数量失败: %w", err)
	}

	var apps []models.Application
	if err := query.Order("similarity_score DESC").Limit(limit).Offset(offset).Find(&apps).Error; err != nil {
		return nil, 0, fmt.Errorf("查询投递列表失败: %w", err)
	}
	return apps, total, nil
}

// UpdateApplicationScore 回写相似度得分，面试链接只在首次发放时更新
func (m *MySQL) UpdateApplicationScore(ctx context.Context, applicationID string, score float64, interviewLink *string) error {
	updates := map[string]interface{}{
		"similarity_score": score,
	}
	if interviewLink != nil && *interviewLink != "" {
		updates["interview_link"] = *interviewLink
	}
	return m.db.WithContext(ctx).Model(&models.Application{}).
		Where("application_id = ?", applicationID).Updates(updates).Error
}

// UpdateApplicationStatus 更新投递状态
func (m *MySQL) UpdateApplicationStatus(ctx context.Context, applicationID string, status string) error {
	return m.db.WithContext(ctx).Model(&models.Application{}).
		Where("application_id = ?", applicationID).Update("status", status).Error
}

// CreateInterview 创建面试记录，链接已存在时幂等返回
func (m *MySQL) CreateInterview(ctx context.Context, interview *models.Interview) error {
	err := m.db.WithContext(ctx).Create(interview).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil
	}
	return err
}

// GetInterviewByLink 按链接取面试记录
func (m *MySQL) GetInterviewByLink(ctx context.Context, link string) (*models.Interview, error) {
	var interview models.Interview
	err := m.db.WithContext(ctx).Where("interview_link = ?", link).First(&interview).Error
	if err != nil {
		return nil, err
	}
	return &interview, nil
}

// UpdateInterviewEvaluation 回写整场面试的终评结果
func (m *MySQL) UpdateInterviewEvaluation(ctx context.Context, link string, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	return m.db.WithContext(ctx).Model(&models.Interview{}).
		Where("interview_link = ?", link).Updates(updates).Error
}
