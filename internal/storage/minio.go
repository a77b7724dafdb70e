package storage

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/lifecycle"

	"job-match-go/internal/config"
	"job-match-go/internal/logger"
)

// ObjectStorage 对象存储接口，覆盖简历原件与归一化文本的读写
type ObjectStorage interface {
	UploadFile(ctx context.Context, bucket, objectName string, reader io.Reader, fileSize int64, contentType string) (string, error)
	DownloadFile(ctx context.Context, bucket, objectName string) ([]byte, error)
	GetPresignedURL(ctx context.Context, bucket, objectName string, expiry time.Duration) (string, error)
	DeleteFile(ctx context.Context, bucket, objectName string) error

	// 简历文件相关操作
	UploadOriginalFile(ctx context.Context, resumeID, fileExt string, reader io.Reader, fileSize int64) (objectKey string, md5Hex string, err error)
	UploadNormalizedText(ctx context.Context, resumeID string, text string) (string, error)
	GetOriginalFile(ctx context.Context, objectKey string) ([]byte, error)
	GetNormalizedText(ctx context.Context, objectKey string) (string, error)

	// 职位PDF相关操作
	UploadJobDocument(ctx context.Context, jobID string, reader io.Reader, fileSize int64) (string, error)
	GetJobDocument(ctx context.Context, objectKey string) ([]byte, error)
}

var _ ObjectStorage = (*MinIO)(nil)

// MinIO 提供对象存储功能
type MinIO struct {
	client               *minio.Client
	cfg                  *config.MinIOConfig
	originalsBucket      string
	normalizedTextBucket string
}

// NewMinIO 创建MinIO客户端并确保存储桶就绪
func NewMinIO(cfg *config.MinIOConfig) (*MinIO, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MinIO配置不能为空")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("创建MinIO客户端失败: %w", err)
	}

	originalsBucket := cfg.OriginalsBucket
	if originalsBucket == "" {
		originalsBucket = "resume-originals"
	}
	normalizedTextBucket := cfg.NormalizedTextBucket
	if normalizedTextBucket == "" {
		normalizedTextBucket = "normalized-text"
	}

	m := &MinIO{
		client:               client,
		cfg:                  cfg,
		originalsBucket:      originalsBucket,
		normalizedTextBucket: normalizedTextBucket,
	}

	if err := m.ensureBucketExists(originalsBucket, cfg.Location); err != nil {
		return nil, fmt.Errorf("确保原始文档存储桶 %s 存在失败: %w", originalsBucket, err)
	}
	if err := m.ensureBucketExists(normalizedTextBucket, cfg.Location); err != nil {
		return nil, fmt.Errorf("确保归一化文本存储桶 %s 存在失败: %w", normalizedTextBucket, err)
	}

	if cfg.OriginalFileExpireDays > 0 || cfg.NormalizedTextExpireDays > 0 {
		if err := m.setupLifecycleRules(context.Background()); err != nil {
			// 生命周期规则失败不影响可用性
			logger.Warn().Err(err).Msg("设置MinIO生命周期规则失败")
		}
	}

	logger.Info().
		Str("endpoint", cfg.Endpoint).
		Str("originals_bucket", originalsBucket).
		Str("normalized_text_bucket", normalizedTextBucket).
		Msg("MinIO客户端初始化完成")
	return m, nil
}

func (m *MinIO) ensureBucketExists(bucketName, location string) error {
	exists, err := m.client.BucketExists(context.Background(), bucketName)
	if err != nil {
		return fmt.Errorf("检查存储桶 %s 是否存在时出错: %w", bucketName, err)
	}
	if exists {
		return nil
	}
	if err := m.client.MakeBucket(context.Background(), bucketName, minio.MakeBucketOptions{Region: location}); err != nil {
		return fmt.Errorf("创建存储桶 %s 失败: %w", bucketName, err)
	}
	logger.Info().Str("bucket", bucketName).Msg("存储桶已创建")
	return nil
}

func (m *MinIO) setupLifecycleRules(ctx context.Context) error {
	if m.cfg.OriginalFileExpireDays > 0 {
		if err := m.setupBucketLifecycle(ctx, m.originalsBucket, "expire-originals", m.cfg.OriginalFileExpireDays); err != nil {
			return fmt.Errorf("为原始文档存储桶 %s 设置生命周期失败: %w", m.originalsBucket, err)
		}
	}
	if m.cfg.NormalizedTextExpireDays > 0 {
		if err := m.setupBucketLifecycle(ctx, m.normalizedTextBucket, "expire-normalized-text", m.cfg.NormalizedTextExpireDays); err != nil {
			return fmt.Errorf("为归一化文本存储桶 %s 设置生命周期失败: %w", m.normalizedTextBucket, err)
		}
	}
	return nil
}

func (m *MinIO) setupBucketLifecycle(ctx context.Context, bucketName, ruleID string, expiryDays int) error {
	lc := lifecycle.NewConfiguration()
	lc.Rules = []lifecycle.Rule{
		{
			ID:     ruleID,
			Status: "Enabled",
			Expiration: lifecycle.Expiration{
				Days: lifecycle.ExpirationDays(expiryDays),
			},
		},
	}
	return m.client.SetBucketLifecycle(ctx, bucketName, lc)
}

// UploadFile 上传对象并返回对象键
func (m *MinIO) UploadFile(ctx context.Context, bucket, objectName string, reader io.Reader, fileSize int64, contentType string) (string, error) {
	_, err := m.client.PutObject(ctx, bucket, objectName, reader, fileSize, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("上传对象 %s/%s 失败: %w", bucket, objectName, err)
	}
	return objectName, nil
}

// DownloadFile 下载对象内容
func (m *MinIO) DownloadFile(ctx context.Context, bucket, objectName string) ([]byte, error) {
	obj, err := m.client.GetObject(ctx, bucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("获取对象 %s/%s 失败: %w", bucket, objectName, err)
	}
	defer obj.Close()

	// Stat确认对象真实存在，GetObject本身是惰性的
	if _, err := obj.Stat(); err != nil {
		return nil, fmt.Errorf("获取对象 %s/%s 状态失败: %w", bucket, objectName, err)
	}

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("读取对象 %s/%s 数据失败: %w", bucket, objectName, err)
	}
	return data, nil
}

// UploadOriginalFile 流式上传简历原件并同时计算MD5。
// 返回对象键和内容MD5(十六进制)。
func (m *MinIO) UploadOriginalFile(ctx context.Context, resumeID, fileExt string, reader io.Reader, fileSize int64) (string, string, error) {
	objectName := fmt.Sprintf("resume/%s/original%s", resumeID, fileExt)
	contentType := getContentType(fileExt)

	md5Hash := md5.New()
	teeReader := io.TeeReader(reader, md5Hash)

	info, err := m.client.PutObject(ctx, m.originalsBucket, objectName, teeReader,
		fileSize, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", "", fmt.Errorf("流式上传简历原件失败: %w", err)
	}

	md5Hex := hex.EncodeToString(md5Hash.Sum(nil))
	logger.Debug().
		Str("object", objectName).
		Str("etag", info.ETag).
		Int64("size", info.Size).
		Str("md5", md5Hex).
		Msg("简历原件已上传")
	return objectName, md5Hex, nil
}

// UploadNormalizedText 上传归一化后的简历文本
func (m *MinIO) UploadNormalizedText(ctx context.Context, resumeID string, text string) (string, error) {
	objectName := fmt.Sprintf("resume/%s/normalized.txt", resumeID)
	_, err := m.client.PutObject(ctx, m.normalizedTextBucket, objectName, strings.NewReader(text),
		int64(len(text)), minio.PutObjectOptions{ContentType: "text/plain; charset=utf-8"})
	if err != nil {
		return "", fmt.Errorf("上传归一化文本 %s 到存储桶 %s 失败: %w", objectName, m.normalizedTextBucket, err)
	}
	return objectName, nil
}

// GetOriginalFile 获取简历原件
func (m *MinIO) GetOriginalFile(ctx context.Context, objectKey string) ([]byte, error) {
	return m.DownloadFile(ctx, m.originalsBucket, objectKey)
}

// GetNormalizedText 获取归一化文本
func (m *MinIO) GetNormalizedText(ctx context.Context, objectKey string) (string, error) {
	data, err := m.DownloadFile(ctx, m.normalizedTextBucket, objectKey)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// UploadJobDocument 上传职位描述PDF
func (m *MinIO) UploadJobDocument(ctx context.Context, jobID string, reader io.Reader, fileSize int64) (string, error) {
	objectName := fmt.Sprintf("job/%s/original.pdf", jobID)
	_, err := m.client.PutObject(ctx, m.originalsBucket, objectName, reader, fileSize,
		minio.PutObjectOptions{ContentType: "application/pdf"})
	if err != nil {
		return "", fmt.Errorf("上传职位文档 %s 失败: %w", objectName, err)
	}
	return objectName, nil
}

// GetJobDocument 获取职位描述PDF
func (m *MinIO) GetJobDocument(ctx context.Context, objectKey string) ([]byte, error) {
	return m.DownloadFile(ctx, m.originalsBucket, objectKey)
}

// GetPresignedURL 生成对象的预签名下载链接
func (m *MinIO) GetPresignedURL(ctx context.Context, bucket, objectName string, expiry time.Duration) (string, error) {
	presignedURL, err := m.client.PresignedGetObject(ctx, bucket, objectName, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("生成MinIO预签名URL失败: %w", err)
	}
	return presignedURL.String(), nil
}

// DeleteFile 删除对象
func (m *MinIO) DeleteFile(ctx context.Context, bucket, objectName string) error {
	if err := m.client.RemoveObject(ctx, bucket, objectName, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("删除对象 %s/%s 失败: %w", bucket, objectName, err)
	}
	return nil
}

// uploadFileFromBytes 从字节切片上传对象
func (m *MinIO) uploadFileFromBytes(ctx context.Context, bucket, objectName string, data []byte, contentType string) (string, error) {
	return m.UploadFile(ctx, bucket, objectName, bytes.NewReader(data), int64(len(data)), contentType)
}

func getContentType(ext string) string {
	ext = strings.ToLower(ext)
	switch ext {
	case ".pdf":
		return "application/pdf"
	case ".doc":
		return "application/msword"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".txt":
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}
