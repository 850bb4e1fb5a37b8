package storage

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/lifecycle"

	"recruit-agent-go/internal/config"
)

// ObjectStorage 对象存储接口
type ObjectStorage interface {
	// UploadCVFile 上传原始简历文件，同时流式计算MD5
	UploadCVFile(ctx context.Context, applicationID, fileExt string, reader io.Reader, fileSize int64) (string, string, error)

	// GetCVFile 下载原始简历文件
	GetCVFile(ctx context.Context, objectKey string) ([]byte, error)

	// GetPresignedURL 获取下载用预签名URL
	GetPresignedURL(ctx context.Context, objectKey string, expiry time.Duration) (string, error)

	// DeleteCVFile 删除简历文件
	DeleteCVFile(ctx context.Context, objectKey string) error
}

var _ ObjectStorage = (*MinIO)(nil)

// MinIO 提供对象存储功能，存放投递的原始简历文件
type MinIO struct {
	client   *minio.Client
	cfg      *config.MinIOConfig
	cvBucket string
	logger   *log.Logger
}

// NewMinIO 创建MinIO客户端
func NewMinIO(cfg *config.MinIOConfig, logger *log.Logger) (*MinIO, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MinIO配置不能为空")
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	logger.Printf("[MinIO] Initializing client: endpoint=%s, cvBucket=%s", cfg.Endpoint, cfg.CVBucket)

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		logger.Printf("[MinIO] Initialization failed: %v", err)
		return nil, fmt.Errorf("创建MinIO客户端失败: %w", err)
	}

	cvBucket := cfg.CVBucket
	if cvBucket == "" {
		cvBucket = "cv-originals"
	}

	m := &MinIO{
		client:   client,
		cfg:      cfg,
		cvBucket: cvBucket,
		logger:   logger,
	}

	if err := m.ensureBucketExists(cvBucket, cfg.Location); err != nil {
		logger.Printf("[MinIO] Failed to ensure bucket %s exists: %v", cvBucket, err)
		return nil, fmt.Errorf("确保简历存储桶 %s 存在失败: %w", cvBucket, err)
	}

	if cfg.CVFileExpireDays > 0 {
		if err := m.setupBucketLifecycle(context.Background(), cvBucket, "expire-cv-originals", cfg.CVFileExpireDays); err != nil {
			logger.Printf("[MinIO] Warning: failed to set up lifecycle rule: %v", err)
		}
	}

	logger.Printf("[MinIO] Client initialized successfully for endpoint: %s", cfg.Endpoint)
	return m, nil
}

func (m *MinIO) ensureBucketExists(bucketName, location string) error {
	exists, err := m.client.BucketExists(context.Background(), bucketName)
	if err != nil {
		return fmt.Errorf("检查存储桶 %s 是否存在时出错: %w", bucketName, err)
	}
	if !exists {
		m.logger.Printf("[MinIO] Bucket %s does not exist, creating...", bucketName)
		err = m.client.MakeBucket(context.Background(), bucketName, minio.MakeBucketOptions{Region: location})
		if err != nil {
			return fmt.Errorf("创建存储桶 %s 失败: %w", bucketName, err)
		}
	}
	return nil
}

func (m *MinIO) setupBucketLifecycle(ctx context.Context, bucketName, ruleID string, expiryDays int) error {
	m.logger.Printf("[MinIO] Setting lifecycle rule for bucket %s: ID=%s, ExpiryDays=%d", bucketName, ruleID, expiryDays)
	lcConfig := lifecycle.NewConfiguration()
	lcConfig.Rules = []lifecycle.Rule{
		{
			ID:     ruleID,
			Status: "Enabled",
			Expiration: lifecycle.Expiration{
				Days: lifecycle.ExpirationDays(expiryDays),
			},
		},
	}
	return m.client.SetBucketLifecycle(ctx, bucketName, lcConfig)
}

// UploadCVFile 流式上传简历文件并同时计算MD5。
// 对象键格式: cv/{applicationID}/original{ext}
func (m *MinIO) UploadCVFile(ctx context.Context, applicationID, fileExt string, reader io.Reader, fileSize int64) (string, string, error) {
	objectKey := fmt.Sprintf("cv/%s/original%s", applicationID, fileExt)
	contentType := contentTypeForExt(fileExt)

	md5Hash := md5.New()
	teeReader := io.TeeReader(reader, md5Hash)

	info, err := m.client.PutObject(ctx, m.cvBucket, objectKey, teeReader,
		fileSize, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", "", fmt.Errorf("上传简历文件到MinIO失败: %w", err)
	}

	md5Hex := hex.EncodeToString(md5Hash.Sum(nil))
	m.logger.Printf("[MinIO] Uploaded %s, ETag: %s, Size: %d, MD5: %s", objectKey, info.ETag, info.Size, md5Hex)

	return objectKey, md5Hex, nil
}

// UploadCVBytes 从字节上传简历文件（消费端重放等场景）
func (m *MinIO) UploadCVBytes(ctx context.Context, applicationID, fileExt string, data []byte) (string, string, error) {
	return m.UploadCVFile(ctx, applicationID, fileExt, bytes.NewReader(data), int64(len(data)))
}

// GetCVFile 下载简历文件
func (m *MinIO) GetCVFile(ctx context.Context, objectKey string) ([]byte, error) {
	obj, err := m.client.GetObject(ctx, m.cvBucket, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("获取对象 %s/%s 失败: %w", m.cvBucket, objectKey, err)
	}
	defer obj.Close()

	// Stat 能区分对象不存在与读取失败
	stat, err := obj.Stat()
	if err != nil {
		return nil, fmt.Errorf("获取对象 %s/%s 状态失败: %w", m.cvBucket, objectKey, err)
	}

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("读取对象 %s/%s 数据失败: %w", m.cvBucket, objectKey, err)
	}
	m.logger.Printf("[MinIO] Downloaded %s: %d bytes (ContentType=%s)", objectKey, len(data), stat.ContentType)
	return data, nil
}

// GetPresignedURL 获取预签名下载URL
func (m *MinIO) GetPresignedURL(ctx context.Context, objectKey string, expiry time.Duration) (string, error) {
	presignedURL, err := m.client.PresignedGetObject(ctx, m.cvBucket, objectKey, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("生成MinIO预签名URL失败: %w", err)
	}
	return presignedURL.String(), nil
}

// DeleteCVFile 删除简历文件
func (m *MinIO) DeleteCVFile(ctx context.Context, objectKey string) error {
	err := m.client.RemoveObject(ctx, m.cvBucket, objectKey, minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("删除对象 %s 失败: %w", objectKey, err)
	}
	return nil
}

// StatObject 暴露底层StatObject，测试用
func (m *MinIO) StatObject(ctx context.Context, objectKey string) (minio.ObjectInfo, error) {
	return m.client.StatObject(ctx, m.cvBucket, objectKey, minio.StatObjectOptions{})
}

func contentTypeForExt(ext string) string {
	switch strings.ToLower(ext) {
	case ".pdf":
		return "application/pdf"
	case ".doc":
		return "application/msword"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".txt":
		return "text/plain"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	default:
		return "application/octet-stream"
	}
}
