package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"

	"AIAssistant/backend/go/pkg/logger"
)

// Uploader 把导出的文件上传到对象存储，返回对象名与访问地址。
type Uploader interface {
	Upload(ctx context.Context, localPath, contentType string) (objectName, url string, err error)
}

// MinIOUploader 把文件上传到 MinIO，对象名为 <轮次目录>/<uuid><扩展名>。
// 存储桶由 minio.GetClient 在连接时创建。
type MinIOUploader struct {
	client *minio.Client
	bucket string
	log    *logger.Logger
}

func NewMinIOUploader(client *minio.Client, bucket string, log *logger.Logger) *MinIOUploader {
	if bucket == "" {
		bucket = "ai-assistant-files"
	}
	if log == nil {
		log = logger.Nop()
	}
	return &MinIOUploader{client: client, bucket: bucket, log: log.WithComponent("minio_uploader")}
}

func (u *MinIOUploader) Upload(ctx context.Context, localPath, contentType string) (string, string, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return "", "", fmt.Errorf("打开文件 %s 失败: %w", localPath, err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return "", "", fmt.Errorf("读取文件信息 %s 失败: %w", localPath, err)
	}

	objectName := objectNameFor(filepath.Base(filepath.Dir(localPath)), localPath)
	_, err = u.client.PutObject(ctx, u.bucket, objectName, file, stat.Size(), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", "", fmt.Errorf("上传文件到 MinIO 失败: %w", err)
	}
	u.log.WithPayload(map[string]interface{}{"object": objectName, "size": stat.Size()}).Info("文件已上传")
	return objectName, strings.TrimRight(u.client.EndpointURL().String(), "/") + "/" + u.bucket + "/" + objectName, nil
}

// objectNameFor 以轮次目录作为前缀，保证同一轮次的文件放在一起。
func objectNameFor(prefix, localPath string) string {
	name := uuid.New().String() + filepath.Ext(localPath)
	if prefix == "" || prefix == "." || prefix == string(filepath.Separator) {
		return name
	}
	return prefix + "/" + name
}
