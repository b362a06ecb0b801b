package service

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
)

// MinIOLabelStore 把标签批次的原始数据存入MinIO并签发下载链接
type MinIOLabelStore struct {
	client *minio.Client
	bucket string
}

// NewMinIOLabelStore 创建标签存储
func NewMinIOLabelStore(client *minio.Client, bucket string) *MinIOLabelStore {
	return &MinIOLabelStore{client: client, bucket: bucket}
}

// Save 写入标签文件并返回24小时有效的预签名下载链接
func (s *MinIOLabelStore) Save(ctx context.Context, filename string, data []byte) (string, error) {
	objectName := fmt.Sprintf("labels/%s/%s", time.Now().Format("2006-01-02"), filename)

	_, err := s.client.PutObject(ctx, s.bucket, objectName, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "text/plain",
	})
	if err != nil {
		return "", fmt.Errorf("上传标签文件失败: %w", err)
	}

	params := url.Values{}
	params.Set("response-content-disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	presigned, err := s.client.PresignedGetObject(ctx, s.bucket, objectName, 24*time.Hour, params)
	if err != nil {
		return "", fmt.Errorf("签发下载链接失败: %w", err)
	}
	return presigned.String(), nil
}
