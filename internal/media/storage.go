package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/google/uuid"
	"github.com/travelblog/internal/config"
)

// Uploader 按 key 存储对象并返回公开访问地址。
type Uploader interface {
	Put(ctx context.Context, key, contentType string, body []byte) (string, error)
}

// Store 负责封面图的校验、处理与上传。
type Store struct {
	uploader Uploader
	now      func() time.Time
}

// NewStore 根据配置选择上传后端。
func NewStore(cfg config.MediaConfig) (*Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "local":
		return NewStoreWith(NewLocalUploader(cfg.UploadDir, cfg.UploadURLPath)), nil
	case "s3":
		uploader, err := NewS3Uploader(cfg)
		if err != nil {
			return nil, err
		}
		return NewStoreWith(uploader), nil
	default:
		return nil, fmt.Errorf("unsupported media driver: %s", cfg.Driver)
	}
}

// NewStoreWith wraps an existing uploader.
func NewStoreWith(uploader Uploader) *Store {
	return &Store{uploader: uploader, now: time.Now}
}

// SaveUpload 处理表单上传的图片并返回存储地址。
func (s *Store) SaveUpload(ctx context.Context, file *multipart.FileHeader) (string, error) {
	if file.Size > MaxUploadSize {
		return "", ErrImageTooLarge
	}
	if !allowedExtension(file.Filename) {
		return "", ErrUnsupportedImage
	}

	src, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	return s.Save(ctx, src)
}

// Save processes raw image bytes from r and uploads the JPEG result.
func (s *Store) Save(ctx context.Context, r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxUploadSize+1))
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if len(data) > MaxUploadSize {
		return "", ErrImageTooLarge
	}

	processed, err := ProcessImage(bytes.NewReader(data))
	if err != nil {
		return "", err
	}

	// 生成唯一文件名
	key := fmt.Sprintf("%s-%s.jpg", s.now().Format("20060102"), uuid.New().String())
	return s.uploader.Put(ctx, key, "image/jpeg", processed.Data)
}

func allowedExtension(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg", ".png":
		return true
	}
	return false
}

// LocalUploader 将文件写入本地目录，并通过 urlPath 访问。
type LocalUploader struct {
	dir     string
	urlPath string
}

func NewLocalUploader(dir, urlPath string) *LocalUploader {
	if dir == "" {
		dir = "web/static/uploads"
	}
	if urlPath == "" {
		urlPath = "/static/uploads"
	}
	return &LocalUploader{dir: dir, urlPath: strings.TrimRight(urlPath, "/")}
}

func (u *LocalUploader) Put(_ context.Context, key, _ string, body []byte) (string, error) {
	if err := os.MkdirAll(u.dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	name := filepath.Base(key)
	if err := os.WriteFile(filepath.Join(u.dir, name), body, 0o644); err != nil {
		return "", fmt.Errorf("write upload: %w", err)
	}
	return u.urlPath + "/" + name, nil
}

// S3Uploader puts objects into an S3 compatible bucket.
type S3Uploader struct {
	uploader  *s3manager.Uploader
	bucket    string
	prefix    string
	publicURL string
}

func NewS3Uploader(cfg config.MediaConfig) (*S3Uploader, error) {
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("s3 media driver requires S3_BUCKET")
	}

	awsCfg := aws.NewConfig().WithRegion(cfg.S3Region)
	if cfg.S3Endpoint != "" {
		awsCfg = awsCfg.WithEndpoint(cfg.S3Endpoint).WithS3ForcePathStyle(true)
	}
	if cfg.AccessKeyID != "" && cfg.SecretKey != "" {
		awsCfg = awsCfg.WithCredentials(credentials.NewStaticCredentials(cfg.AccessKeyID, cfg.SecretKey, ""))
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("create aws session: %w", err)
	}

	return &S3Uploader{
		uploader:  s3manager.NewUploader(sess),
		bucket:    cfg.S3Bucket,
		prefix:    strings.Trim(cfg.S3Prefix, "/"),
		publicURL: strings.TrimRight(cfg.S3PublicURL, "/"),
	}, nil
}

func (u *S3Uploader) Put(ctx context.Context, key, contentType string, body []byte) (string, error) {
	objectKey := key
	if u.prefix != "" {
		objectKey = path.Join(u.prefix, key)
	}

	out, err := u.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(objectKey),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("upload to s3: %w", err)
	}

	if u.publicURL != "" {
		return u.publicURL + "/" + objectKey, nil
	}
	return out.Location, nil
}
