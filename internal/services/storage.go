package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/chachabrian/ridepool-backend/internal/config"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// maxImageSize bounds uploads read into memory for S3.
const maxImageSize = 5 << 20

// Storage keeps uploaded images in S3 when configured, otherwise on local disk
// served under /uploads.
type Storage struct {
	s3Client  *s3.S3
	uploader  *s3manager.Uploader
	bucket    string
	region    string
	uploadDir string
	baseURL   string
	log       *zap.Logger
}

// InitStorage initializes either S3 or local storage based on configuration
func InitStorage(cfg config.StorageConfig, log *zap.Logger) (*Storage, error) {
	st := &Storage{
		bucket:    cfg.Bucket,
		region:    cfg.AWSRegion,
		uploadDir: cfg.UploadDir,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		log:       log,
	}

	if cfg.UseS3() {
		sess, err := session.NewSession(&aws.Config{
			Region:      aws.String(cfg.AWSRegion),
			Credentials: credentials.NewStaticCredentials(cfg.AWSAccessKey, cfg.AWSSecretKey, ""),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create AWS session: %w", err)
		}
		st.s3Client = s3.New(sess)
		st.uploader = s3manager.NewUploader(sess)
		log.Info("S3 storage initialized", zap.String("bucket", cfg.Bucket))
		return st, nil
	}

	if err := os.MkdirAll(st.uploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	log.Warn("AWS S3 not configured, using local file storage", zap.String("dir", st.uploadDir))
	return st, nil
}

func (s *Storage) UsingS3() bool {
	return s.s3Client != nil
}

// UploadDir is the local directory served for uploads when S3 is not used.
func (s *Storage) UploadDir() string {
	return s.uploadDir
}

// UploadImage stores the file under folder and returns its public URL.
func (s *Storage) UploadImage(ctx context.Context, file *multipart.FileHeader, folder string) (string, error) {
	if file.Size > maxImageSize {
		return "", fmt.Errorf("image is larger than %d bytes", maxImageSize)
	}
	name := uuid.NewString() + strings.ToLower(filepath.Ext(file.Filename))

	src, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer src.Close()

	if s.UsingS3() {
		return s.uploadToS3(ctx, src, path.Join(folder, name))
	}
	return s.uploadLocally(src, folder, name)
}

func (s *Storage) uploadToS3(ctx context.Context, src io.Reader, key string) (string, error) {
	buffer := bytes.NewBuffer(nil)
	if _, err := io.Copy(buffer, io.LimitReader(src, maxImageSize)); err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	_, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buffer.Bytes()),
		ContentType: aws.String(http.DetectContentType(buffer.Bytes())),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key), nil
}

func (s *Storage) uploadLocally(src io.Reader, folder, name string) (string, error) {
	dir := filepath.Join(s.uploadDir, folder)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create folder directory: %w", err)
	}

	dst, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, io.LimitReader(src, maxImageSize)); err != nil {
		return "", fmt.Errorf("failed to save file: %w", err)
	}
	return fmt.Sprintf("%s/uploads/%s/%s", s.baseURL, folder, name), nil
}

// DeleteImage removes an image previously returned by UploadImage. URLs this
// storage did not produce are ignored.
func (s *Storage) DeleteImage(ctx context.Context, imageURL string) error {
	if s.UsingS3() {
		prefix := fmt.Sprintf("https://%s.s3.%s.amazonaws.com/", s.bucket, s.region)
		if !strings.HasPrefix(imageURL, prefix) {
			return nil
		}
		_, err := s.s3Client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(strings.TrimPrefix(imageURL, prefix)),
		})
		return err
	}

	prefix := s.baseURL + "/uploads/"
	if !strings.HasPrefix(imageURL, prefix) {
		return nil
	}
	rel := filepath.Clean(filepath.FromSlash(strings.TrimPrefix(imageURL, prefix)))
	if strings.HasPrefix(rel, "..") || filepath.IsAbs(rel) {
		return nil
	}
	err := os.Remove(filepath.Join(s.uploadDir, rel))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
