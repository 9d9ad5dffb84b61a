package utils

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// MediaStore resolves and stores answer media. The engine only ever holds
// media ids; binary content and URL resolution live here.
type MediaStore interface {
	// Upload stores a multipart file under the given object key and
	// returns the public URL.
	Upload(fileHeader *multipart.FileHeader, key string) (string, error)
	// Resolve maps a media id (object key) to its public URL.
	Resolve(mediaID string) string
}

// R2MediaStore keeps media in a Cloudflare R2 bucket through the S3 API.
type R2MediaStore struct {
	client     *s3.Client
	bucket     string
	cdnBaseURL string
}

// NewR2MediaStoreFromEnv builds the store from CLOUDFLARE_ACCOUNT_ID,
// R2_ACCESS_KEY_ID, R2_ACCESS_KEY_SECRET, R2_BUCKET_NAME and CDN_BASE_URL.
func NewR2MediaStoreFromEnv() (*R2MediaStore, error) {
	accountID := os.Getenv("CLOUDFLARE_ACCOUNT_ID")
	accessKeyID := os.Getenv("R2_ACCESS_KEY_ID")
	accessKeySecret := os.Getenv("R2_ACCESS_KEY_SECRET")
	bucket := os.Getenv("R2_BUCKET_NAME")
	cdnBaseURL := os.Getenv("CDN_BASE_URL")
	if cdnBaseURL == "" {
		cdnBaseURL = fmt.Sprintf("https://%s.r2.cloudflarestorage.com", accountID)
	}

	cfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithRegion("auto"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKeyID, accessKeySecret, "",
		)),
		config.WithEndpointResolver(aws.EndpointResolverFunc(
			func(service, region string) (aws.Endpoint, error) {
				return aws.Endpoint{
					URL: fmt.Sprintf("https://%s.r2.cloudflarestorage.com", accountID),
				}, nil
			}),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load R2 config: %w", err)
	}

	return &R2MediaStore{
		client:     s3.NewFromConfig(cfg),
		bucket:     bucket,
		cdnBaseURL: strings.TrimRight(cdnBaseURL, "/"),
	}, nil
}

func (m *R2MediaStore) Upload(fileHeader *multipart.FileHeader, key string) (string, error) {
	file, err := fileHeader.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, file); err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err = m.client.PutObject(context.TODO(), &s3.PutObjectInput{
		Bucket:      aws.String(m.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to R2: %w", err)
	}
	return m.Resolve(key), nil
}

func (m *R2MediaStore) Resolve(mediaID string) string {
	if mediaID == "" {
		return ""
	}
	return m.cdnBaseURL + "/" + strings.TrimLeft(mediaID, "/")
}
