package utils

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"nutritrack/classifier"
)

type s3PutAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// FrameArchive stores accepted capture frames in S3 and returns the public
// URL the meal item keeps as its photo.
type FrameArchive struct {
	client  s3PutAPI
	bucket  string
	baseURL string
	now     func() time.Time
}

// NewFrameArchive builds an archive for bucket. baseURL is the CloudFront
// (or bucket website) origin that serves the objects.
func NewFrameArchive(cfg aws.Config, bucket, baseURL string) *FrameArchive {
	return &FrameArchive{
		client:  s3.NewFromConfig(cfg),
		bucket:  bucket,
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
	}
}

func (a *FrameArchive) ArchiveFrame(ctx context.Context, userID uint, frame classifier.Frame) (string, error) {
	if len(frame.Data) == 0 {
		return "", errors.New("empty frame")
	}
	contentType := frame.ContentType
	if contentType == "" {
		contentType = "image/jpeg"
	}
	key := fmt.Sprintf("frames/%d/%d%s", userID, a.now().UnixNano(), ExtForContentType(contentType))

	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(frame.Data),
		ContentType: aws.String(contentType),
		ACL:         s3types.ObjectCannedACLPublicRead,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}
	return fmt.Sprintf("%s/%s", a.baseURL, key), nil
}
