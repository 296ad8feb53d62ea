package result

import (
	"bytes"
	"context"
	"path"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/pkg/errors"
)

// S3Uploader puts reports into a bucket under a key prefix
type S3Uploader struct {
	bucket   string
	prefix   string
	uploader *s3manager.Uploader
}

// getAWSSession returns the aws session for a given region
func getAWSSession(region string) *session.Session {
	return session.Must(session.NewSessionWithOptions(session.Options{
		SharedConfigState: session.SharedConfigEnable,
		Config:            aws.Config{Region: aws.String(region)},
	}))
}

// NewS3Uploader returns an uploader using the shared aws configuration
func NewS3Uploader(region, bucket, prefix string) *S3Uploader {
	return &S3Uploader{
		bucket:   bucket,
		prefix:   prefix,
		uploader: s3manager.NewUploader(getAWSSession(region)),
	}
}

func (u *S3Uploader) Upload(ctx context.Context, key string, body []byte, contentType string) error {
	_, err := u.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(path.Join(u.prefix, key)),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return checkAWSError(err)
	}
	return nil
}

// checkAWSError keeps the aws error code in the message
func checkAWSError(err error) error {
	if aerr, ok := err.(awserr.Error); ok {
		return errors.Errorf("%v: %v", aerr.Code(), aerr.Message())
	}
	return errors.Errorf("%s", err.Error())
}
