package export

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Archive uploads export results to S3-compatible object storage so a
// finished retro survives board deletion.
type Archive struct {
	client *minio.Client
	bucket string
}

// NewArchive connects to the object store and makes sure the bucket exists.
func NewArchive(ctx context.Context, endpoint, accessKey, secretKey, bucket string, useSSL bool) (*Archive, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to object storage: %w", err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", bucket, err)
		}
	}

	return &Archive{client: client, bucket: bucket}, nil
}

// Upload stores the rendered export under boards/<id>/<timestamp>-<file>
// and returns the object name.
func (a *Archive) Upload(ctx context.Context, boardID string, result *Result) (string, error) {
	objectName := fmt.Sprintf("boards/%s/%s-%s",
		boardID, time.Now().UTC().Format("20060102T150405Z"), result.Filename)

	_, err := a.client.PutObject(ctx, a.bucket, objectName,
		bytes.NewReader(result.Data), int64(len(result.Data)),
		minio.PutObjectOptions{ContentType: result.MimeType})
	if err != nil {
		return "", fmt.Errorf("upload archive object: %w", err)
	}
	return objectName, nil
}
