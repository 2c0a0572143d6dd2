package storage

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/1145-am/orggraph/internal/util"
	"github.com/1145-am/orggraph/pkg/logger"
)

// NewS3Client builds the archive upload client from AWS_* env values.
// Returns nil when no endpoint is configured, which disables S3 archiving.
func NewS3Client(ctx context.Context) *s3.Client {
	endpoint := util.GetEnv("AWS_ENDPOINT")
	if endpoint == "" {
		return nil
	}
	cfg, err := config.LoadDefaultConfig(
		ctx,
		config.WithRegion(util.GetEnv("AWS_REGION")),
		config.WithBaseEndpoint(endpoint),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			util.GetEnv("AWS_ACCESS_KEY"),
			util.GetEnv("AWS_SECRET_KEY"),
			"",
		)),
	)
	if err != nil {
		logger.Error("Failed to configure S3 client", "err", err)
		return nil
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})
}

// BatchArchiver moves applied batch directories under an archive root,
// keyed by their original timestamp, and optionally mirrors the files to
// an S3 bucket.
type BatchArchiver struct {
	ArchiveRoot string
	S3          *s3.Client
	Bucket      string
	Prefix      string
}

func NewBatchArchiver(ctx context.Context, archiveRoot string) *BatchArchiver {
	return &BatchArchiver{
		ArchiveRoot: archiveRoot,
		S3:          NewS3Client(ctx),
		Bucket:      util.GetEnv("AWS_BUCKET"),
		Prefix:      util.GetEnvString("ARCHIVE_S3_PREFIX", "rdf_archive"),
	}
}

// Archive relocates batchDir to <root>/<importTS>. When an S3 client is
// configured the batch files are uploaded first, so a failed upload leaves
// the batch in place for a retry.
func (a *BatchArchiver) Archive(ctx context.Context, batchDir string, importTS int64) error {
	if a.S3 != nil && a.Bucket != "" {
		if err := a.uploadBatch(ctx, batchDir, importTS); err != nil {
			return fmt.Errorf("upload batch %d: %w", importTS, err)
		}
	}

	if err := os.MkdirAll(a.ArchiveRoot, 0o755); err != nil {
		return fmt.Errorf("create archive root: %w", err)
	}
	dest := filepath.Join(a.ArchiveRoot, strconv.FormatInt(importTS, 10))
	if err := os.Rename(batchDir, dest); err != nil {
		return fmt.Errorf("archive batch %d: %w", importTS, err)
	}
	logger.Info("[Archive] Batch archived", "batch_ts", importTS, "dest", dest)
	return nil
}

func (a *BatchArchiver) uploadBatch(ctx context.Context, batchDir string, importTS int64) error {
	return filepath.WalkDir(batchDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(batchDir, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		key := fmt.Sprintf("%s/%d/%s", a.Prefix, importTS, filepath.ToSlash(rel))
		_, err = a.S3.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(a.Bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(data),
			ContentType: aws.String("text/turtle"),
		})
		if err != nil {
			return fmt.Errorf("put %s: %w", key, err)
		}
		return nil
	})
}
