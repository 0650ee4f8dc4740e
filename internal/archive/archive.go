// Package archive spills oversized dead-letter/workflow-failure payloads to
// S3: large metadata/context blobs are replaced inline with a small
// reference record so Postgres rows stay bounded, while the full payload
// remains retrievable from object storage for operator inspection or
// replay.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ignite/outreach-orchestrator/internal/config"
)

// Uploader is the subset of *s3.Client Archiver needs, narrowed so tests can
// substitute a fake without standing up a real S3 endpoint.
type Uploader interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Archiver spills a payload to S3 once it exceeds the configured inline size
// limit. A nil *Archiver (archival disabled) always passes payloads through
// unchanged.
type Archiver struct {
	uploader    Uploader
	bucket      string
	inlineLimit int
}

func New(uploader Uploader, cfg config.ArchiveConfig) *Archiver {
	return &Archiver{
		uploader:    uploader,
		bucket:      cfg.S3Bucket,
		inlineLimit: cfg.InlineSizeLimitBytes(),
	}
}

type reference struct {
	Archived bool   `json:"archived"`
	Ref      string `json:"ref"`
	Bytes    int    `json:"bytes"`
}

// Spill uploads payload under key when it exceeds the inline size limit. It
// returns the bytes to store inline (the payload itself when under the
// limit, a small {"archived":true,"ref":...} marker otherwise) and the S3
// reference URI, empty when nothing was archived.
func (a *Archiver) Spill(ctx context.Context, key string, payload []byte) (inline []byte, ref string, err error) {
	if a == nil || a.uploader == nil || len(payload) <= a.inlineLimit {
		return payload, "", nil
	}

	_, err = a.uploader.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(payload),
	})
	if err != nil {
		return nil, "", fmt.Errorf("archive: spill %s to s3://%s: %w", key, a.bucket, err)
	}

	ref = fmt.Sprintf("s3://%s/%s", a.bucket, key)
	marker, err := json.Marshal(reference{Archived: true, Ref: ref, Bytes: len(payload)})
	if err != nil {
		return nil, "", fmt.Errorf("archive: marshal reference marker: %w", err)
	}
	return marker, ref, nil
}

// Fetch retrieves the full payload previously spilled to ref (an
// "s3://bucket/key" URI returned by Spill). Callers that stored a non-empty
// archive_ref alongside a row use this to recover the original payload for
// operator inspection or replay.
func (a *Archiver) Fetch(ctx context.Context, ref string) ([]byte, error) {
	if a == nil || a.uploader == nil {
		return nil, fmt.Errorf("archive: fetch %q: archival disabled", ref)
	}
	bucket, key, ok := parseRef(ref)
	if !ok {
		return nil, fmt.Errorf("archive: malformed reference %q", ref)
	}

	out, err := a.uploader.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
	if err != nil {
		return nil, fmt.Errorf("archive: fetch %s: %w", ref, err)
	}
	defer out.Body.Close()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("archive: read %s: %w", ref, err)
	}
	return body, nil
}

func parseRef(ref string) (bucket, key string, ok bool) {
	const prefix = "s3://"
	if !strings.HasPrefix(ref, prefix) {
		return "", "", false
	}
	rest := strings.TrimPrefix(ref, prefix)
	idx := strings.Index(rest, "/")
	if idx <= 0 || idx == len(rest)-1 {
		return "", "", false
	}
	return rest[:idx], rest[idx+1:], true
}
