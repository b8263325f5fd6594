package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"portfolio-rag/pkg/apperror"
	s3client "portfolio-rag/pkg/s3"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// FetchToLocalTemp downloads an s3:// object to a temporary file and returns
// its path plus a cleanup function. Local paths are returned as-is with a
// no-op cleanup; the loader reads them in place.
func FetchToLocalTemp(ctx context.Context, path string) (string, func(), error) {
	noop := func() {}
	if !s3client.IsURI(path) {
		return path, noop, nil
	}

	bucket, key, err := s3client.ParseURI(path)
	if err != nil {
		return "", noop, fmt.Errorf("%w: %v", apperror.ErrDocumentNotFound, err)
	}
	cli, err := s3client.GetClient(ctx)
	if err != nil {
		return "", noop, fmt.Errorf("%w: s3 client: %v", apperror.ErrDocumentUnreadable, err)
	}

	out, err := cli.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
	if err != nil {
		var noKey *s3types.NoSuchKey
		var noBucket *s3types.NoSuchBucket
		if errors.As(err, &noKey) || errors.As(err, &noBucket) {
			return "", noop, fmt.Errorf("%w: %s", apperror.ErrDocumentNotFound, path)
		}
		return "", noop, fmt.Errorf("%w: get %s: %v", apperror.ErrDocumentUnreadable, path, err)
	}
	defer out.Body.Close()

	tmp, err := os.CreateTemp("", "ingest-*"+filepath.Ext(key))
	if err != nil {
		return "", noop, err
	}
	cleanup := func() { _ = os.Remove(tmp.Name()) }
	if _, err := io.Copy(tmp, out.Body); err != nil {
		tmp.Close()
		cleanup()
		return "", noop, fmt.Errorf("%w: download %s: %v", apperror.ErrDocumentUnreadable, path, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", noop, err
	}
	return tmp.Name(), cleanup, nil
}
