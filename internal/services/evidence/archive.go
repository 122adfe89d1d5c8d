package evidence

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// ObjectPutter is the part of the S3 client the archiver needs
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Archiver copies a finished run's evidence to S3 under <prefix>/<runID>/<file>
type Archiver struct {
	client ObjectPutter
	bucket string
	prefix string
}

func NewArchiver(client ObjectPutter, bucket, prefix string) *Archiver {
	return &Archiver{client: client, bucket: bucket, prefix: prefix}
}

// Key returns the object key for a run artifact
func (a *Archiver) Key(runID, name string) string {
	return path.Join(a.prefix, runID, name)
}

// Archive uploads every stored file and returns the keys written. It keeps
// going after a failed upload and reports the first error.
func (a *Archiver) Archive(ctx context.Context, store *Store) ([]string, error) {
	var keys []string
	var firstErr error

	for _, name := range store.Files() {
		data, err := os.ReadFile(filepath.Join(store.Dir(), name))
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("failed to read %s: %w", name, err)
			}
			continue
		}

		key := a.Key(store.RunID(), name)
		_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      &a.bucket,
			Key:         &key,
			Body:        bytes.NewReader(data),
			ContentType: aws.String("image/jpeg"),
		})
		if err != nil {
			log.Warn().Err(err).Str("bucket", a.bucket).Str("key", key).Msg("Evidence upload failed")
			if firstErr == nil {
				firstErr = fmt.Errorf("failed to upload %s: %w", key, err)
			}
			continue
		}
		keys = append(keys, key)
	}

	log.Info().
		Str("run_id", store.RunID()).
		Str("bucket", a.bucket).
		Int("uploaded", len(keys)).
		Msg("Evidence archived")
	return keys, firstErr
}
