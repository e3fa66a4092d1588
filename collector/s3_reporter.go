package collector

import (
	"context"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"UnraidTools/unraid-mqtt-stats/conf"
	"UnraidTools/unraid-mqtt-stats/dto"
)

// S3Prober measures a configured S3 endpoint, typically a MinIO container
// on the same box, by timing a bucket listing. Only wired up when the
// config file has an [s3] section.
type S3Prober struct {
	client *minio.Client
}

func NewS3Prober(s3config *conf.S3Config) (*S3Prober, error) {
	client, err := minio.New(s3config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(s3config.AccessKey, s3config.SecretKey, ""),
		Secure: s3config.UseSSL,
	})
	if err != nil {
		return nil, err
	}
	return &S3Prober{client: client}, nil
}

// LatencyReporter reports ListBuckets wall time in milliseconds.
func (p *S3Prober) LatencyReporter() dto.Reporter {
	return dto.ReporterFunc(func(ctx context.Context) (dto.Value, error) {
		start := time.Now()
		if _, err := p.client.ListBuckets(ctx); err != nil {
			return dto.Value{}, err
		}
		ms := float64(time.Since(start)) / float64(time.Millisecond)
		return dto.FloatValue(round1(ms)), nil
	})
}

func (p *S3Prober) BucketCountReporter() dto.Reporter {
	return dto.ReporterFunc(func(ctx context.Context) (dto.Value, error) {
		buckets, err := p.client.ListBuckets(ctx)
		if err != nil {
			return dto.Value{}, err
		}
		return dto.IntValue(int64(len(buckets))), nil
	})
}
