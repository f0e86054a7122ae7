package fetch

import (
	"context"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/vango-dev/rescache/pkg/cache"
)

// ObjectGetter is the slice of the S3 client the S3 fetcher needs.
// *s3.Client satisfies it; tests substitute a fake.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3 returns a fetcher that reads the object at the key derived from the
// current parameter and produces its body as the input.
//
// Example:
//
//	cfg, _ := config.LoadDefaultConfig(context.Background())
//	f := fetch.S3[string, Report](s3.NewFromConfig(cfg), "reports",
//	    func(p *string) string { return "daily/" + *p + ".json" })
func S3[P, R any](client ObjectGetter, bucket string, key func(p *P) string) cache.Fetcher[P, []byte, R] {
	return func(s cache.State[P, []byte, R], done func(*[]byte)) {
		k := key(s.Parameter)
		if k == "" {
			done(nil)
			return
		}
		go func() {
			out, err := client.GetObject(context.Background(), &s3.GetObjectInput{
				Bucket: aws.String(bucket),
				Key:    aws.String(k),
			})
			if err != nil {
				done(nil)
				return
			}
			defer out.Body.Close()

			body, err := io.ReadAll(out.Body)
			if err != nil {
				done(nil)
				return
			}
			done(&body)
		}()
	}
}
