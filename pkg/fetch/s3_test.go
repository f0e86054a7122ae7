package fetch

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/vango-dev/rescache/pkg/cache"
)

type fakeObjectGetter struct {
	objects map[string][]byte
	calls   []string
	err     error
}

func (f *fakeObjectGetter) GetObject(_ context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	key := *params.Bucket + "/" + *params.Key
	f.calls = append(f.calls, key)
	if f.err != nil {
		return nil, f.err
	}
	body, ok := f.objects[key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(body))}, nil
}

func TestS3FetchesObject(t *testing.T) {
	getter := &fakeObjectGetter{
		objects: map[string][]byte{"reports/daily/2026-08-29.json": []byte(`{"ok":true}`)},
	}

	c := cache.New[string, []byte, []byte]().
		Fetcher(S3[string, []byte](getter, "reports", func(p *string) string {
			return "daily/" + *p + ".json"
		}))

	ch := make(chan *[]byte, 1)
	c.Request().Parameter("2026-08-29").Get(func(b *[]byte) { ch <- b })

	body := waitDelivery(t, ch)
	if body == nil || string(*body) != `{"ok":true}` {
		t.Fatalf("delivered %v, want report body", body)
	}
	if len(getter.calls) != 1 || getter.calls[0] != "reports/daily/2026-08-29.json" {
		t.Errorf("calls = %v", getter.calls)
	}
}

func TestS3ErrorIsAbsence(t *testing.T) {
	getter := &fakeObjectGetter{err: errors.New("AccessDenied")}

	c := cache.New[string, []byte, []byte]().
		Fetcher(S3[string, []byte](getter, "reports", func(p *string) string { return *p }))

	ch := make(chan *[]byte, 1)
	c.Request().Parameter("k").Get(func(b *[]byte) { ch <- b })

	if body := waitDelivery(t, ch); body != nil {
		t.Fatalf("delivered %q, want absence", string(*body))
	}
}

func TestS3EmptyKeyIsAbsence(t *testing.T) {
	getter := &fakeObjectGetter{}

	c := cache.New[string, []byte, []byte]().
		Fetcher(S3[string, []byte](getter, "reports", func(*string) string { return "" }))

	ch := make(chan *[]byte, 1)
	c.Get(func(b *[]byte) { ch <- b })

	if body := waitDelivery(t, ch); body != nil {
		t.Fatal("delivered a body for an empty key")
	}
	if len(getter.calls) != 0 {
		t.Errorf("GetObject called %d times for an empty key, want 0", len(getter.calls))
	}
}
