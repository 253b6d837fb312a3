package artifact

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/rs/zerolog"
)

type fakeS3 struct {
	objects map[string][]byte
	getErr  error
	putErr  error
	puts    []string
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}}
}

func (f *fakeS3) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	body, ok := f.objects[aws.ToString(params.Bucket)+"/"+aws.ToString(params.Key)]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("The specified key does not exist.")}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(body))}, nil
}

func (f *fakeS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	body, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	key := aws.ToString(params.Bucket) + "/" + aws.ToString(params.Key)
	f.objects[key] = body
	f.puts = append(f.puts, key)
	return &s3.PutObjectOutput{}, nil
}

func TestS3StoreRoundTrip(t *testing.T) {
	fake := newFakeS3()
	store := NewS3Store(fake, "fx-reports", zerolog.Nop())
	ctx := context.Background()

	if _, err := store.Get(ctx, "reports/2024-01-01.csv"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := store.Put(ctx, "reports/2024-01-02.csv", []byte("a,b\n")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.Put(ctx, "reports/2024-01-02.csv", []byte("c,d\n")); err != nil {
		t.Fatalf("second put: %v", err)
	}
	body, err := store.Get(ctx, "reports/2024-01-02.csv")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(body) != "c,d\n" {
		t.Fatalf("expected last write to win, got %q", body)
	}
	if got := store.Location("reports/2024-01-02.csv"); got != "s3://fx-reports/reports/2024-01-02.csv" {
		t.Fatalf("unexpected location %s", got)
	}
}

func TestS3StoreErrorMapping(t *testing.T) {
	ctx := context.Background()

	notFound := &awshttp.ResponseError{ResponseError: &smithyhttp.ResponseError{
		Response: &smithyhttp.Response{Response: &http.Response{StatusCode: http.StatusNotFound}},
		Err:      errors.New("NotFound"),
	}}
	store := NewS3Store(&fakeS3{getErr: notFound}, "b", zerolog.Nop())
	if _, err := store.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("404 should map to ErrNotFound, got %v", err)
	}

	denied := errors.New("AccessDenied")
	store = NewS3Store(&fakeS3{getErr: denied}, "b", zerolog.Nop())
	_, err := store.Get(ctx, "k")
	if errors.Is(err, ErrNotFound) || !errors.Is(err, denied) {
		t.Fatalf("access denied must propagate unchanged, got %v", err)
	}

	store = NewS3Store(&fakeS3{putErr: denied}, "b", zerolog.Nop())
	if err := store.Put(ctx, "k", []byte("x")); !errors.Is(err, ErrWrite) || !errors.Is(err, denied) {
		t.Fatalf("put failure should wrap ErrWrite and cause, got %v", err)
	}
}

func TestFSStore(t *testing.T) {
	dir := t.TempDir()
	store := NewFSStore(dir)
	ctx := context.Background()

	if _, err := store.Get(ctx, "reports/2024-01-01.csv"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := store.Put(ctx, "reports/2024-01-01.csv", []byte("hello")); err != nil {
		t.Fatalf("put: %v", err)
	}

	onDisk, err := os.ReadFile(filepath.Join(dir, "reports", "2024-01-01.csv"))
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(onDisk) != "hello" {
		t.Fatalf("unexpected content %q", onDisk)
	}

	body, err := store.Get(ctx, "reports/2024-01-01.csv")
	if err != nil || string(body) != "hello" {
		t.Fatalf("get: %q %v", body, err)
	}

	entries, err := os.ReadDir(filepath.Join(dir, "reports"))
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("temp files left behind: %v", entries)
	}
}
