package archive

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ghuser/agritrack/pkg/config"
)

type object struct {
	body        []byte
	contentType string
	metadata    http.Header
}

// fakeS3 serves the handful of path-style S3 calls the store makes.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]object
}

func (f *fakeS3) RoundTrip(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := strings.TrimPrefix(req.URL.Path, "/")
	respond := func(status int, body []byte, h http.Header) *http.Response {
		if h == nil {
			h = http.Header{}
		}
		return &http.Response{StatusCode: status, Body: io.NopCloser(bytes.NewReader(body)), Header: h, Request: req}
	}

	switch req.Method {
	case http.MethodHead:
		if path == "journeys-bucket" {
			return respond(http.StatusOK, nil, nil), nil
		}
		return respond(http.StatusNotFound, nil, nil), nil
	case http.MethodPut:
		body, _ := io.ReadAll(req.Body)
		f.objects[path] = object{body: body, contentType: req.Header.Get("Content-Type"), metadata: req.Header.Clone()}
		return respond(http.StatusOK, nil, http.Header{"Etag": {`"etag"`}}), nil
	case http.MethodGet:
		obj, ok := f.objects[path]
		if !ok {
			body := []byte(`<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`)
			return respond(http.StatusNotFound, body, http.Header{"Content-Type": {"application/xml"}}), nil
		}
		return respond(http.StatusOK, obj.body, http.Header{"Content-Type": {obj.contentType}}), nil
	}
	return respond(http.StatusNotImplemented, nil, nil), nil
}

func newFakeStore(t *testing.T) (*Store, *fakeS3) {
	t.Helper()
	fake := &fakeS3{objects: make(map[string]object)}
	cfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion("us-east-1"),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("AKIA", "SECRET", "")),
	)
	if err != nil {
		t.Fatalf("aws config: %v", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String("https://minio.local")
		o.HTTPClient = &http.Client{Transport: fake}
		o.UsePathStyle = true
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
	})
	return NewWithClient(client, "journeys-bucket"), fake
}

func TestJourneyKey(t *testing.T) {
	if got := JourneyKey("BTC01ARZ3NDEKTSV4RRFFQ69G5FAV"); got != "journeys/BTC01ARZ3NDEKTSV4RRFFQ69G5FAV.json" {
		t.Fatalf("unexpected key %q", got)
	}
}

func TestStore_PutGet(t *testing.T) {
	ctx := context.Background()
	store, fake := newFakeStore(t)
	key := JourneyKey("BTC01ARZ3NDEKTSV4RRFFQ69G5FAV")
	body := []byte(`{"id":"BTC01ARZ3NDEKTSV4RRFFQ69G5FAV","current_state":"SOLD"}`)

	if err := store.PutJSON(ctx, key, body, map[string]string{"state": "SOLD"}); err != nil {
		t.Fatalf("PutJSON: %v", err)
	}

	stored, ok := fake.objects["journeys-bucket/"+key]
	if !ok {
		t.Fatalf("object not written; have %v", fake.objects)
	}
	if stored.contentType != "application/json" {
		t.Errorf("content type: got %q", stored.contentType)
	}
	if stored.metadata.Get("X-Amz-Meta-State") != "SOLD" {
		t.Errorf("metadata not sent: %v", stored.metadata)
	}

	got, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(got, body) {
		t.Fatalf("got %s, want %s", got, body)
	}
}

func TestStore_GetMissing(t *testing.T) {
	store, _ := newFakeStore(t)
	_, err := store.Get(context.Background(), JourneyKey("missing"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_Ping(t *testing.T) {
	store, _ := newFakeStore(t)
	if err := store.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestNew_RequiresBucket(t *testing.T) {
	if _, err := New(context.Background(), &config.Config{MinioRegion: "us-east-1"}); err == nil {
		t.Fatal("expected error without bucket")
	}
}

func TestNew_FromConfig(t *testing.T) {
	s, err := New(context.Background(), &config.Config{
		MinioEndpoint:     "http://localhost:9000",
		MinioRegion:       "us-east-1",
		MinioBucket:       "agritrack-journeys",
		MinioRootUser:     "minioadmin",
		MinioRootPassword: "minioadmin",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if s.bucket != "agritrack-journeys" {
		t.Fatalf("unexpected bucket %q", s.bucket)
	}
}
