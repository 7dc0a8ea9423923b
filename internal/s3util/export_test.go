package s3util

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type fakePut struct {
	key, contentType, tagging string
	body                      []byte
	err                       error
}

func (f *fakePut) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.key = *in.Key
	f.contentType = *in.ContentType
	f.tagging = *in.Tagging
	f.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, nil
}

type fakePresigner struct {
	key string
}

func (f *fakePresigner) PresignGetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	f.key = *in.Key
	return &v4.PresignedHTTPRequest{URL: "https://example.test/" + *in.Key + "?sig=x"}, nil
}

func TestExporter_PublishGIF(t *testing.T) {
	put := &fakePut{}
	pre := &fakePresigner{}
	e := &Exporter{Client: put, Presigner: pre, Bucket: "b", Prefix: "booth"}

	url, err := e.PublishGIF(context.Background(), []byte("GIF89a"))
	if err != nil {
		t.Fatalf("PublishGIF: %v", err)
	}
	if !strings.HasPrefix(put.key, "booth/exports/") || !strings.HasSuffix(put.key, ".gif") {
		t.Errorf("key = %q", put.key)
	}
	if put.contentType != "image/gif" {
		t.Errorf("content type = %q", put.contentType)
	}
	if put.tagging != "Project=claw-cam" {
		t.Errorf("tagging = %q", put.tagging)
	}
	if !bytes.Equal(put.body, []byte("GIF89a")) {
		t.Errorf("body = %q", put.body)
	}
	if pre.key != put.key {
		t.Errorf("presigned %q, uploaded %q", pre.key, put.key)
	}
	if !strings.Contains(url, put.key) {
		t.Errorf("url = %q", url)
	}
}

func TestUploadExportError(t *testing.T) {
	put := &fakePut{err: errors.New("access denied")}
	if _, err := UploadExport(context.Background(), put, "b", "", ".gif", "image/gif", nil); err == nil {
		t.Error("expected upload error")
	}
}
