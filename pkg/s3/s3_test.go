package s3

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadFile(t *testing.T) {
	var gotPath, gotBody, gotType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotType = r.Header.Get("Content-Type")
		data, _ := io.ReadAll(r.Body)
		gotBody = string(data)
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sess, err := newSession(&aws.Config{
		Region:           aws.String("us-east-1"),
		Endpoint:         aws.String(srv.URL),
		S3ForcePathStyle: aws.Bool(true),
		DisableSSL:       aws.Bool(true),
		Credentials:      credentials.NewStaticCredentials("id", "secret", ""),
	})
	require.NoError(t, err)
	client := newClient(sess, "layout-artifacts")

	file := filepath.Join(t.TempDir(), "output_0.json")
	require.NoError(t, os.WriteFile(file, []byte(`{"res":{}}`), 0o644))

	location, err := client.UploadFile(context.Background(), ObjectKey("out-1", file), file, "application/json")
	require.NoError(t, err)

	assert.Equal(t, "/layout-artifacts/out-1/output_0.json", gotPath)
	assert.Equal(t, `{"res":{}}`, gotBody)
	assert.Equal(t, "application/json", gotType)
	assert.Contains(t, location, "/layout-artifacts/out-1/output_0.json")
}

func TestNewWithoutBucket(t *testing.T) {
	t.Setenv("AWS_BUCKET_NAME", "")
	client, err := New()
	require.NoError(t, err)
	assert.Nil(t, client)
}

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "abc/output_1.jpg", ObjectKey("abc", "./output/abc/output_1.jpg"))
}
