package render

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veldmed/practice-platform/pkg/logging"
)

type fakeS3 struct {
	objects map[string][]byte
	calls   []string
}

func (f *fakeS3) GetObject(_ context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	key := *params.Bucket + "/" + *params.Key
	f.calls = append(f.calls, key)
	data, ok := f.objects[key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(string(data)))}, nil
}

func pdfServer(t *testing.T, body string, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchFirstCandidateWins(t *testing.T) {
	first := pdfServer(t, "%PDF-1.4 first", http.StatusOK)
	second := pdfServer(t, "%PDF-1.4 second", http.StatusOK)

	f := NewTemplateFetcher([]string{first.URL, second.URL}, http.DefaultClient, nil, logging.Default())
	data := f.Fetch(context.Background())
	assert.Equal(t, []byte("%PDF-1.4 first"), data)
}

func TestFetchSkipsFailingCandidates(t *testing.T) {
	broken := pdfServer(t, "gone", http.StatusNotFound)
	notPDF := pdfServer(t, "<html>not a pdf</html>", http.StatusOK)
	good := pdfServer(t, "%PDF-1.4 good", http.StatusOK)

	f := NewTemplateFetcher([]string{broken.URL, notPDF.URL, good.URL}, http.DefaultClient, nil, logging.Default())
	data := f.Fetch(context.Background())
	assert.Equal(t, []byte("%PDF-1.4 good"), data)
}

func TestFetchAllCandidatesFailReturnsNil(t *testing.T) {
	broken := pdfServer(t, "nope", http.StatusInternalServerError)
	f := NewTemplateFetcher([]string{broken.URL, "s3://bucket/missing.pdf"}, http.DefaultClient, &fakeS3{}, logging.Default())
	assert.Nil(t, f.Fetch(context.Background()))
}

func TestFetchS3Candidate(t *testing.T) {
	s3Fake := &fakeS3{objects: map[string][]byte{
		"templates/pad.pdf": []byte("%PDF-1.4 from s3"),
	}}
	f := NewTemplateFetcher([]string{"s3://templates/pad.pdf"}, http.DefaultClient, s3Fake, logging.Default())

	data := f.Fetch(context.Background())
	assert.Equal(t, []byte("%PDF-1.4 from s3"), data)
	require.Equal(t, []string{"templates/pad.pdf"}, s3Fake.calls)
}

func TestFetchS3WithoutClientSkips(t *testing.T) {
	good := pdfServer(t, "%PDF-1.4 fallback", http.StatusOK)
	f := NewTemplateFetcher([]string{"s3://templates/pad.pdf", good.URL}, http.DefaultClient, nil, logging.Default())
	assert.Equal(t, []byte("%PDF-1.4 fallback"), f.Fetch(context.Background()))
}

func TestSplitS3URL(t *testing.T) {
	bucket, key, err := splitS3URL("s3://my-bucket/deep/path/pad.pdf")
	require.NoError(t, err)
	assert.Equal(t, "my-bucket", bucket)
	assert.Equal(t, "deep/path/pad.pdf", key)

	_, _, err = splitS3URL("s3://only-bucket")
	assert.Error(t, err)
}

func TestFetchNoCandidates(t *testing.T) {
	f := NewTemplateFetcher(nil, nil, nil, nil)
	assert.Nil(t, f.Fetch(context.Background()))
}
