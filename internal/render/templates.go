package render

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/veldmed/practice-platform/pkg/logging"
)

// S3API is the subset of the S3 client used by the template fetcher.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// TemplateFetcher resolves prescription pad template bytes from an ordered
// list of candidates. Candidates are tried strictly in sequence; the first
// non-empty PDF wins. Nothing is cached across calls.
type TemplateFetcher struct {
	candidates []string
	httpClient *http.Client
	s3Client   S3API
	logger     *logging.Logger
}

// NewTemplateFetcher builds a fetcher over the given candidate URLs. Entries
// may be https:// URLs or s3://bucket/key references; s3 entries are skipped
// when no S3 client is supplied.
func NewTemplateFetcher(candidates []string, httpClient *http.Client, s3Client S3API, logger *logging.Logger) *TemplateFetcher {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &TemplateFetcher{
		candidates: candidates,
		httpClient: httpClient,
		s3Client:   s3Client,
		logger:     logger,
	}
}

// Fetch returns the first candidate that yields non-empty PDF bytes, or nil
// when every candidate fails. A nil result is not an error; the renderer
// falls back to a blank page.
func (f *TemplateFetcher) Fetch(ctx context.Context) []byte {
	for _, candidate := range f.candidates {
		data, err := f.fetchOne(ctx, candidate)
		if err != nil {
			f.logger.Warn("template candidate failed", "url", candidate, "error", err)
			continue
		}
		if len(data) == 0 || !bytes.HasPrefix(data, []byte("%PDF")) {
			f.logger.Warn("template candidate is not a PDF", "url", candidate, "bytes", len(data))
			continue
		}
		f.logger.Info("template resolved", "url", candidate, "bytes", len(data))
		return data
	}
	return nil
}

func (f *TemplateFetcher) fetchOne(ctx context.Context, candidate string) ([]byte, error) {
	if strings.HasPrefix(candidate, "s3://") {
		return f.fetchS3(ctx, candidate)
	}
	return f.fetchHTTP(ctx, candidate)
}

func (f *TemplateFetcher) fetchHTTP(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("render: failed to create template request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("render: template fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("render: template fetch returned status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (f *TemplateFetcher) fetchS3(ctx context.Context, candidate string) ([]byte, error) {
	if f.s3Client == nil {
		return nil, fmt.Errorf("render: s3 template %s but no s3 client configured", candidate)
	}
	bucket, key, err := splitS3URL(candidate)
	if err != nil {
		return nil, err
	}

	out, err := f.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("render: s3 get %s: %w", candidate, err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

func splitS3URL(candidate string) (bucket, key string, err error) {
	rest := strings.TrimPrefix(candidate, "s3://")
	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("render: malformed s3 url %q", candidate)
	}
	return bucket, key, nil
}
