package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// presignTTL is how long a signed upload URL stays valid.
const presignTTL = 15 * time.Minute

// S3Options configures an S3-compatible bucket.
type S3Options struct {
	Bucket        string
	Region        string
	Endpoint      string // custom endpoint for MinIO and friends
	PathStyle     bool
	PublicBaseURL string // when set, Put returns browsable URLs instead of s3:// references
}

// S3Store stores resumes in a bucket.
type S3Store struct {
	client        *s3.Client
	bucket        string
	publicBaseURL string
}

// NewS3Store loads AWS credentials from the default chain.
func NewS3Store(ctx context.Context, opts S3Options) (*S3Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(opts.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.PathStyle
	})
	return &S3Store{
		client:        client,
		bucket:        opts.Bucket,
		publicBaseURL: strings.TrimRight(opts.PublicBaseURL, "/"),
	}, nil
}

// Put uploads body under key.
func (s *S3Store) Put(ctx context.Context, key string, body []byte, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}
	return s.ref(key), nil
}

func (s *S3Store) ref(key string) string {
	if s.publicBaseURL != "" {
		return s.publicBaseURL + "/" + key
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, key)
}

// Owns reports whether ref names an object below KeyPrefix in this store's bucket.
func (s *S3Store) Owns(ref string) bool {
	_, _, ok := s.parseRef(ref)
	return ok
}

// PresignUpload signs a PUT of a new resume object, valid for presignTTL.
func (s *S3Store) PresignUpload(ctx context.Context, filename, contentType string) (*UploadTarget, error) {
	key := NewKey(filename)
	req, err := s3.NewPresignClient(s.client).PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(presignTTL))
	if err != nil {
		return nil, fmt.Errorf("presign put object: %w", err)
	}

	// signed header names are lowercase; the client must send all but Host
	headers := make(map[string]string, len(req.SignedHeader))
	for name, values := range req.SignedHeader {
		if strings.EqualFold(name, "host") || len(values) == 0 {
			continue
		}
		headers[http.CanonicalHeaderKey(name)] = strings.Join(values, ",")
	}
	return &UploadTarget{
		URL:       req.URL,
		Method:    req.Method,
		Headers:   headers,
		Key:       key,
		Ref:       s.ref(key),
		ExpiresAt: time.Now().Add(presignTTL).UTC(),
	}, nil
}

// Get downloads an s3:// reference or a public URL under PublicBaseURL.
func (s *S3Store) Get(ctx context.Context, ref string) ([]byte, error) {
	bucket, key, ok := s.parseRef(ref)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownReference, ref)
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get object: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read object: %w", err)
	}
	return data, nil
}

// parseRef accepts s3://<bucket>/<key> and public URLs, only for this
// store's bucket and keys below KeyPrefix.
func (s *S3Store) parseRef(ref string) (bucket, key string, ok bool) {
	if rest, found := strings.CutPrefix(ref, "s3://"); found {
		bucket, key, ok = strings.Cut(rest, "/")
		if !ok || bucket != s.bucket || !ownedKey(key) {
			return "", "", false
		}
		return bucket, key, true
	}
	if s.publicBaseURL != "" {
		if key, found := strings.CutPrefix(ref, s.publicBaseURL+"/"); found && ownedKey(key) {
			return s.bucket, key, true
		}
	}
	return "", "", false
}
