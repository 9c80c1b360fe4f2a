package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type Store struct {
	client        *minio.Client
	bucketName    string
	region        string
	presignExpiry time.Duration
}

// New buat koneksi MinIO
func New(ctx context.Context, endpoint, region, bucket, accessKey, secretKey string, useSSL bool) (*Store, error) {
	cli, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
		Region: region,
	})
	if err != nil {
		return nil, err
	}

	// pastikan bucket ada
	exists, err := cli.BucketExists(ctx, bucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := cli.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region}); err != nil {
			return nil, err
		}
	}

	return &Store{client: cli, bucketName: bucket, region: region}, nil
}

// WithPresign makes Sign return presigned GET URLs valid for expiry.
// Put keeps returning the plain object URL so stored links never go stale.
func (s *Store) WithPresign(expiry time.Duration) *Store {
	s.presignExpiry = expiry
	return s
}

// Put implementasi ArtifactStore. Menulis ulang object dengan key yang sama.
func (s *Store) Put(ctx context.Context, key string, body []byte, contentType string) (string, error) {
	if contentType == "" {
		contentType = contentTypeFor(key)
	}
	_, err := s.client.PutObject(ctx, s.bucketName, key, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("put %s: %w", key, err)
	}

	return ObjectURL(s.client.EndpointURL(), s.bucketName, key), nil
}

// Sign presigns a URL returned by Put. Without presigning, or for URLs that
// point outside this bucket, the URL is returned unchanged.
func (s *Store) Sign(ctx context.Context, artifactURL string) (string, error) {
	if s.presignExpiry <= 0 {
		return artifactURL, nil
	}
	key, ok := ObjectKey(s.client.EndpointURL(), s.bucketName, artifactURL)
	if !ok {
		return artifactURL, nil
	}
	u, err := s.client.PresignedGetObject(ctx, s.bucketName, key, s.presignExpiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return u.String(), nil
}

// Ping checks the bucket is reachable; used by the health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.client.BucketExists(ctx, s.bucketName)
	return err
}

// ObjectURL builds the path-style URL of an object.
func ObjectURL(endpoint *url.URL, bucket, key string) string {
	scheme := endpoint.Scheme
	if scheme == "" {
		scheme = "http"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, endpoint.Host, bucket, key)
}

// ObjectKey is the inverse of ObjectURL. It reports false when raw is not a
// path-style URL of bucket on endpoint.
func ObjectKey(endpoint *url.URL, bucket, raw string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil || u.Host != endpoint.Host {
		return "", false
	}
	key, ok := strings.CutPrefix(u.Path, "/"+bucket+"/")
	if !ok || key == "" {
		return "", false
	}
	return key, true
}

// mimeType sederhana
func contentTypeFor(key string) string {
	switch path.Ext(key) {
	case ".json":
		return "application/json"
	case ".html":
		return "text/html; charset=utf-8"
	case ".pdf":
		return "application/pdf"
	}
	return "application/octet-stream"
}

// ArtifactKey is the tenant scoped object key of an audit document.
func ArtifactKey(tenant, auditID, ext string) string {
	return fmt.Sprintf("%s/audits/%s.%s", tenant, auditID, ext)
}
