package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/tencentyun/cos-go-sdk-v5"
)

// COSConfig holds COS-specific configuration.
type COSConfig struct {
	Bucket    string
	Region    string
	SecretID  string
	SecretKey string
	Domain    string // defaults to myqcloud.com
	Scheme    string // defaults to https
}

// COSStorage keeps objects in a Tencent Cloud COS bucket.
type COSStorage struct {
	client    *cos.Client
	bucket    string
	bucketURL *url.URL
}

// NewCOSStorage creates a COS backend.
func NewCOSStorage(cfg *COSConfig) (*COSStorage, error) {
	if cfg.Bucket == "" || cfg.Region == "" {
		return nil, fmt.Errorf("bucket and region are required for COS storage")
	}
	if cfg.SecretID == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("credentials are required for COS storage")
	}
	domain := cfg.Domain
	if domain == "" {
		domain = "myqcloud.com"
	}
	scheme := cfg.Scheme
	if scheme == "" {
		scheme = "https"
	}

	bucketURL, err := url.Parse(fmt.Sprintf("%s://%s.cos.%s.%s", scheme, cfg.Bucket, cfg.Region, domain))
	if err != nil {
		return nil, fmt.Errorf("failed to parse bucket URL: %w", err)
	}
	transport := &cos.AuthorizationTransport{SecretID: cfg.SecretID, SecretKey: cfg.SecretKey}
	return newCOSStorage(cfg.Bucket, bucketURL, &http.Client{Transport: transport}), nil
}

func newCOSStorage(bucket string, bucketURL *url.URL, httpClient *http.Client) *COSStorage {
	client := cos.NewClient(&cos.BaseURL{BucketURL: bucketURL}, httpClient)
	return &COSStorage{client: client, bucket: bucket, bucketURL: bucketURL}
}

func isCOSNotFound(err error) bool {
	var resp *cos.ErrorResponse
	return errors.As(err, &resp) && resp.Response != nil && resp.Response.StatusCode == http.StatusNotFound
}

func (s *COSStorage) wrap(msg, key string, err error) error {
	if isCOSNotFound(err) {
		return notFound(key)
	}
	return storageError(msg, err)
}

// Open streams the object body.
func (s *COSStorage) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	k, err := normalizeKey(key)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Object.Get(ctx, k, nil)
	if err != nil {
		return nil, s.wrap("failed to download from COS", key, err)
	}
	return resp.Body, nil
}

// Put uploads r to key.
func (s *COSStorage) Put(ctx context.Context, key string, r io.Reader) error {
	k, err := normalizeKey(key)
	if err != nil {
		return err
	}
	if _, err := s.client.Object.Put(ctx, k, r, nil); err != nil {
		return storageError("failed to upload to COS", err)
	}
	return nil
}

// Stat issues a HEAD request for key.
func (s *COSStorage) Stat(ctx context.Context, key string) (*ObjectInfo, error) {
	k, err := normalizeKey(key)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Object.Head(ctx, k, nil)
	if err != nil {
		return nil, s.wrap("failed to stat COS object", key, err)
	}
	info := &ObjectInfo{Key: k, Size: resp.ContentLength}
	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		if t, err := http.ParseTime(lm); err == nil {
			info.ModTime = t
		}
	}
	return info, nil
}

// List pages through the bucket listing.
func (s *COSStorage) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var out []ObjectInfo
	opt := &cos.BucketGetOptions{Prefix: prefix, MaxKeys: 1000}
	for {
		res, _, err := s.client.Bucket.Get(ctx, opt)
		if err != nil {
			return nil, storageError("failed to list COS objects", err)
		}
		for _, obj := range res.Contents {
			info := ObjectInfo{Key: obj.Key, Size: obj.Size}
			if t, err := time.Parse(time.RFC3339, obj.LastModified); err == nil {
				info.ModTime = t
			}
			out = append(out, info)
		}
		if !res.IsTruncated {
			break
		}
		next := res.NextMarker
		if next == "" && len(res.Contents) > 0 {
			next = res.Contents[len(res.Contents)-1].Key
		}
		if next == "" || next == opt.Marker {
			break
		}
		opt.Marker = next
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Fetch downloads key below cacheDir/<bucket>/ unless a copy of the same
// size is already there.
func (s *COSStorage) Fetch(ctx context.Context, key, cacheDir string) (string, error) {
	k, err := normalizeKey(key)
	if err != nil {
		return "", err
	}
	info, err := s.Stat(ctx, k)
	if err != nil {
		return "", err
	}
	local := s.cachePath(cacheDir, k)
	if fi, err := os.Stat(local); err == nil && fi.Size() == info.Size {
		return local, nil
	}
	if err := os.MkdirAll(filepath.Dir(local), 0755); err != nil {
		return "", storageError("failed to create cache directory", err)
	}

	tmp := local + ".part"
	defer os.Remove(tmp)
	if _, err := s.client.Object.GetToFile(ctx, k, tmp, nil); err != nil {
		return "", s.wrap("failed to download file from COS", key, err)
	}
	if err := os.Rename(tmp, local); err != nil {
		return "", storageError("failed to move download into cache", err)
	}
	return local, nil
}

func (s *COSStorage) cachePath(cacheDir, key string) string {
	return filepath.Join(cacheDir, s.bucket, filepath.FromSlash(key))
}

// Delete removes key.
func (s *COSStorage) Delete(ctx context.Context, key string) error {
	k, err := normalizeKey(key)
	if err != nil {
		return err
	}
	if _, err := s.client.Object.Delete(ctx, k, nil); err != nil && !isCOSNotFound(err) {
		return storageError("failed to delete from COS", err)
	}
	return nil
}

// URL returns the object URL.
func (s *COSStorage) URL(key string) string {
	k, err := normalizeKey(key)
	if err != nil {
		return ""
	}
	return s.bucketURL.String() + "/" + k
}
