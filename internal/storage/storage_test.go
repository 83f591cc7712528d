package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heapql/pkg/config"
)

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  *config.StorageConfig
		want string
	}{
		{"Nil", nil, "storage config is nil"},
		{"UnknownType", &config.StorageConfig{Type: "s3"}, "unsupported storage type"},
		{"LocalWithoutPath", &config.StorageConfig{Type: "local"}, "local storage path is required"},
		{"COSWithoutBucket", &config.StorageConfig{Type: "cos", Region: "r", SecretID: "i", SecretKey: "k"}, "COS bucket is required"},
		{"COSWithoutRegion", &config.StorageConfig{Type: "cos", Bucket: "b", SecretID: "i", SecretKey: "k"}, "COS region is required"},
		{"COSWithoutKeys", &config.StorageConfig{Type: "cos", Bucket: "b", Region: "r"}, "COS credentials are required"},
		{"Local", &config.StorageConfig{Type: "local", LocalPath: "/tmp/x"}, ""},
		{"DefaultIsLocal", &config.StorageConfig{LocalPath: "/tmp/x"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateConfig(tt.cfg)
			if tt.want == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestNewStorage(t *testing.T) {
	s, err := NewStorage(&config.StorageConfig{Type: "local", LocalPath: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &LocalStorage{}, s)

	s, err = NewStorage(&config.StorageConfig{
		Type: "cos", Bucket: "b", Region: "ap-guangzhou", SecretID: "i", SecretKey: "k",
	})
	require.NoError(t, err)
	assert.IsType(t, &COSStorage{}, s)
}

func TestNormalizeKey(t *testing.T) {
	good := map[string]string{
		"a.hprof":         "a.hprof",
		"/dir//a.hprof":   "dir/a.hprof",
		`win\dir\a.hprof`: "win/dir/a.hprof",
		"./x/./y":         "x/y",
	}
	for in, want := range good {
		got, err := normalizeKey(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	for _, in := range []string{"", "/", "..", "a/../../b"} {
		_, err := normalizeKey(in)
		assert.Error(t, err, in)
	}
}
