package service

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/heapql/internal/parser/hprof/hproftest"
	"github.com/heapql/pkg/config"
	"github.com/heapql/pkg/utils"
)

const testSnapshot = "app.hprof"

// sampleDump holds two strings, a holder object and a string array.
func sampleDump() []byte {
	w := hproftest.NewWriter(8)
	w.Class(0x100, 0, "java/lang/Object", 0, nil, nil)
	w.Class(0x101, 0x100, "java/lang/String", 8, nil, []hproftest.Field{
		{Name: "value", Type: hproftest.Object},
		{Name: "hash", Type: hproftest.Int},
	})
	w.Class(0x102, 0x100, "com/example/Holder", 16, nil, []hproftest.Field{
		{Name: "name", Type: hproftest.Object},
		{Name: "size", Type: hproftest.Long},
		{Name: "flag", Type: hproftest.Boolean},
	})
	w.Class(0x103, 0x100, "[Ljava/lang/String;", 0, nil, nil)

	w.PrimitiveArray(0x300, hproftest.Char, []interface{}{"h", "i"})
	w.PrimitiveArray(0x301, hproftest.Char, []interface{}{"y", "o"})
	w.Instance(0x201, 0x101, []byte{hproftest.Object, hproftest.Int}, []interface{}{uint64(0x300), 0})
	w.Instance(0x203, 0x101, []byte{hproftest.Object, hproftest.Int}, []interface{}{uint64(0x301), 0})
	w.Instance(0x200, 0x102,
		[]byte{hproftest.Object, hproftest.Long, hproftest.Boolean},
		[]interface{}{uint64(0x201), int64(42), true})
	w.ObjectArray(0x202, 0x103, []uint64{0x201, 0x203})

	w.Root(0x05, 0x102)
	w.Root(0x01, 0x200)
	w.Root(0x01, 0x202)
	return w.Bytes()
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dumps := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dumps, testSnapshot), sampleDump(), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dumps, "empty.hprof"), nil, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dumps, "bad.hprof"), []byte("not a heap dump"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dumps, "notes.txt"), []byte("x"), 0644))

	cfg := config.Default()
	cfg.Storage.Type = "local"
	cfg.Storage.LocalPath = dumps
	cfg.Snapshots.CacheDir = t.TempDir()
	cfg.Database.Type = "sqlite"
	cfg.Database.Path = ""
	return cfg
}

func newTestService(t *testing.T, mutate ...func(*config.Config)) *Service {
	t.Helper()
	cfg := testConfig(t)
	for _, m := range mutate {
		m(cfg)
	}
	svc, err := New(cfg, &utils.NullLogger{})
	require.NoError(t, err)
	require.NoError(t, svc.Initialize(t.Context()))
	t.Cleanup(func() { svc.Close() })
	return svc
}
