package writer

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heapql/pkg/compression"
)

type testData struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

func TestJSONWriter_Write(t *testing.T) {
	data := testData{Name: "test", Value: 42}

	t.Run("compact output", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewJSONWriter[testData]().Write(data, &buf))
		assert.Equal(t, `{"name":"test","value":42}`+"\n", buf.String())
	})

	t.Run("pretty output", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewPrettyJSONWriter[testData]().Write(data, &buf))
		assert.Contains(t, buf.String(), "\n  \"name\": \"test\"")
	})
}

func TestJSONWriter_Compressed(t *testing.T) {
	rows := make([]testData, 200)
	for i := range rows {
		rows[i] = testData{Name: strings.Repeat("x", 20), Value: i}
	}

	for _, ct := range []compression.Type{compression.TypeGzip, compression.TypeZstd} {
		t.Run(ct.String(), func(t *testing.T) {
			w := NewCompressedJSONWriter[[]testData](ct)
			assert.Equal(t, ".json"+ct.Extension(), w.Extension())

			out, stats, err := w.EncodeWithStats(rows)
			require.NoError(t, err)
			assert.Less(t, stats.CompressedSize, stats.JSONSize)
			assert.Equal(t, int64(len(out)), stats.CompressedSize)

			rc, detected, err := compression.NewReader(bytes.NewReader(out))
			require.NoError(t, err)
			defer rc.Close()
			assert.Equal(t, ct, detected)

			var got []testData
			require.NoError(t, json.NewDecoder(rc).Decode(&got))
			assert.Equal(t, rows, got)
		})
	}
}

func TestJSONWriter_WriteToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	require.NoError(t, NewJSONWriter[testData]().WriteToFile(testData{Name: "f"}, path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	b, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"f","value":0}`, string(b))

	err = NewJSONWriter[testData]().WriteToFile(testData{}, filepath.Join(t.TempDir(), "missing", "x.json"))
	assert.Error(t, err)
}

func TestJSONWriter_EncodeError(t *testing.T) {
	_, err := NewJSONWriter[interface{}]().Encode(func() {})
	assert.Error(t, err)
}
