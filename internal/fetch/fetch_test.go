package fetch

import (
	"archive/tar"
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"

	"github.com/jbigot/pkg-builder/internal/cancel"
	"github.com/jbigot/pkg-builder/internal/models"
)

func tarball(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "hello.txt", Mode: 0o644, Size: 5}))
	_, err := tw.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	return buf.Bytes()
}

func writeTemp(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "blob")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestSniffExtGzip(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write(tarball(t))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	ext, err := SniffExt(writeTemp(t, buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, "tar.gz", ext)
}

func TestSniffExtXz(t *testing.T) {
	var buf bytes.Buffer
	xw, err := xz.NewWriter(&buf)
	require.NoError(t, err)
	_, err = xw.Write(tarball(t))
	require.NoError(t, err)
	require.NoError(t, xw.Close())

	ext, err := SniffExt(writeTemp(t, buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, "tar.xz", ext)
}

func TestSniffExtZstd(t *testing.T) {
	var buf bytes.Buffer
	zw, err := zstd.NewWriter(&buf)
	require.NoError(t, err)
	_, err = zw.Write(tarball(t))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	ext, err := SniffExt(writeTemp(t, buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, "tar.zst", ext)
}

func TestSniffExtPlainTar(t *testing.T) {
	ext, err := SniffExt(writeTemp(t, tarball(t)))
	require.NoError(t, err)
	assert.Equal(t, "tar", ext)
}

func TestSniffExtUnknown(t *testing.T) {
	_, err := SniffExt(writeTemp(t, []byte("plain text, not an archive at all")))
	assert.Error(t, err)
}

func TestSniffExtCorruptGzip(t *testing.T) {
	// gzip magic followed by garbage must not pass as tar.gz
	data := append([]byte{0x1F, 0x8B}, []byte("garbage")...)
	_, err := SniffExt(writeTemp(t, data))
	assert.Error(t, err)
}

func TestDownloadCachesByURL(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte("payload"))
	}))
	defer srv.Close()

	bus := cancel.NewBus()
	d, err := NewDownloader(bus)
	require.NoError(t, err)
	defer d.Close()

	dir := t.TempDir()
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			dest := filepath.Join(dir, "copy", string(rune('a'+i)))
			assert.NoError(t, d.Download(srv.URL+"/file", dest))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), hits.Load())
	for i := 0; i < 4; i++ {
		data, err := os.ReadFile(filepath.Join(dir, "copy", string(rune('a'+i))))
		require.NoError(t, err)
		assert.Equal(t, "payload", string(data))
	}
}

func TestDownloadRetriesThenFails(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	bus := cancel.NewBus()
	d, err := NewDownloader(bus)
	require.NoError(t, err)
	defer d.Close()

	err = d.Download(srv.URL+"/missing", filepath.Join(t.TempDir(), "out"))
	var dlErr *models.DownloadError
	require.ErrorAs(t, err, &dlErr)
	assert.Equal(t, int32(5), hits.Load())
}

func TestDownloadChecksCancellation(t *testing.T) {
	bus := cancel.NewBus()
	d, err := NewDownloader(bus)
	require.NoError(t, err)
	defer d.Close()

	bus.RequestCancel()
	err = d.Download("http://127.0.0.1:1/unreachable", filepath.Join(t.TempDir(), "out"))
	assert.ErrorIs(t, err, models.ErrCancelled)
}
