package fetch

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jbigot/pkg-builder/internal/cancel"
	"github.com/jbigot/pkg-builder/internal/models"
	"github.com/jbigot/pkg-builder/internal/utils"
)

// retryTimeouts are the per-attempt timeouts; the last one's failure is
// surfaced as a permanent download error.
var retryTimeouts = []time.Duration{
	1 * time.Second, 2 * time.Second, 3 * time.Second, 5 * time.Second, 7 * time.Second,
}

// Downloader fetches URLs into a private cache directory keyed by URL. The
// first caller for a URL downloads; later callers wait for completion and
// hardlink from the cache.
type Downloader struct {
	bus *cancel.Bus
	dir string

	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	done chan struct{}
	path string
	err  error
}

// NewDownloader creates the cache directory. Close removes it.
func NewDownloader(bus *cancel.Bus) (*Downloader, error) {
	dir, err := os.MkdirTemp("", "DOWNLOAD_DIR.")
	if err != nil {
		return nil, err
	}
	return &Downloader{bus: bus, dir: dir, entries: make(map[string]*entry)}, nil
}

// Close removes the cache directory.
func (d *Downloader) Close() {
	os.RemoveAll(d.dir)
}

// Download fetches url into path, serving repeats from the cache. Late
// arrivals for an in-flight URL block until the first download completes.
func (d *Downloader) Download(url, path string) error {
	if err := d.bus.Check(); err != nil {
		return err
	}

	d.mu.Lock()
	e, cached := d.entries[url]
	if !cached {
		e = &entry{done: make(chan struct{}), path: filepath.Join(d.dir, utils.URLKey(url))}
		d.entries[url] = e
	}
	d.mu.Unlock()

	if cached {
		logrus.Debugf("downloading %s: in cache", url)
		if err := d.wait(e); err != nil {
			return err
		}
	} else {
		logrus.Infof("downloading %s", url)
		e.err = d.fetch(url, e.path)
		close(e.done)
		if e.err != nil {
			return e.err
		}
	}
	return utils.LinkOrCopy(e.path, path)
}

// wait blocks on the entry while staying responsive to cancellation.
func (d *Downloader) wait(e *entry) error {
	for {
		select {
		case <-e.done:
			return e.err
		case <-time.After(10 * time.Millisecond):
			if err := d.bus.Check(); err != nil {
				return err
			}
		}
	}
}

func (d *Downloader) fetch(url, path string) error {
	var lastErr error
	for _, timeout := range retryTimeouts {
		if err := d.bus.Check(); err != nil {
			return err
		}
		lastErr = fetchOnce(url, path, timeout)
		if lastErr == nil {
			return nil
		}
		logrus.Debugf("downloading %s: %v (will retry)", url, lastErr)
	}
	return &models.DownloadError{URL: url, Err: lastErr}
}

func fetchOnce(url, path string, timeout time.Duration) error {
	client := &http.Client{Timeout: timeout}
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}
