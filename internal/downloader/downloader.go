package downloader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
)

// Job is a single snapshot download.
type Job struct {
	URL      string
	DestPath string
	Base     string // build unit the snapshot belongs to
	Refresh  bool   // download even when DestPath already exists
}

// Result is the outcome of a Job.
type Result struct {
	Job   Job
	Error error
}

// Downloader fetches recipe snapshots with a fixed pool of workers.
type Downloader struct {
	workers  int
	cacheDir string
	client   *http.Client
}

// NewDownloader creates a downloader with the given worker count.
func NewDownloader(workers int, cacheDir string) *Downloader {
	if workers < 1 {
		workers = 1
	}
	return &Downloader{
		workers:  workers,
		cacheDir: cacheDir,
		client:   &http.Client{},
	}
}

// Download runs all jobs and returns one result per job in job order.
func (d *Downloader) Download(ctx context.Context, jobs []Job) []Result {
	results := make([]Result, len(jobs))
	if err := os.MkdirAll(d.cacheDir, 0755); err != nil {
		for i, job := range jobs {
			results[i] = Result{Job: job, Error: err}
		}
		return results
	}

	idx := make(chan int, len(jobs))
	for i := range jobs {
		idx <- i
	}
	close(idx)

	var wg sync.WaitGroup
	for range min(d.workers, len(jobs)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range idx {
				results[i] = Result{Job: jobs[i], Error: d.downloadOne(ctx, jobs[i])}
			}
		}()
	}
	wg.Wait()

	return results
}

func (d *Downloader) downloadOne(ctx context.Context, job Job) error {
	if !job.Refresh {
		if _, err := os.Stat(job.DestPath); err == nil {
			return nil
		}
	}

	if err := os.MkdirAll(filepath.Dir(job.DestPath), 0755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, job.URL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("downloading %s: %w", job.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("downloading %s: HTTP %d", job.URL, resp.StatusCode)
	}

	// write to a temp file first so a partial download never looks cached
	tmpPath := job.DestPath + ".tmp"
	out, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}

	_, err = io.Copy(out, resp.Body)
	out.Close()
	if err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing file: %w", err)
	}

	if err := os.Rename(tmpPath, job.DestPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming file: %w", err)
	}

	return nil
}

// CacheDir returns the cache directory.
func (d *Downloader) CacheDir() string {
	return d.cacheDir
}

// SnapshotPath returns where the snapshot tarball of a build unit is stored.
func (d *Downloader) SnapshotPath(base string) string {
	return filepath.Join(d.cacheDir, "snapshots", base+".tar.gz")
}

// SnapshotJob builds the job fetching the snapshot of base from aurURL.
func (d *Downloader) SnapshotJob(aurURL, base string, refresh bool) Job {
	return Job{
		URL:      fmt.Sprintf("%s/cgit/aur.git/snapshot/%s.tar.gz", aurURL, base),
		DestPath: d.SnapshotPath(base),
		Base:     base,
		Refresh:  refresh,
	}
}
