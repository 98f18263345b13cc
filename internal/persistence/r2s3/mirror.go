package r2s3

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Marker is uploaded last so a reader never sees a partial run.
const Marker = "meta.json"

type Uploader interface {
	PutFile(ctx context.Context, key, localPath string) error
}

type Stats struct {
	QueueDepth    int
	QueueCapacity int
	RunsUploaded  uint64
	RunsFailed    uint64
	RunsDropped   uint64
	FilesUploaded uint64
}

type MirrorOptions struct {
	Prefix   string
	Workers  int
	Queue    int
	Attempts int
	Backoff  time.Duration // first retry delay; grows quadratically
	Logger   *log.Logger
}

// RunMirror uploads archived run directories. Keys are the directory's path
// relative to root, under Prefix.
type RunMirror struct {
	up   Uploader
	root string
	opts MirrorOptions
	log  *log.Logger

	jobs chan string
	wg   sync.WaitGroup
	once sync.Once

	uploaded atomic.Uint64
	failed   atomic.Uint64
	dropped  atomic.Uint64
	files    atomic.Uint64
}

func NewRunMirror(up Uploader, root string, opts MirrorOptions) *RunMirror {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Queue <= 0 {
		opts.Queue = 64
	}
	if opts.Attempts <= 0 {
		opts.Attempts = 4
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 200 * time.Millisecond
	}
	opts.Prefix = strings.Trim(strings.ReplaceAll(opts.Prefix, "\\", "/"), "/")
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	m := &RunMirror{
		up:   up,
		root: root,
		opts: opts,
		log:  logger,
		jobs: make(chan string, opts.Queue),
	}
	for i := 0; i < opts.Workers; i++ {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			for dir := range m.jobs {
				m.uploadRun(dir)
			}
		}()
	}
	return m
}

// EnqueueRun never blocks; a full queue drops the run.
func (m *RunMirror) EnqueueRun(dir string) {
	if m == nil {
		return
	}
	select {
	case m.jobs <- dir:
	default:
		n := m.dropped.Add(1)
		m.log.Printf("r2 mirror drop run=%s reason=queue_full dropped_total=%d", dir, n)
	}
}

// Close waits for queued runs to finish uploading.
func (m *RunMirror) Close() {
	if m == nil {
		return
	}
	m.once.Do(func() {
		close(m.jobs)
		m.wg.Wait()
	})
}

func (m *RunMirror) Stats() Stats {
	if m == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:    len(m.jobs),
		QueueCapacity: cap(m.jobs),
		RunsUploaded:  m.uploaded.Load(),
		RunsFailed:    m.failed.Load(),
		RunsDropped:   m.dropped.Load(),
		FilesUploaded: m.files.Load(),
	}
}

func (m *RunMirror) uploadRun(dir string) {
	files, err := runFiles(dir)
	if err != nil {
		m.failed.Add(1)
		m.log.Printf("r2 mirror skip run=%s err=%v", dir, err)
		return
	}
	for _, f := range files {
		key, err := m.objectKey(f)
		if err == nil {
			err = m.putWithRetry(key, f)
		}
		if err != nil {
			m.failed.Add(1)
			m.log.Printf("r2 mirror upload failed run=%s file=%s err=%v", dir, filepath.Base(f), err)
			return
		}
		m.files.Add(1)
	}
	m.uploaded.Add(1)
	m.log.Printf("r2 mirror uploaded run=%s files=%d", dir, len(files))
}

// runFiles lists a run's regular files with the marker moved to the end.
func runFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	hasMarker := false
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if e.Name() == Marker {
			hasMarker = true
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	if !hasMarker {
		return nil, fmt.Errorf("no %s", Marker)
	}
	sort.Strings(out)
	return append(out, filepath.Join(dir, Marker)), nil
}

func (m *RunMirror) putWithRetry(key, localPath string) error {
	var lastErr error
	for attempt := 1; attempt <= m.opts.Attempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		err := m.up.PutFile(ctx, key, localPath)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err
		if attempt < m.opts.Attempts {
			time.Sleep(time.Duration(attempt*attempt) * m.opts.Backoff)
		}
	}
	return lastErr
}

func (m *RunMirror) objectKey(localPath string) (string, error) {
	absRoot, err := filepath.Abs(m.root)
	if err != nil {
		return "", err
	}
	absLocal, err := filepath.Abs(localPath)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(absRoot, absLocal)
	if err != nil {
		return "", err
	}
	rel = filepath.ToSlash(rel)
	if rel == "." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("path %s is outside %s", absLocal, absRoot)
	}
	if m.opts.Prefix != "" {
		rel = path.Join(m.opts.Prefix, rel)
	}
	return rel, nil
}
