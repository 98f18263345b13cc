// Package auditlog appends session outcomes to hourly zstd-compressed JSONL
// files.
package auditlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"futdrill.ai/internal/playlist"
)

const Suffix = ".jsonl.zst"

type JSONLZstdWriter struct {
	baseDir string
	prefix  string
	now     func() time.Time

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

func NewJSONLZstdWriter(baseDir, prefix string) *JSONLZstdWriter {
	return &JSONLZstdWriter{baseDir: baseDir, prefix: prefix, now: time.Now}
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

// Write appends v as one line. Each hour gets its own file; a file reopened
// within the same hour gets a new zstd frame appended.
func (w *JSONLZstdWriter) Write(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	hour := w.now().UTC().Format("2006-01-02-15")
	if hour != w.curHour || w.w == nil {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *JSONLZstdWriter) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(w.baseDir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(w.PathForHour(hour), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 32*1024)
	w.curHour = hour
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	var err1 error
	if w.w != nil {
		err1 = w.w.Flush()
	}
	if w.enc != nil {
		if err := w.enc.Close(); err1 == nil {
			err1 = err
		}
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	return err1
}

func (w *JSONLZstdWriter) PathForHour(hour string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s%s", w.prefix, hour, Suffix))
}

// Entry is one audit line. Kind is "attempt" or "result".
type Entry struct {
	Kind       string  `json:"kind"`
	At         string  `json:"at"`
	Playlist   string  `json:"playlist"`
	Scenario   string  `json:"scenario,omitempty"`
	Index      int     `json:"index,omitempty"`
	Generation uint64  `json:"generation,omitempty"`
	Outcome    string  `json:"outcome,omitempty"`
	Reason     string  `json:"reason,omitempty"`
	Elapsed    float64 `json:"elapsed"`
	Kicks      int     `json:"kicks"`
}

// Logger is a playlist sink that writes every attempt and finished run.
type Logger struct {
	w   *JSONLZstdWriter
	log *log.Logger
}

func New(dir string, logger *log.Logger) *Logger {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Logger{w: NewJSONLZstdWriter(dir, "audit"), log: logger}
}

func (l *Logger) stamp() string { return l.w.now().UTC().Format(time.RFC3339Nano) }

func (l *Logger) AttemptFinished(a playlist.Attempt) {
	l.write(Entry{
		Kind:       "attempt",
		At:         l.stamp(),
		Playlist:   a.Playlist,
		Scenario:   a.Scenario,
		Index:      a.Index,
		Generation: a.Generation,
		Outcome:    a.Outcome,
		Reason:     a.Reason,
		Elapsed:    a.Elapsed,
		Kicks:      a.Kicks,
	})
}

func (l *Logger) PlaylistCompleted(r playlist.Result) {
	l.write(Entry{
		Kind:     "result",
		At:       l.stamp(),
		Playlist: r.PlaylistName,
		Elapsed:  r.TotalElapsed,
		Kicks:    r.TotalKicks,
	})
}

func (l *Logger) write(e Entry) {
	if err := l.w.Write(e); err != nil {
		l.log.Printf("audit log: %v", err)
	}
}

func (l *Logger) Close() error { return l.w.Close() }

// ReadFile decodes every entry of one audit file.
func ReadFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var out []Entry
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		var e Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return out, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		out = append(out, e)
	}
	return out, sc.Err()
}
