package replay

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"

	"futdrill.ai/internal/persistence/snapshot"
	"futdrill.ai/internal/sim/world"
)

// TickEntry is one recorded tick: the inputs every entity used and the world
// digest after the step.
type TickEntry struct {
	Tick    uint64                 `json:"tick"`
	SimTime float64                `json:"sim_time"`
	Inputs  map[string]world.Input `json:"inputs,omitempty"`
	Digest  string                 `json:"digest"`
}

const (
	SnapshotSuffix = ".snap.zst"
	TicksSuffix    = ".jsonl.zst"
)

// AttemptName is the file stem shared by an attempt's snapshot and tick log.
func AttemptName(snap snapshot.SnapshotV1) string {
	return Stem(snap.Header.Generation, snap.Header.Scenario)
}

func Stem(generation uint64, scenario string) string {
	return fmt.Sprintf("%08d-%s", generation, SanitizeName(scenario))
}

// SanitizeName maps s to a file-name-safe stem.
func SanitizeName(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, s)
}

// Writer stores every scenario attempt as a snapshot plus a zstd JSONL tick
// log under baseDir.
type Writer struct {
	baseDir string

	mu  sync.Mutex
	cur string
	f   *os.File
	enc *zstd.Encoder
	w   *bufio.Writer
}

func NewWriter(baseDir string) *Writer {
	return &Writer{baseDir: baseDir}
}

func (w *Writer) BeginScenario(snap snapshot.SnapshotV1) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.closeLocked(); err != nil {
		return err
	}
	name := AttemptName(snap)
	if err := snapshot.WriteSnapshot(filepath.Join(w.baseDir, name+SnapshotSuffix), snap); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(w.baseDir, name+TicksSuffix), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
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
	w.w = bufio.NewWriterSize(enc, 128*1024)
	w.cur = name
	return nil
}

// RecordTick appends to the current attempt. Entries before the first
// BeginScenario are dropped.
func (w *Writer) RecordTick(e TickEntry) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.w == nil {
		return nil
	}
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	return w.w.WriteByte('\n')
}

// Current is the file stem of the attempt being written.
func (w *Writer) Current() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cur
}

// EndScenario seals the current attempt. Ticks recorded afterwards are
// dropped until the next BeginScenario.
func (w *Writer) EndScenario() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *Writer) closeLocked() error {
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
