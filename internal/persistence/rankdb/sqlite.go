package rankdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"futdrill.ai/internal/catalogs"
	"futdrill.ai/internal/playlist"
	"futdrill.ai/internal/sim/tuning"
)

// SQLiteRanking stores finished playlists and every left attempt. Writes go
// through a buffered channel to a single writer goroutine and are dropped
// when it falls behind, so the simulation loop never blocks on disk.
type SQLiteRanking struct {
	db  *sql.DB
	log *log.Logger
	now func() time.Time

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropResult  atomic.Uint64
	dropAttempt atomic.Uint64
}

type reqKind int

const (
	reqResult reqKind = iota + 1
	reqAttempt
)

type req struct {
	kind reqKind
	at   string

	result  playlist.Result
	attempt playlist.Attempt
}

type Options struct {
	Logger *log.Logger
	// Queue capacity; 0 means 4096.
	Buffer int
	Now    func() time.Time
}

func Open(path string, opts Options) (*SQLiteRanking, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	if opts.Buffer <= 0 {
		opts.Buffer = 4096
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard, "", 0)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &SQLiteRanking{
		db:  db,
		log: opts.Logger,
		now: opts.Now,
		ch:  make(chan req, opts.Buffer),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS playlist_results (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			playlist TEXT NOT NULL,
			total_elapsed REAL NOT NULL,
			total_kicks INTEGER NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_results_playlist_elapsed ON playlist_results(playlist, total_elapsed, total_kicks);`,
		`CREATE TABLE IF NOT EXISTS attempts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			playlist TEXT NOT NULL,
			scenario TEXT NOT NULL,
			scenario_index INTEGER NOT NULL,
			generation INTEGER NOT NULL,
			outcome TEXT NOT NULL,
			reason TEXT,
			elapsed REAL NOT NULL,
			kicks INTEGER NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_attempts_playlist_scenario ON attempts(playlist, scenario_index, id);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// Close drains the queue, commits and closes the database.
func (s *SQLiteRanking) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteRanking) stamp() string { return s.now().UTC().Format(time.RFC3339Nano) }

// PlaylistCompleted implements playlist.ResultSink.
func (s *SQLiteRanking) PlaylistCompleted(r playlist.Result) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqResult, at: s.stamp(), result: r}:
	default:
		s.dropResult.Add(1)
	}
}

// AttemptFinished implements playlist.AttemptSink.
func (s *SQLiteRanking) AttemptFinished(a playlist.Attempt) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqAttempt, at: s.stamp(), attempt: a}:
	default:
		s.dropAttempt.Add(1)
	}
}

type Stats struct {
	QueueDepth       int
	QueueCapacity    int
	DropResultTotal  uint64
	DropAttemptTotal uint64
}

func (s *SQLiteRanking) Stats() Stats {
	return Stats{
		QueueDepth:       len(s.ch),
		QueueCapacity:    cap(s.ch),
		DropResultTotal:  s.dropResult.Load(),
		DropAttemptTotal: s.dropAttempt.Load(),
	}
}

// UpsertCatalogs records which maps, playlists and tuning the server ran
// with. It writes synchronously and is meant for startup.
func (s *SQLiteRanking) UpsertCatalogs(cats *catalogs.Catalogs, tune tuning.Tuning) error {
	if s == nil {
		return nil
	}
	now := s.stamp()

	type kv struct {
		name   string
		digest string
		json   []byte
	}
	var rows []kv
	if cats != nil {
		maps := make([]string, 0, len(cats.Maps))
		for name := range cats.Maps {
			maps = append(maps, name)
		}
		sort.Strings(maps)
		if b, _ := json.Marshal(maps); len(b) > 0 {
			rows = append(rows, kv{name: "maps", digest: cats.MapsDigest, json: b})
		}
		if b, _ := json.Marshal(cats.PlaylistNames()); len(b) > 0 {
			rows = append(rows, kv{name: "playlists", digest: cats.PlaylistsDigest, json: b})
		}
	}
	{
		b, _ := json.Marshal(tune)
		sum := sha256.Sum256(b)
		rows = append(rows, kv{name: "tuning", digest: hex.EncodeToString(sum[:]), json: b})
	}

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		if r.digest == "" || len(r.json) == 0 {
			continue
		}
		if _, err := stmt.Exec(r.name, r.digest, string(r.json), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteRanking) loop() {
	ctx := context.Background()

	insertResult, err := s.db.Prepare(`INSERT INTO playlist_results(playlist,total_elapsed,total_kicks,recorded_at) VALUES(?,?,?,?)`)
	if err != nil {
		s.log.Printf("rankdb: prepare results: %v", err)
	}
	insertAttempt, err := s.db.Prepare(`INSERT INTO attempts(playlist,scenario,scenario_index,generation,outcome,reason,elapsed,kicks,recorded_at) VALUES(?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		s.log.Printf("rankdb: prepare attempts: %v", err)
	}
	defer func() {
		if insertResult != nil {
			_ = insertResult.Close()
		}
		if insertAttempt != nil {
			_ = insertAttempt.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		commitEvery   = 256
		commitMaxWait = 500 * time.Millisecond
	)
	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			s.log.Printf("rankdb: begin: %v", err)
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
	}
	commit := func() {
		if tx == nil {
			return
		}
		if err := tx.Commit(); err != nil {
			s.log.Printf("rankdb: commit: %v", err)
		}
		tx = nil
		opCount = 0
	}
	rollback := func(err error) {
		s.log.Printf("rankdb: write: %v", err)
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
	}

	flush := time.NewTicker(commitMaxWait)
	defer flush.Stop()

	for {
		select {
		case <-flush.C:
			commit()
			continue
		case r, ok := <-s.ch:
			if !ok {
				commit()
				return
			}
			begin()
			if tx == nil {
				continue
			}
			switch r.kind {
			case reqResult:
				if insertResult == nil {
					continue
				}
				res := r.result
				if _, err := tx.Stmt(insertResult).Exec(res.PlaylistName, res.TotalElapsed, res.TotalKicks, r.at); err != nil {
					rollback(err)
					continue
				}
				opCount++
			case reqAttempt:
				if insertAttempt == nil {
					continue
				}
				a := r.attempt
				if _, err := tx.Stmt(insertAttempt).Exec(
					a.Playlist,
					a.Scenario,
					a.Index,
					int64(a.Generation),
					a.Outcome,
					a.Reason,
					a.Elapsed,
					a.Kicks,
					r.at,
				); err != nil {
					rollback(err)
					continue
				}
				opCount++
			}
			if opCount >= commitEvery {
				commit()
			}
		}
	}
}
