package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"futdrill.ai/internal/catalogs"
	"futdrill.ai/internal/observerproto"
	"futdrill.ai/internal/persistence/archive"
	"futdrill.ai/internal/persistence/auditlog"
	"futdrill.ai/internal/persistence/r2s3"
	"futdrill.ai/internal/persistence/rankdb"
	"futdrill.ai/internal/persistence/replay"
	"futdrill.ai/internal/playlist"
	"futdrill.ai/internal/sim/clock"
	"futdrill.ai/internal/sim/tuning"
	"futdrill.ai/internal/transport/observer"
)

func main() {
	var (
		addr           = flag.String("addr", "127.0.0.1:8080", "http listen address")
		configDir      = flag.String("configs", "./configs", "config directory")
		tuningPath     = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		playlistName   = flag.String("playlist", "basics", "playlist to run")
		dataDir        = flag.String("data", "./data", "runtime data directory")
		disableDB      = flag.Bool("disable_db", false, "disable the ranking database")
		disableReplay  = flag.Bool("disable_replay", false, "do not record replays")
		noAutoProgress = flag.Bool("no_auto_progress", false, "wait for a command after a failed scenario instead of retrying")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
	}

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}
	pl, err := cats.Playlist(*playlistName)
	if err != nil {
		logger.Fatalf("playlist: %v (have %s)", err, strings.Join(cats.PlaylistNames(), ", "))
	}

	cfg := playlist.Config{
		Playlist:            pl,
		Tuning:              tune,
		Logger:              logger,
		DisableAutoProgress: *noAutoProgress,
	}

	// Optional: ranking backend (does not affect sim determinism).
	var rank *rankdb.SQLiteRanking
	if !*disableDB {
		rank, err = rankdb.Open(filepath.Join(*dataDir, "rank", "rank.sqlite"), rankdb.Options{Logger: logger})
		if err != nil {
			logger.Fatalf("open ranking db: %v", err)
		}
		defer rank.Close()
		if err := rank.UpsertCatalogs(cats, tune); err != nil {
			logger.Printf("ranking db: upsert catalogs: %v", err)
		}
	}

	// Replays of every attempt; finished runs are copied to the archive.
	var arch *archive.RunArchive
	var mirror *r2s3.RunMirror
	if !*disableReplay {
		replayDir := filepath.Join(*dataDir, "replays", replay.SanitizeName(pl.Name))
		rw := replay.NewWriter(replayDir)
		defer func() {
			if err := rw.Close(); err != nil {
				logger.Printf("replay close: %v", err)
			}
		}()
		cfg.Recorder = rw
		archRoot := filepath.Join(*dataDir, "archives")
		arch = archive.NewRunArchive(replayDir, filepath.Join(archRoot, replay.SanitizeName(pl.Name)), logger)
		m, err := buildR2Mirror(archRoot, logger)
		if err != nil {
			logger.Fatalf("r2 mirror: %v", err)
		}
		if m != nil {
			mirror = m
			defer mirror.Close()
			arch.OnArchived = mirror.EnqueueRun
		}
	}

	audit := auditlog.New(filepath.Join(*dataDir, "audit"), logger)
	defer func() {
		if err := audit.Close(); err != nil {
			logger.Printf("audit close: %v", err)
		}
	}()

	sinks := playlist.Sinks{audit}
	if rank != nil {
		sinks = append(sinks, rank)
	}
	if arch != nil {
		sinks = append(sinks, arch)
	}
	cfg.Results = sinks
	cfg.Attempts = sinks

	remote := observer.NewRemoteInput(nil)
	cfg.Inputs = remote

	sess, err := playlist.New(cfg)
	if err != nil {
		logger.Fatalf("session: %v", err)
	}
	if err := sess.StartScenario(0); err != nil {
		logger.Fatalf("start: %v", err)
	}

	var drv *clock.Driver
	obsSrv := observer.NewServer(observer.Config{
		Logger:    logger,
		Bootstrap: observer.Bootstrap(pl, tune.TickRateHz),
		Inputs:    remote,
		OnCommand: func(cmd observerproto.CommandMsg) bool {
			return drv.Submit(func() { _ = applyCommand(sess, cmd, logger) })
		},
	})
	loop := newFrameLoop(sess, observer.NewPublisher(sess, obsSrv))
	drv = clock.NewDriver(loop, tune.RenderRateHz, nil)

	ctx, cancel := signalContext()
	defer cancel()

	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		if err := drv.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("loop stopped: %v", err)
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		st, frames := loop.Status()
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		// Minimal Prometheus exposition format.
		fmt.Fprintf(rw, "# HELP futdrill_tick Current simulation tick.\n")
		fmt.Fprintf(rw, "# TYPE futdrill_tick gauge\n")
		fmt.Fprintf(rw, "futdrill_tick{playlist=%q} %d\n", st.Playlist, st.Tick)
		fmt.Fprintf(rw, "# HELP futdrill_frames_total Render frames driven.\n")
		fmt.Fprintf(rw, "# TYPE futdrill_frames_total counter\n")
		fmt.Fprintf(rw, "futdrill_frames_total{playlist=%q} %d\n", st.Playlist, frames)
		fmt.Fprintf(rw, "# HELP futdrill_generation Scenario generation.\n")
		fmt.Fprintf(rw, "# TYPE futdrill_generation gauge\n")
		fmt.Fprintf(rw, "futdrill_generation{playlist=%q} %d\n", st.Playlist, st.Generation)
		fmt.Fprintf(rw, "# HELP futdrill_total_elapsed_seconds Folded playlist time.\n")
		fmt.Fprintf(rw, "# TYPE futdrill_total_elapsed_seconds gauge\n")
		fmt.Fprintf(rw, "futdrill_total_elapsed_seconds{playlist=%q} %.3f\n", st.Playlist, st.TotalElapsed)
		fmt.Fprintf(rw, "# HELP futdrill_observers Connected observers.\n")
		fmt.Fprintf(rw, "# TYPE futdrill_observers gauge\n")
		fmt.Fprintf(rw, "futdrill_observers %d\n", obsSrv.Subscribers())
		fmt.Fprintf(rw, "# HELP futdrill_observer_dropped_total Messages dropped for slow observers.\n")
		fmt.Fprintf(rw, "# TYPE futdrill_observer_dropped_total counter\n")
		fmt.Fprintf(rw, "futdrill_observer_dropped_total %d\n", obsSrv.Dropped())
		if rank != nil {
			rs := rank.Stats()
			fmt.Fprintf(rw, "# HELP futdrill_rankdb_queue_depth Ranking writer backlog.\n")
			fmt.Fprintf(rw, "# TYPE futdrill_rankdb_queue_depth gauge\n")
			fmt.Fprintf(rw, "futdrill_rankdb_queue_depth %d\n", rs.QueueDepth)
			fmt.Fprintf(rw, "futdrill_rankdb_dropped_total{kind=%q} %d\n", "result", rs.DropResultTotal)
			fmt.Fprintf(rw, "futdrill_rankdb_dropped_total{kind=%q} %d\n", "attempt", rs.DropAttemptTotal)
		}
		if mirror != nil {
			ms := mirror.Stats()
			fmt.Fprintf(rw, "# HELP futdrill_r2_runs_total Archived runs handled by the mirror.\n")
			fmt.Fprintf(rw, "# TYPE futdrill_r2_runs_total counter\n")
			fmt.Fprintf(rw, "futdrill_r2_runs_total{result=%q} %d\n", "uploaded", ms.RunsUploaded)
			fmt.Fprintf(rw, "futdrill_r2_runs_total{result=%q} %d\n", "failed", ms.RunsFailed)
			fmt.Fprintf(rw, "futdrill_r2_runs_total{result=%q} %d\n", "dropped", ms.RunsDropped)
			fmt.Fprintf(rw, "futdrill_r2_queue_depth %d\n", ms.QueueDepth)
		}
	})
	// Local-only admin endpoint.
	mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		st, _ := loop.Status()
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(observer.StatusMsg(st))
	})
	mux.HandleFunc("/observer/bootstrap", obsSrv.BootstrapHandler())
	mux.HandleFunc("/observer/ws", obsSrv.WSHandler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("playlist %q (%d scenarios) listening on %s", pl.Name, len(pl.Scenarios), *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Printf("ListenAndServe: %v", err)
		cancel()
	}
	<-loopDone
	sess.Close()
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
