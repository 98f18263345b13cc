package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"futdrill.ai/internal/sim/tuning"
)

const Version = 1

type Header struct {
	Version       int    `json:"version"`
	Playlist      string `json:"playlist"`
	Scenario      string `json:"scenario"`
	ScenarioIndex int    `json:"scenario_index"`
	Generation    uint64 `json:"generation"`
	Tick          uint64 `json:"tick"`
}

// SnapshotV1 is the full world state at a scenario start. Together with the
// recorded inputs it is enough to re-simulate the attempt.
type SnapshotV1 struct {
	Header Header `json:"header"`

	SimTime float64       `json:"sim_time"`
	Tuning  tuning.Tuning `json:"tuning"`
	Map     MapV1         `json:"map"`

	Entities []EntityV1 `json:"entities"`
	Ball     EntityV1   `json:"ball"`

	Touches     map[string]int `json:"touches,omitempty"`
	LastToucher string         `json:"last_toucher,omitempty"`
	// InGoal is parallel to Map.Goals.
	InGoal []bool `json:"in_goal,omitempty"`
}

type MapV1 struct {
	Name      string      `json:"name"`
	Segments  []SegmentV1 `json:"segments"`
	Disks     []DiskV1    `json:"disks,omitempty"`
	Goals     []GoalV1    `json:"goals,omitempty"`
	Spawns    []SpawnV1   `json:"spawns,omitempty"`
	BallSpawn [2]float64  `json:"ball_spawn"`
}

type SegmentV1 struct {
	P1              [2]float64 `json:"p1"`
	P2              [2]float64 `json:"p2"`
	Normal          [2]float64 `json:"normal"`
	Bounce          float64    `json:"bounce"`
	PlayerCollision bool       `json:"player_collision"`
}

type DiskV1 struct {
	Pos    [2]float64 `json:"pos"`
	Radius float64    `json:"radius"`
	Bounce float64    `json:"bounce"`
}

type GoalV1 struct {
	Team string     `json:"team"`
	Min  [2]float64 `json:"min"`
	Max  [2]float64 `json:"max"`
}

type SpawnV1 struct {
	Team string     `json:"team"`
	Pos  [2]float64 `json:"pos"`
}

type EntityV1 struct {
	ID      string     `json:"id"`
	Team    string     `json:"team"`
	IsBot   bool       `json:"is_bot,omitempty"`
	Pos     [2]float64 `json:"pos"`
	Vel     [2]float64 `json:"vel"`
	Radius  float64    `json:"radius"`
	Mass    float64    `json:"mass"`
	Damping float64    `json:"damping"`

	KickCharge      float64 `json:"kick_charge,omitempty"`
	ChargingKick    bool    `json:"charging_kick,omitempty"`
	KickedThisPress bool    `json:"kicked_this_press,omitempty"`
	Touching        bool    `json:"touching,omitempty"`
}

func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	defer enc.Close()

	bw := bufio.NewWriterSize(enc, 64*1024)
	defer bw.Flush()

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}

	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	return nil
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 64*1024)

	// Header line is for humans and tools like zstdcat; gob carries it too.
	if _, err := br.ReadBytes('\n'); err != nil {
		return snap, fmt.Errorf("read header: %w", err)
	}

	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	if snap.Header.Version != Version {
		return snap, fmt.Errorf("unsupported snapshot version %d", snap.Header.Version)
	}
	return snap, nil
}
