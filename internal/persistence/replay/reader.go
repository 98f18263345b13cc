package replay

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"

	"futdrill.ai/internal/persistence/snapshot"
	"futdrill.ai/internal/sim/world"
)

// ReadTicks streams every entry of a tick log in file order.
func ReadTicks(path string, fn func(TickEntry) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)
	for sc.Scan() {
		var e TickEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return fmt.Errorf("%s: unmarshal: %w", filepath.Base(path), err)
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return sc.Err()
}

// ListAttempts returns the file stems of every recorded attempt in dir,
// oldest generation first.
func ListAttempts(dir string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range ents {
		if e.IsDir() || !strings.HasSuffix(e.Name(), SnapshotSuffix) {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), SnapshotSuffix))
	}
	sort.Strings(names)
	return names, nil
}

// Player feeds recorded inputs back into a world.
type Player struct {
	ticks map[uint64]map[string]world.Input
}

func NewPlayer() *Player {
	return &Player{ticks: map[uint64]map[string]world.Input{}}
}

func (p *Player) Add(e TickEntry) { p.ticks[e.Tick] = e.Inputs }

func (p *Player) Input(id string, tick uint64) world.Input { return p.ticks[tick][id] }

type VerifyResult struct {
	Scenario string
	From     uint64
	Checked  uint64
	LastTick uint64
}

// Verify re-simulates one attempt from its snapshot and checks the digest of
// every tick against the log.
func Verify(dir, name string, fromTick, toTick uint64) (VerifyResult, error) {
	res := VerifyResult{}
	snap, err := snapshot.ReadSnapshot(filepath.Join(dir, name+SnapshotSuffix))
	if err != nil {
		return res, fmt.Errorf("read snapshot: %w", err)
	}
	res.Scenario = snap.Header.Scenario
	res.From = snap.Header.Tick
	w, err := world.FromSnapshot(snap, nil)
	if err != nil {
		return res, fmt.Errorf("import snapshot: %w", err)
	}
	player := NewPlayer()
	err = ReadTicks(filepath.Join(dir, name+TicksSuffix), func(e TickEntry) error {
		if toTick != 0 && e.Tick > toTick {
			return nil
		}
		if e.Tick != w.Tick()+1 {
			return fmt.Errorf("tick gap: want=%d got=%d", w.Tick()+1, e.Tick)
		}
		player.Add(e)
		w.Step(player, e.Tick, e.SimTime)
		res.LastTick = e.Tick
		if e.Tick < fromTick {
			return nil
		}
		res.Checked++
		if got := w.Digest(); got != e.Digest {
			return fmt.Errorf("digest mismatch at tick %d: got=%s want=%s", e.Tick, got, e.Digest)
		}
		return nil
	})
	return res, err
}
