package catalogs

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"futdrill.ai/internal/playlist"
	"futdrill.ai/internal/sim/world"
)

// Catalogs holds every map and playlist found under a config directory.
// Maps are shared by the scenarios that name them and must not be mutated.
type Catalogs struct {
	Maps      map[string]*world.Map
	Playlists map[string]*playlist.Playlist

	MapsDigest      string
	PlaylistsDigest string
}

// Load reads configDir/maps/*.yaml and configDir/playlists/*.yaml.
func Load(configDir string) (*Catalogs, error) {
	if err := compileSchemas(); err != nil {
		return nil, fmt.Errorf("schemas: %w", err)
	}
	c := &Catalogs{
		Maps:      map[string]*world.Map{},
		Playlists: map[string]*playlist.Playlist{},
	}
	if err := c.loadMaps(filepath.Join(configDir, "maps")); err != nil {
		return nil, err
	}
	if err := c.loadPlaylists(filepath.Join(configDir, "playlists")); err != nil {
		return nil, err
	}
	return c, nil
}

// Playlist looks a playlist up by name.
func (c *Catalogs) Playlist(name string) (*playlist.Playlist, error) {
	pl, ok := c.Playlists[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPlaylist, name)
	}
	return pl, nil
}

func (c *Catalogs) PlaylistNames() []string {
	names := make([]string, 0, len(c.Playlists))
	for n := range c.Playlists {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (c *Catalogs) loadMaps(dir string) error {
	files, err := yamlFiles(dir)
	if err != nil {
		return err
	}
	var concat bytes.Buffer
	for _, p := range files {
		raw, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		concat.Write(raw)
		concat.WriteByte('\n')

		m, err := ParseMap(raw)
		if err != nil {
			return fmt.Errorf("maps/%s: %w", filepath.Base(p), err)
		}
		if _, dup := c.Maps[m.Name]; dup {
			return fmt.Errorf("maps/%s: duplicate map name %q", filepath.Base(p), m.Name)
		}
		c.Maps[m.Name] = m
	}
	c.MapsDigest = sha256Hex(concat.Bytes())
	return nil
}

func (c *Catalogs) loadPlaylists(dir string) error {
	files, err := yamlFiles(dir)
	if err != nil {
		return err
	}
	var concat bytes.Buffer
	for _, p := range files {
		raw, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		concat.Write(raw)
		concat.WriteByte('\n')

		pl, err := ParsePlaylist(raw, c.Maps)
		if err != nil {
			return fmt.Errorf("playlists/%s: %w", filepath.Base(p), err)
		}
		if _, dup := c.Playlists[pl.Name]; dup {
			return fmt.Errorf("playlists/%s: duplicate playlist name %q", filepath.Base(p), pl.Name)
		}
		c.Playlists[pl.Name] = pl
	}
	c.PlaylistsDigest = sha256Hex(concat.Bytes())
	return nil
}

// ParseMap validates one map document against the schema and builds it.
func ParseMap(raw []byte) (*world.Map, error) {
	if err := compileSchemas(); err != nil {
		return nil, err
	}
	if err := validateYAML(mapSchema, raw); err != nil {
		return nil, err
	}
	var f MapFile
	if err := decodeStrict(raw, &f); err != nil {
		return nil, err
	}
	return f.Build()
}

// ParsePlaylist validates one playlist document and resolves its maps.
func ParsePlaylist(raw []byte, maps map[string]*world.Map) (*playlist.Playlist, error) {
	if err := compileSchemas(); err != nil {
		return nil, err
	}
	if err := validateYAML(listSchema, raw); err != nil {
		return nil, err
	}
	var f PlaylistFile
	if err := decodeStrict(raw, &f); err != nil {
		return nil, err
	}
	return f.Build(maps)
}

// yamlFiles lists *.yaml and *.yml in dir, sorted. A missing dir is empty.
func yamlFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if n := e.Name(); strings.HasSuffix(n, ".yaml") || strings.HasSuffix(n, ".yml") {
			files = append(files, filepath.Join(dir, n))
		}
	}
	sort.Strings(files)
	return files, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
