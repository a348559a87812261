// Package checkpoint persists the characterized inventory so that the
// stochastic characterization runs once and every scenario's loss pass
// reuses it.
//
// The checkpoint is a CSV file with a named header, one row per building.
// Floats are written in their shortest exact form so a load reproduces the
// saved values bit for bit. Characteristics are encoded as
// "Type=value;Type=value" in chain order.
package checkpoint

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/couchcryptid/storm-data-windloss/internal/domain"
)

// Columns is the checkpoint header, in file order.
var Columns = []string{
	"fd_id",
	"cbfips",
	"countyFIPS",
	"occtype",
	"bldgtype",
	"x",
	"y",
	"surface_roughness",
	"val_struct",
	"val_cont",
	"scheme",
	"sbtName",
	"characteristics",
	"wbID",
	"terrainID",
}

// Store reads and writes one checkpoint file.
type Store struct {
	path string
}

// NewStore returns a store for the checkpoint at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the checkpoint location.
func (s *Store) Path() string { return s.path }

// Exists reports whether a checkpoint file is present. Presence says nothing
// about validity; only Load decides that.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Save writes the characterized inventory. The file is written to a
// temporary sibling and renamed into place so a crash never leaves a
// truncated checkpoint behind.
func (s *Store) Save(buildings []domain.CharacterizedBuilding) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return domain.CheckpointError("save checkpoint", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".checkpoint-*.csv")
	if err != nil {
		return domain.CheckpointError("save checkpoint", err)
	}
	defer os.Remove(tmp.Name())

	if err := Write(tmp, buildings); err != nil {
		tmp.Close()
		return domain.CheckpointError("save checkpoint", err)
	}
	if err := tmp.Close(); err != nil {
		return domain.CheckpointError("save checkpoint", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return domain.CheckpointError("save checkpoint", err)
	}
	return nil
}

// Load reads the checkpoint. When inventory is non-nil the checkpoint must
// hold exactly the inventory's building IDs, and the result follows the
// inventory's order; otherwise the file order is kept.
func (s *Store) Load(inventory []domain.Building) ([]domain.CharacterizedBuilding, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, domain.CheckpointError("load checkpoint", err)
	}
	defer f.Close()

	buildings, err := Read(f)
	if err != nil {
		return nil, domain.CheckpointError("load checkpoint", fmt.Errorf("%s: %w", s.path, err))
	}
	if inventory == nil {
		return buildings, nil
	}

	ordered, err := alignWith(buildings, inventory)
	if err != nil {
		return nil, domain.CheckpointError("load checkpoint", fmt.Errorf("%s: %w", s.path, err))
	}
	return ordered, nil
}

func alignWith(buildings []domain.CharacterizedBuilding, inventory []domain.Building) ([]domain.CharacterizedBuilding, error) {
	if len(buildings) != len(inventory) {
		return nil, fmt.Errorf("%d buildings in checkpoint, %d in inventory: %w",
			len(buildings), len(inventory), domain.ErrCheckpointIncompatible)
	}
	byID := make(map[string]int, len(buildings))
	for i, b := range buildings {
		byID[b.ID] = i
	}
	out := make([]domain.CharacterizedBuilding, len(inventory))
	for i, b := range inventory {
		j, ok := byID[b.ID]
		if !ok {
			return nil, fmt.Errorf("building %s missing from checkpoint: %w", b.ID, domain.ErrCheckpointIncompatible)
		}
		out[i] = buildings[j]
	}
	return out, nil
}

// Write encodes buildings as checkpoint CSV.
func Write(w io.Writer, buildings []domain.CharacterizedBuilding) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}
	for _, b := range buildings {
		chars, err := encodeCharacteristics(b.Characteristics)
		if err != nil {
			return fmt.Errorf("building %s: %w", b.ID, err)
		}
		rec := []string{
			b.ID,
			b.BlockFIPS,
			b.CountyFIPS,
			b.OccupancyType,
			string(b.ConstructionType),
			formatFloat(b.Longitude),
			formatFloat(b.Latitude),
			formatFloat(b.SurfaceRoughness),
			formatFloat(b.StructureValue),
			formatFloat(b.ContentsValue),
			b.Scheme,
			b.Subtype,
			chars,
			b.WBID,
			strconv.Itoa(b.TerrainID),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Read decodes checkpoint CSV. Missing columns, unparseable fields, duplicate
// building IDs and terrain classes outside 1..5 make the checkpoint corrupt.
func Read(r io.Reader) ([]domain.CharacterizedBuilding, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, corrupt("read header: %v", err)
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.TrimSpace(h)] = i
	}
	for _, c := range Columns {
		if _, ok := index[c]; !ok {
			return nil, corrupt("missing column %q", c)
		}
	}

	var out []domain.CharacterizedBuilding
	seen := make(map[string]int)
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, corrupt("line %d: %v", line, err)
		}
		b, err := decodeRow(rec, index)
		if err != nil {
			return nil, corrupt("line %d: %v", line, err)
		}
		if first, dup := seen[b.ID]; dup {
			return nil, corrupt("line %d: duplicate building id %s (first on line %d)", line, b.ID, first)
		}
		seen[b.ID] = line
		out = append(out, b)
	}
	return out, nil
}

func decodeRow(rec []string, index map[string]int) (domain.CharacterizedBuilding, error) {
	get := func(c string) string { return rec[index[c]] }

	var b domain.CharacterizedBuilding
	b.ID = get("fd_id")
	if b.ID == "" {
		return b, errors.New("empty building id")
	}
	b.BlockFIPS = get("cbfips")
	b.CountyFIPS = get("countyFIPS")
	b.OccupancyType = get("occtype")
	b.ConstructionType = domain.ConstructionType(get("bldgtype"))
	b.Scheme = get("scheme")
	b.Subtype = get("sbtName")
	b.WBID = get("wbID")
	if b.WBID == "" {
		return b, fmt.Errorf("building %s has no wbID", b.ID)
	}

	floats := []struct {
		col string
		dst *float64
	}{
		{"x", &b.Longitude},
		{"y", &b.Latitude},
		{"surface_roughness", &b.SurfaceRoughness},
		{"val_struct", &b.StructureValue},
		{"val_cont", &b.ContentsValue},
	}
	for _, f := range floats {
		v, err := strconv.ParseFloat(get(f.col), 64)
		if err != nil {
			return b, fmt.Errorf("column %s: invalid number %q", f.col, get(f.col))
		}
		*f.dst = v
	}

	terrain, err := strconv.Atoi(get("terrainID"))
	if err != nil {
		return b, fmt.Errorf("column terrainID: invalid integer %q", get("terrainID"))
	}
	if terrain < 1 || terrain > 5 {
		return b, fmt.Errorf("terrain class %d outside 1..5", terrain)
	}
	b.TerrainID = terrain

	chars, err := decodeCharacteristics(get("characteristics"))
	if err != nil {
		return b, err
	}
	b.Characteristics = chars
	return b, nil
}

func encodeCharacteristics(chars []domain.Characteristic) (string, error) {
	parts := make([]string, len(chars))
	for i, ch := range chars {
		if strings.ContainsAny(ch.Type, "=;") || strings.ContainsAny(ch.Value, "=;") {
			return "", fmt.Errorf("characteristic %q=%q contains a reserved separator", ch.Type, ch.Value)
		}
		parts[i] = ch.Type + "=" + ch.Value
	}
	return strings.Join(parts, ";"), nil
}

func decodeCharacteristics(s string) ([]domain.Characteristic, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ";")
	chars := make([]domain.Characteristic, len(parts))
	for i, p := range parts {
		typ, value, ok := strings.Cut(p, "=")
		if !ok || typ == "" {
			return nil, fmt.Errorf("malformed characteristic %q", p)
		}
		chars[i] = domain.Characteristic{Type: typ, Value: value}
	}
	return chars, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func corrupt(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), domain.ErrCheckpointCorrupt)
}
