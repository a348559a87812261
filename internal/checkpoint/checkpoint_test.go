package checkpoint_test

import (
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/couchcryptid/storm-data-windloss/internal/checkpoint"
	"github.com/couchcryptid/storm-data-windloss/internal/domain"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleInventory() []domain.CharacterizedBuilding {
	return []domain.CharacterizedBuilding{
		{
			Building: domain.Building{
				ID:               "501",
				BlockFIPS:        "220710017001000",
				CountyFIPS:       "22071",
				OccupancyType:    "RES1-1SNB",
				ConstructionType: domain.ConstructionWood,
				Longitude:        -90.0715,
				Latitude:         29.9511,
				SurfaceRoughness: 0.1 + 0.2, // not exactly representable as 0.3
				StructureValue:   210000.55,
				ContentsValue:    105000.275,
			},
			Scheme:  "LASCH",
			Subtype: "WSF1",
			Characteristics: []domain.Characteristic{
				{Type: "Roof Shape", Value: "rship"},
				{Type: "Shutters", Value: "shtys"},
				{Type: "Garage, Houses with Shutters", Value: "gdstd"},
			},
			WBID:      "4",
			TerrainID: 3,
		},
		{
			Building: domain.Building{
				ID:               "502",
				BlockFIPS:        "220510201002013",
				CountyFIPS:       "22051",
				OccupancyType:    "COM1",
				Longitude:        -90.2,
				Latitude:         29.98,
				SurfaceRoughness: 1e-9,
				StructureValue:   350000,
			},
			Scheme:    "LASCH",
			Subtype:   "MSF1",
			WBID:      "9",
			TerrainID: 1,
		},
	}
}

func TestStore_RoundTrip(t *testing.T) {
	store := checkpoint.NewStore(filepath.Join(t.TempDir(), "building_inventory", "nsi_wbId_sr.csv"))
	assert.False(t, store.Exists())

	want := sampleInventory()
	require.NoError(t, store.Save(want))
	assert.True(t, store.Exists())

	got, err := store.Load(nil)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestStore_SaveIsByteStable(t *testing.T) {
	dir := t.TempDir()
	a := checkpoint.NewStore(filepath.Join(dir, "a.csv"))
	b := checkpoint.NewStore(filepath.Join(dir, "b.csv"))
	require.NoError(t, a.Save(sampleInventory()))

	loaded, err := a.Load(nil)
	require.NoError(t, err)
	require.NoError(t, b.Save(loaded))

	da, err := os.ReadFile(a.Path())
	require.NoError(t, err)
	db, err := os.ReadFile(b.Path())
	require.NoError(t, err)
	assert.Equal(t, string(da), string(db))
}

func TestStore_LoadFollowsInventoryOrder(t *testing.T) {
	store := checkpoint.NewStore(filepath.Join(t.TempDir(), "cp.csv"))
	saved := sampleInventory()
	require.NoError(t, store.Save(saved))

	inv := []domain.Building{saved[1].Building, saved[0].Building}
	got, err := store.Load(inv)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "502", got[0].ID)
	assert.Equal(t, "501", got[1].ID)
}

func TestStore_LoadIncompatible(t *testing.T) {
	store := checkpoint.NewStore(filepath.Join(t.TempDir(), "cp.csv"))
	saved := sampleInventory()
	require.NoError(t, store.Save(saved))

	tests := []struct {
		name string
		inv  []domain.Building
	}{
		{"fewer buildings", []domain.Building{saved[0].Building}},
		{"different id", []domain.Building{saved[0].Building, {ID: "999"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.Load(tt.inv)
			require.ErrorIs(t, err, domain.ErrCheckpointIncompatible)
			assert.True(t, domain.IsKind(err, domain.KindCheckpoint))
		})
	}
}

func TestStore_LoadMissingFile(t *testing.T) {
	store := checkpoint.NewStore(filepath.Join(t.TempDir(), "absent.csv"))
	_, err := store.Load(nil)
	require.ErrorIs(t, err, fs.ErrNotExist)
	assert.True(t, domain.IsKind(err, domain.KindCheckpoint))
}

func TestRead_Corrupt(t *testing.T) {
	header := strings.Join(checkpoint.Columns, ",")
	row := "501,220710017001000,22071,RES1,W,-90,29,0.1,1000,500,LASCH,WSF1,Shutters=shtys,4,2"

	tests := []struct {
		name   string
		csv    string
		errMsg string
	}{
		{"empty file", "", "read header"},
		{"missing column", strings.Replace(header, ",wbID", "", 1) + "\n", `missing column "wbID"`},
		{"duplicate id", header + "\n" + row + "\n" + row + "\n", "duplicate building id 501"},
		{"bad float", header + "\n" + strings.Replace(row, ",1000,", ",x,", 1) + "\n", `column val_struct: invalid number "x"`},
		{"terrain out of range", header + "\n" + strings.TrimSuffix(row, ",2") + ",6\n", "terrain class 6 outside 1..5"},
		{"empty wbID", header + "\n" + strings.Replace(row, ",4,2", ",,2", 1) + "\n", "has no wbID"},
		{"malformed characteristics", header + "\n" + strings.Replace(row, "Shutters=shtys", "Shutters", 1) + "\n", "malformed characteristic"},
		{"ragged row", header + "\n501,220710017001000\n", "line 2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := checkpoint.Read(strings.NewReader(tt.csv))
			require.ErrorIs(t, err, domain.ErrCheckpointCorrupt)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestWrite_RejectsReservedSeparators(t *testing.T) {
	bad := sampleInventory()[:1]
	bad[0].Characteristics = []domain.Characteristic{{Type: "Roof;Shape", Value: "rship"}}

	store := checkpoint.NewStore(filepath.Join(t.TempDir(), "cp.csv"))
	err := store.Save(bad)
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindCheckpoint))
	assert.False(t, store.Exists())
}

func TestRead_SpecialFloats(t *testing.T) {
	in := sampleInventory()[:1]
	in[0].SurfaceRoughness = math.NaN()

	store := checkpoint.NewStore(filepath.Join(t.TempDir(), "cp.csv"))
	require.NoError(t, store.Save(in))
	got, err := store.Load(nil)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(got[0].SurfaceRoughness))
}
