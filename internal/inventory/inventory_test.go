package inventory_test

import (
	"bytes"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/couchcryptid/storm-data-windloss/internal/config"
	"github.com/couchcryptid/storm-data-windloss/internal/domain"
	"github.com/couchcryptid/storm-data-windloss/internal/inventory"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var cols = config.DefaultMethodology().Inventory

const sample = `fd_id,cbfips,occtype,bldgtype,x,y,nsi_val.SURFACEROU,val_struct,val_cont,st_damcat
501,220710017001000,RES1-1SNB,w,-90.07,29.95,0.55,210000.5,105000,RES
502,220510201002013,COM1,M,-90.2,29.98,,350000,0,COM
`

func TestRead(t *testing.T) {
	got, err := inventory.Read(strings.NewReader(sample), cols)
	require.NoError(t, err)
	require.Len(t, got, 2)

	want := domain.Building{
		ID:               "501",
		BlockFIPS:        "220710017001000",
		CountyFIPS:       "22071",
		OccupancyType:    "RES1-1SNB",
		ConstructionType: domain.ConstructionWood,
		Longitude:        -90.07,
		Latitude:         29.95,
		SurfaceRoughness: 0.55,
		StructureValue:   210000.5,
		ContentsValue:    105000,
	}
	if diff := cmp.Diff(want, got[0]); diff != "" {
		t.Errorf("building mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, "22051", got[1].CountyFIPS)
	assert.True(t, math.IsNaN(got[1].SurfaceRoughness), "blank roughness reads as NaN")
}

func TestRead_WithoutConstructionType(t *testing.T) {
	csv := "fd_id,cbfips,occtype,x,y,nsi_val.SURFACEROU,val_struct,val_cont\n1,220710017001000,RES1,-90,29,0.1,1,1\n"
	got, err := inventory.Read(strings.NewReader(csv), cols)
	require.NoError(t, err)
	assert.Empty(t, got[0].ConstructionType)
}

func TestRead_Errors(t *testing.T) {
	tests := []struct {
		name   string
		csv    string
		errMsg string
	}{
		{"empty", "", "empty inventory"},
		{"missing column", "fd_id,cbfips\n1,2\n", `missing column "occtype"`},
		{"duplicate id", sample + "501,220710017001000,RES1,W,-90,29,0.1,1,1,RES\n", "building id 501 already on line 2"},
		{"bad number", strings.Replace(sample, "210000.5", "lots", 1), `column "val_struct": invalid number "lots"`},
		{"empty id", strings.Replace(sample, "502,", ",", 1), "line 3: empty building id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := inventory.Read(strings.NewReader(tt.csv), cols)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestSaveLoad(t *testing.T) {
	want, err := inventory.Read(strings.NewReader(sample), cols)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "nsi.csv")
	require.NoError(t, inventory.Save(path, cols, want))

	got, err := inventory.Load(path, cols)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got, cmp.Comparer(func(a, b float64) bool {
		return a == b || (math.IsNaN(a) && math.IsNaN(b))
	})); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestWrite_Header(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, inventory.Write(&buf, cols, nil))
	assert.Equal(t, "fd_id,cbfips,occtype,bldgtype,x,y,nsi_val.SURFACEROU,val_struct,val_cont\n", buf.String())
}
