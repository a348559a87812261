package windfield_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/couchcryptid/storm-data-windloss/internal/config"
	"github.com/couchcryptid/storm-data-windloss/internal/windfield"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConverter_Convert(t *testing.T) {
	conv := windfield.NewConverter(config.DefaultMethodology())

	p := conv.Convert(270.5, 29.9, 40)
	assert.InDelta(t, -89.5, p.Longitude, 1e-12)
	assert.InDelta(t, 29.9, p.Latitude, 0)
	assert.InDelta(t, 40*2.23694, p.WindSpeed, 1e-9)
	assert.InDelta(t, 40*2.23694*1.28, p.GustSpeed, 1e-9)

	// Already in -180..180.
	assert.InDelta(t, -90.1, conv.Convert(-90.1, 30, 0).Longitude, 0)
}

func TestReadRaw(t *testing.T) {
	raw := strings.Join([]string{
		"lat_2d,lon_2d,swath_wind",
		"29.9,270.0,30",
		"30.0,270.1,",
		"30.1,270.2,NaN",
		"30.2,270.3,50",
	}, "\n")

	points, stats, err := windfield.ReadRaw(strings.NewReader(raw), windfield.NewConverter(config.DefaultMethodology()))
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, 2, stats.Points)
	assert.Equal(t, 2, stats.Skipped)
	assert.InDelta(t, 50*2.23694*1.28, stats.MaxGust, 1e-9)
	assert.InDelta(t, -89.7, points[1].Longitude, 1e-9)
}

func TestReadRaw_Errors(t *testing.T) {
	conv := windfield.NewConverter(config.DefaultMethodology())

	_, _, err := windfield.ReadRaw(strings.NewReader("lat,speed\n1,2\n"), conv)
	require.ErrorContains(t, err, "missing column (one of lon_2d, lon, longitude)")

	_, _, err = windfield.ReadRaw(strings.NewReader("lat,lon,wind\n1,2,\n"), conv)
	require.ErrorContains(t, err, "no usable grid points")
}

func TestProcess_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "ida_2021.csv")
	out := filepath.Join(dir, "processed_wind", "ida_2021.csv")
	require.NoError(t, os.WriteFile(in, []byte("Longitude,Latitude,Wind\n270.25,29.5,33.3\n-90.5,30,10\n"), 0o600))

	conv := windfield.NewConverter(config.DefaultMethodology())
	stats, err := windfield.Process(in, out, conv)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Points)

	got, err := windfield.ReadProcessed(out)
	require.NoError(t, err)
	want := []windfield.Point{conv.Convert(270.25, 29.5, 33.3), conv.Convert(-90.5, 30, 10)}
	if diff := cmp.Diff(want, got, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("processed wind mismatch (-want +got):\n%s", diff)
	}
}
