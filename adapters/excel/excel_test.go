package excel

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"floodcv/domain/core"
	"floodcv/domain/group"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampledGroup(label string, day int, classes ...int) *group.ObservationGroup {
	points := make([]group.SamplePoint, len(classes))
	flooded := 0
	for i, c := range classes {
		points[i] = group.SamplePoint{Point: orb.Point{float64(i), float64(10 + i)}, Class: c}
		flooded += c
	}
	return &group.ObservationGroup{
		Label: label,
		Date:  time.Date(2022, 9, day, 0, 0, 0, 0, time.UTC),
		Sample: &group.Sample{
			Group: label, Points: points, Flooded: flooded, NonFlooded: len(classes) - flooded,
		},
	}
}

func writeFeatureWorkbook(t *testing.T, path string) {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetName("Sheet1", "2022_09_01_north"))
	rows := [][]interface{}{
		{"VV", "VH", "DEM", "label"},
		{-12.5, -20, 3, 1},
		{-8, -15.25, 40, 0},
		{-13, -21, 2, 1},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, f.SetSheetRow("2022_09_01_north", cell, &row))
	}
	_, err := f.NewSheet("south")
	require.NoError(t, err)
	require.NoError(t, f.SetSheetRow("south", "A1", &[]interface{}{"VV", "VH", "DEM", "label"}))
	require.NoError(t, f.SetSheetRow("south", "A2", &[]interface{}{-7, -14, 55, 0}))
	require.NoError(t, f.SaveAs(path))
}

func TestFeatureTableFromWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "features.xlsx")
	writeFeatureWorkbook(t, path)

	cfg := DefaultExcelConfig()
	cfg.FilePath = path
	provider := NewFeatureStackProvider(cfg, nil)

	north := sampledGroup("north", 1, 1, 0, 1)
	table, err := provider.FeatureTable(context.Background(), north, []string{"DEM", "VV"})
	require.NoError(t, err)
	assert.Equal(t, []string{"DEM", "VV"}, table.Features)
	assert.Equal(t, []int{1, 0, 1}, table.Y)
	assert.Equal(t, []float64{40, -8}, table.Row(1))

	south := &group.ObservationGroup{Label: "south", Date: time.Date(2022, 9, 8, 0, 0, 0, 0, time.UTC)}
	table, err = provider.FeatureTable(context.Background(), south, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"VV", "VH", "DEM"}, table.Features, "every non-label column by default")
	assert.Equal(t, []int{0}, table.Y)

	names, err := provider.Groups()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"2022_09_01_north", "south"}, names)
}

func TestFeatureTableErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "features.xlsx")
	writeFeatureWorkbook(t, path)
	cfg := DefaultExcelConfig()
	cfg.FilePath = path
	provider := NewFeatureStackProvider(cfg, nil)
	ctx := context.Background()

	_, err := provider.FeatureTable(ctx, sampledGroup("east", 3, 1), nil)
	assert.True(t, errors.Is(err, core.ErrGroupNotFound))

	_, err = provider.FeatureTable(ctx, sampledGroup("north", 1, 1, 0, 1), []string{"slope"})
	assert.ErrorContains(t, err, "slope")

	_, err = provider.FeatureTable(ctx, sampledGroup("north", 1, 1, 0), nil)
	assert.ErrorContains(t, err, "sample points")

	_, err = provider.FeatureTable(ctx, sampledGroup("north", 1, 0, 0, 1), nil)
	assert.ErrorContains(t, err, "does not match sample class")
}

func TestSamplesRoundTrip(t *testing.T) {
	for _, ext := range []string{".xlsx", ".csv"} {
		t.Run(ext, func(t *testing.T) {
			cfg := DefaultExcelConfig()
			cfg.FilePath = filepath.Join(t.TempDir(), "samples"+ext)
			groups := []*group.ObservationGroup{
				sampledGroup("north", 1, 1, 1, 0),
				{Label: "unsampled", Date: time.Date(2022, 9, 4, 0, 0, 0, 0, time.UTC)},
				sampledGroup("south", 8, 1, 0),
			}
			require.NoError(t, NewSampleWriter(cfg, nil).WriteSamples(context.Background(), groups))

			provider := NewFeatureStackProvider(cfg, nil)
			names, err := provider.Groups()
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{"2022_09_01_north", "2022_09_08_south"}, names)

			table, err := provider.FeatureTable(context.Background(), groups[0], []string{"x", "y"})
			require.NoError(t, err)
			assert.Equal(t, []int{1, 1, 0}, table.Y)
			assert.Equal(t, []float64{2, 12}, table.Row(2))
		})
	}
}

func TestReadGroupsMissingFile(t *testing.T) {
	_, err := NewDataReader(filepath.Join(t.TempDir(), "none.csv"), "group", nil).ReadGroups()
	assert.ErrorContains(t, err, "not found")
}

func TestCSVRequiresGroupColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "features.csv")
	require.NoError(t, os.WriteFile(path, []byte("VV,label\n1,0\n"), 0o644))
	_, err := NewDataReader(path, "group", nil).ReadGroups()
	assert.ErrorContains(t, err, `"group"`)
}

func TestWriteSamplesNeedsSampledGroups(t *testing.T) {
	cfg := DefaultExcelConfig()
	cfg.FilePath = filepath.Join(t.TempDir(), "samples.xlsx")
	err := NewSampleWriter(cfg, nil).WriteSamples(context.Background(), []*group.ObservationGroup{{Label: "x"}})
	assert.Error(t, err)
}
