package excel

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"floodcv/domain/group"
	"floodcv/internal"
	"floodcv/ports"

	"github.com/xuri/excelize/v2"
)

// maxSheetName is the Excel limit on sheet name length.
const maxSheetName = 31

// SampleWriter exports sample points, one sheet per group (xlsx) or one row
// block per group (csv), with coordinate and label columns.
type SampleWriter struct {
	config ExcelConfig
	logger *internal.Logger
}

var _ ports.SampleWriter = (*SampleWriter)(nil)

// NewSampleWriter creates a writer for config.FilePath.
func NewSampleWriter(config ExcelConfig, logger *internal.Logger) *SampleWriter {
	return &SampleWriter{config: config, logger: logger.Named("SampleWriter")}
}

// WriteSamples writes the samples of every group that has one.
func (w *SampleWriter) WriteSamples(ctx context.Context, groups []*group.ObservationGroup) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if fileType(w.config.FilePath) == "csv" {
		return w.writeCSV(groups)
	}
	return w.writeWorkbook(groups)
}

func (w *SampleWriter) header() []string {
	return []string{w.config.XColumn, w.config.YColumn, w.config.LabelColumn}
}

func (w *SampleWriter) writeWorkbook(groups []*group.ObservationGroup) error {
	f := excelize.NewFile()
	defer f.Close()

	written := 0
	for _, g := range groups {
		if g.Sample == nil {
			continue
		}
		name := sheetName(g.Name())
		if written == 0 {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				return fmt.Errorf("rename sheet for %s: %w", g.Name(), err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("create sheet for %s: %w", g.Name(), err)
		}

		header := w.header()
		if err := f.SetSheetRow(name, "A1", &header); err != nil {
			return err
		}
		for i, pt := range g.Sample.Points {
			cell, err := excelize.CoordinatesToCellName(1, i+2)
			if err != nil {
				return err
			}
			if err := f.SetSheetRow(name, cell, &[]interface{}{pt.Point.X(), pt.Point.Y(), pt.Class}); err != nil {
				return fmt.Errorf("write %s row %d: %w", g.Name(), i+2, err)
			}
		}
		written++
	}
	if written == 0 {
		return fmt.Errorf("no sampled groups to write")
	}
	if err := f.SaveAs(w.config.FilePath); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	w.logger.Info("wrote samples of %d groups to %s", written, w.config.FilePath)
	return nil
}

func (w *SampleWriter) writeCSV(groups []*group.ObservationGroup) error {
	file, err := os.Create(w.config.FilePath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	out := csv.NewWriter(file)
	if err := out.Write(append([]string{w.config.GroupColumn}, w.header()...)); err != nil {
		return err
	}
	written := 0
	for _, g := range groups {
		if g.Sample == nil {
			continue
		}
		for _, pt := range g.Sample.Points {
			record := []string{
				g.Name(),
				strconv.FormatFloat(pt.Point.X(), 'f', -1, 64),
				strconv.FormatFloat(pt.Point.Y(), 'f', -1, 64),
				strconv.Itoa(pt.Class),
			}
			if err := out.Write(record); err != nil {
				return err
			}
		}
		written++
	}
	out.Flush()
	if err := out.Error(); err != nil {
		return fmt.Errorf("failed to write CSV file: %w", err)
	}
	w.logger.Info("wrote samples of %d groups to %s", written, w.config.FilePath)
	return nil
}

func sheetName(name string) string {
	if len(name) > maxSheetName {
		return name[:maxSheetName]
	}
	return name
}
