package excel

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"floodcv/domain/core"
	"floodcv/domain/group"
	"floodcv/internal"
	"floodcv/ports"
)

// FeatureStackProvider serves feature tables from a workbook with one sheet
// per group, or a CSV file with a group column. Header cells name the
// features; the label column carries the class of every row.
type FeatureStackProvider struct {
	config ExcelConfig
	reader *DataReader
	logger *internal.Logger

	once   sync.Once
	sheets map[string]*ExcelData
	err    error
}

var _ ports.FeatureStackProvider = (*FeatureStackProvider)(nil)

// NewFeatureStackProvider creates a provider. The file is read on first use.
func NewFeatureStackProvider(config ExcelConfig, logger *internal.Logger) *FeatureStackProvider {
	return &FeatureStackProvider{
		config: config,
		reader: NewDataReader(config.FilePath, config.GroupColumn, logger),
		logger: logger.Named("FeatureStack"),
	}
}

func (p *FeatureStackProvider) load() (map[string]*ExcelData, error) {
	p.once.Do(func() {
		p.sheets, p.err = p.reader.ReadGroups()
	})
	return p.sheets, p.err
}

// Groups lists the sheet or group names available.
func (p *FeatureStackProvider) Groups() ([]string, error) {
	sheets, err := p.load()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(sheets))
	for name := range sheets {
		names = append(names, name)
	}
	return names, nil
}

// FeatureTable returns the rows of g's sheet restricted to features. The
// sheet is looked up by the group directory name, then by label. When g
// carries a sample, the row count and classes must match its points.
func (p *FeatureStackProvider) FeatureTable(ctx context.Context, g *group.ObservationGroup, features []string) (*group.FeatureTable, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sheets, err := p.load()
	if err != nil {
		return nil, err
	}
	data, ok := sheets[sheetName(g.Name())]
	if !ok {
		data, ok = sheets[g.Label]
	}
	if !ok {
		return nil, fmt.Errorf("%w: no sheet for %s", core.ErrGroupNotFound, g.Name())
	}

	if len(features) == 0 {
		features = p.featureColumns(data)
	}
	for _, f := range features {
		if !hasHeader(data, f) {
			return nil, fmt.Errorf("sheet %s has no feature column %q", data.Name, f)
		}
	}
	hasLabel := hasHeader(data, p.config.LabelColumn)
	if !hasLabel && g.Sample == nil {
		return nil, fmt.Errorf("sheet %s has no %q column and group %s has no sample", data.Name, p.config.LabelColumn, g.Name())
	}
	if g.Sample != nil && len(g.Sample.Points) != len(data.Rows) {
		return nil, fmt.Errorf("sheet %s has %d rows, group %s has %d sample points", data.Name, len(data.Rows), g.Name(), len(g.Sample.Points))
	}

	rows := make([][]float64, len(data.Rows))
	labels := make([]int, len(data.Rows))
	for i, raw := range data.Rows {
		row := make([]float64, len(features))
		for j, f := range features {
			v, err := strconv.ParseFloat(raw[f], 64)
			if err != nil {
				return nil, fmt.Errorf("sheet %s row %d column %s: %w", data.Name, i+2, f, err)
			}
			row[j] = v
		}
		rows[i] = row

		if hasLabel {
			label, err := strconv.Atoi(raw[p.config.LabelColumn])
			if err != nil {
				return nil, fmt.Errorf("sheet %s row %d label: %w", data.Name, i+2, err)
			}
			if g.Sample != nil && g.Sample.Points[i].Class != label {
				return nil, fmt.Errorf("sheet %s row %d: label %d does not match sample class %d", data.Name, i+2, label, g.Sample.Points[i].Class)
			}
			labels[i] = label
		} else {
			labels[i] = g.Sample.Points[i].Class
		}
	}

	table, err := group.NewFeatureTable(features, rows, labels)
	if err != nil {
		return nil, fmt.Errorf("sheet %s: %w", data.Name, err)
	}
	p.logger.Debug("loaded %d x %d table for %s", table.Rows(), table.Cols(), g.Name())
	return table, nil
}

// featureColumns returns every header that is not a label, group or
// coordinate column.
func (p *FeatureStackProvider) featureColumns(data *ExcelData) []string {
	skip := map[string]bool{
		p.config.LabelColumn: true,
		p.config.GroupColumn: true,
		p.config.XColumn:     true,
		p.config.YColumn:     true,
	}
	var out []string
	for _, h := range data.Headers {
		if h != "" && !skip[h] {
			out = append(out, h)
		}
	}
	return out
}

func hasHeader(data *ExcelData, name string) bool {
	for _, h := range data.Headers {
		if h == name {
			return true
		}
	}
	return false
}
