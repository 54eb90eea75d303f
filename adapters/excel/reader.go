package excel

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"floodcv/internal"

	"github.com/xuri/excelize/v2"
)

// DataReader handles reading Excel and CSV files
type DataReader struct {
	filePath    string
	fileType    string // "xlsx" or "csv"
	groupColumn string
	logger      *internal.Logger
}

// NewDataReader creates a new data reader that handles both Excel and CSV
// files. CSV rows are split into groups by groupColumn.
func NewDataReader(filePath, groupColumn string, logger *internal.Logger) *DataReader {
	return &DataReader{
		filePath:    filePath,
		fileType:    fileType(filePath),
		groupColumn: groupColumn,
		logger:      logger.Named("DataReader"),
	}
}

func fileType(path string) string {
	if strings.ToLower(filepath.Ext(path)) == ".csv" {
		return "csv"
	}
	return "xlsx"
}

// ReadGroups reads every sheet (xlsx) or every group of rows (csv), keyed by name
func (r *DataReader) ReadGroups() (map[string]*ExcelData, error) {
	r.logger.Info("Starting to read %s file: %s", r.fileType, r.filePath)

	if _, err := os.Stat(r.filePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s file not found: %s", strings.ToUpper(r.fileType), r.filePath)
	}

	switch r.fileType {
	case "csv":
		return r.readCSVData()
	case "xlsx":
		return r.readExcelData()
	default:
		return nil, fmt.Errorf("unsupported file type: %s", r.fileType)
	}
}

// readExcelData reads every sheet of the workbook
func (r *DataReader) readExcelData() (map[string]*ExcelData, error) {
	startTime := time.Now()
	f, err := excelize.OpenFile(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()
	r.logger.Debug("Excel file opened in %.2fms", float64(time.Since(startTime).Nanoseconds())/1e6)

	out := make(map[string]*ExcelData)
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
		}
		if len(rows) == 0 {
			continue
		}
		out[sheet] = r.processRows(sheet, rows[0], rows[1:])
	}
	r.logger.Info("Workbook read in %.2fms (%d sheets)", float64(time.Since(startTime).Nanoseconds())/1e6, len(out))
	return out, nil
}

// readCSVData reads CSV data and splits it by the group column
func (r *DataReader) readCSVData() (map[string]*ExcelData, error) {
	file, err := os.Open(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	readStart := time.Now()
	rows, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file: %w", err)
	}
	r.logger.Debug("CSV file read in %.2fms (%d rows)", float64(time.Since(readStart).Nanoseconds())/1e6, len(rows))

	if len(rows) < 2 {
		return nil, fmt.Errorf("CSV file must have at least a header row and one data row")
	}

	groupIdx := -1
	for j, h := range rows[0] {
		if strings.TrimSpace(h) == r.groupColumn {
			groupIdx = j
		}
	}
	if groupIdx < 0 {
		return nil, fmt.Errorf("CSV file has no %q column", r.groupColumn)
	}

	byGroup := make(map[string][][]string)
	var order []string
	for _, row := range rows[1:] {
		if groupIdx >= len(row) {
			continue
		}
		name := strings.TrimSpace(row[groupIdx])
		if _, seen := byGroup[name]; !seen {
			order = append(order, name)
		}
		byGroup[name] = append(byGroup[name], row)
	}

	out := make(map[string]*ExcelData, len(order))
	for _, name := range order {
		out[name] = r.processRows(name, rows[0], byGroup[name])
	}
	return out, nil
}

// processRows converts raw string rows into ExcelData format
func (r *DataReader) processRows(name string, headerRow []string, rows [][]string) *ExcelData {
	headers := make([]string, len(headerRow))
	for i, header := range headerRow {
		headers[i] = strings.TrimSpace(header)
	}

	dataRows := make([]RawRowData, 0, len(rows))
	for _, row := range rows {
		rowData := make(RawRowData)
		for j, cell := range row {
			if j < len(headers) {
				rowData[headers[j]] = strings.TrimSpace(cell)
			}
		}
		dataRows = append(dataRows, rowData)
	}

	r.logger.Debug("%s processed (%d columns, %d rows)", name, len(headers), len(dataRows))
	return &ExcelData{Name: name, Headers: headers, Rows: dataRows}
}
