package excel

// RawRowData represents a row of raw sheet data as header to cell pairs
type RawRowData map[string]string

// ExcelData represents one sheet, or one group's rows of a CSV file
type ExcelData struct {
	Name    string       // Sheet name or group value
	Headers []string     // Column headers
	Rows    []RawRowData // Data rows
}
