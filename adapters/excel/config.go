package excel

// ExcelConfig holds configuration for the feature-stack workbook
type ExcelConfig struct {
	FilePath    string `json:"file_path" yaml:"file_path"`
	LabelColumn string `json:"label_column" yaml:"label_column"`
	GroupColumn string `json:"group_column" yaml:"group_column"`
	XColumn     string `json:"x_column" yaml:"x_column"`
	YColumn     string `json:"y_column" yaml:"y_column"`
}

// DefaultExcelConfig returns the column names the feature pipeline writes
func DefaultExcelConfig() ExcelConfig {
	return ExcelConfig{
		LabelColumn: "label",
		GroupColumn: "group",
		XColumn:     "x",
		YColumn:     "y",
	}
}
