// Package validation checks user-supplied paths and options, and validates the
// records extracted from bills against the bill JSON schema.
package validation

import (
	"fmt"
	"os"
	"strings"
)

// Output formats of the extract command.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// IsValidPath checks if a given path exists and is a regular file or a directory.
func IsValidPath(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return fmt.Errorf("path does not exist: %s", path)
	}
	if err != nil {
		return fmt.Errorf("error checking path %s: %w", path, err)
	}

	if !info.IsDir() && !info.Mode().IsRegular() {
		return fmt.Errorf("path %s is neither a file nor a directory", path)
	}

	return nil
}

// IsValidOutputFormat checks if the given table format is supported.
func IsValidOutputFormat(format string) error {
	switch strings.ToLower(format) {
	case FormatCSV, FormatXLSX:
		return nil
	default:
		return fmt.Errorf("unsupported output format: %s. Supported formats are 'csv', 'xlsx'", format)
	}
}

// IsValidReportFormat checks if the given batch report format is supported.
func IsValidReportFormat(format string) error {
	switch strings.ToLower(format) {
	case "json", "yaml", "yml":
		return nil
	default:
		return fmt.Errorf("unsupported report format: %s. Supported formats are 'json', 'yaml'", format)
	}
}

// IsValidFilePermissions checks that only the owner can write a file.
func IsValidFilePermissions(mode os.FileMode) error {
	if mode.Perm()&0022 != 0 {
		return fmt.Errorf("file permissions are too permissive: %s. Recommended 0600 or 0644", mode.String())
	}
	return nil
}
