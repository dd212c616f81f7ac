// Package fileutils provides the file operations used by the command line.
package fileutils

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"fjacquet/bill-csv/internal/models"
)

// PDFExtension is the extension of accepted input documents.
const PDFExtension = ".pdf"

// FileExists checks if a file exists and is not a directory
func FileExists(filePath string) bool {
	info, err := os.Stat(filePath)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// DirectoryExists checks if a directory exists
func DirectoryExists(dirPath string) bool {
	info, err := os.Stat(dirPath)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// EnsureDirectoryExists creates a directory if it doesn't exist
func EnsureDirectoryExists(dirPath string) error {
	if !DirectoryExists(dirPath) {
		if err := os.MkdirAll(dirPath, models.PermissionDirectory); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	return nil
}

// WriteFile writes data to a file, creating the file if it doesn't exist
// and creating any parent directories if needed
func WriteFile(filePath string, data []byte, perm os.FileMode) error {
	if err := EnsureDirectoryExists(filepath.Dir(filePath)); err != nil {
		return err
	}
	if err := os.WriteFile(filePath, data, perm); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

// ListFilesWithExtension returns the files below dirPath whose extension
// matches extension, ignoring case, in lexical order.
func ListFilesWithExtension(dirPath, extension string) ([]string, error) {
	if !DirectoryExists(dirPath) {
		return nil, fmt.Errorf("directory does not exist: %s", dirPath)
	}

	var files []string
	err := filepath.WalkDir(dirPath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), extension) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	sort.Strings(files)
	return files, nil
}

// CollectPDFs expands the given paths into PDF files. Files are kept in the
// order given whatever their extension; directories contribute their PDFs in
// lexical order. A path listed twice is returned once.
func CollectPDFs(paths []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string

	add := func(path string) {
		key := filepath.Clean(path)
		if !seen[key] {
			seen[key] = true
			files = append(files, path)
		}
	}

	for _, path := range paths {
		switch {
		case DirectoryExists(path):
			found, err := ListFilesWithExtension(path, PDFExtension)
			if err != nil {
				return nil, err
			}
			for _, f := range found {
				add(f)
			}
		case FileExists(path):
			add(path)
		default:
			return nil, fmt.Errorf("input does not exist: %s", path)
		}
	}
	return files, nil
}

// LoadDocuments reads every file into a Document, preserving order.
func LoadDocuments(paths []string) ([]models.Document, error) {
	docs := make([]models.Document, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path) // #nosec G304 -- inputs are chosen by the user
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		docs = append(docs, models.NewDocument(path, data))
	}
	return docs, nil
}
