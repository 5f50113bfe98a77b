// Package scanner walks a directory tree looking for statement files to
// batch-import. The expected layout is {root}/{account-nickname}/file.ext.
package scanner

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Scanner walks a directory tree and finds statement files
type Scanner struct {
	rootDir string
}

// New creates a new scanner for the given root directory
func New(rootDir string) *Scanner {
	return &Scanner{rootDir: rootDir}
}

// ScanResult is one statement file found under the root
type ScanResult struct {
	Path string
	// AccountNickname is the parent directory name, matched against
	// account nicknames when importing
	AccountNickname string
}

// Scan walks the directory tree and returns all statement files
func (s *Scanner) Scan() ([]ScanResult, error) {
	rootDir := s.expandHome(s.rootDir)

	var results []ScanResult
	err := filepath.Walk(rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if !s.isStatementFile(path) {
			return nil
		}

		results = append(results, ScanResult{
			Path:            path,
			AccountNickname: s.accountNickname(path, rootDir),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}

	return results, nil
}

// isStatementFile checks if the file has a known statement extension
func (s *Scanner) isStatementFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".xlsx" || ext == ".xls" || ext == ".csv" || ext == ".ofx" || ext == ".qfx"
}

// accountNickname extracts the parent directory relative to the root.
// Files directly under the root have no nickname.
func (s *Scanner) accountNickname(filePath, rootDir string) string {
	relPath, err := filepath.Rel(rootDir, filePath)
	if err != nil {
		relPath = filePath
	}

	parts := strings.Split(filepath.ToSlash(relPath), "/")
	if len(parts) >= 2 {
		return parts[len(parts)-2]
	}
	return ""
}

// expandHome expands ~ to the home directory
func (s *Scanner) expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}
