// Package fsutil provides file system utility functions.
package fsutil

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// scriptExtension is the file suffix workflow scripts use.
const scriptExtension = ".hcl"

// FindScripts resolves a path to the workflow script files it contains. A
// file path is returned as-is; a directory is walked recursively for .hcl
// files, skipping hidden directories. Results are sorted so load order is
// deterministic across platforms.
func FindScripts(rootPath string) ([]string, error) {
	info, err := os.Stat(rootPath)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{rootPath}, nil
	}

	var files []string
	err = filepath.WalkDir(rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && strings.HasPrefix(d.Name(), ".") && path != rootPath {
			return filepath.SkipDir
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), scriptExtension) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}
