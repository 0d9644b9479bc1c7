package batch

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// imageExtensions are the formats the OCR decorator can decode.
var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".bmp":  true,
	".webp": true,
}

// isSupportedImage reports whether path has a decodable image extension.
func isSupportedImage(path string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(path))]
}

// discoverImageFiles finds all image files matching the given patterns.
// Files named explicitly are kept in argument order; directory contents are
// walked in lexical order.
func discoverImageFiles(args []string, recursive bool, includePatterns, excludePatterns []string) ([]string, error) {
	var imageFiles []string
	seen := map[string]bool{}

	add := func(path string) {
		if !seen[path] {
			seen[path] = true
			imageFiles = append(imageFiles, path)
		}
	}

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", arg, err)
		}

		if info.IsDir() {
			files, err := discoverInDirectory(arg, recursive, includePatterns, excludePatterns)
			if err != nil {
				return nil, err
			}
			for _, f := range files {
				add(f)
			}
		} else if shouldIncludeFile(arg, includePatterns, excludePatterns) {
			add(arg)
		}
	}

	return imageFiles, nil
}

// discoverInDirectory walks dir, descending into subdirectories only when
// recursive is set.
func discoverInDirectory(dir string, recursive bool, includePatterns, excludePatterns []string) ([]string, error) {
	var files []string

	walkFn := func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if !recursive && path != dir {
				return filepath.SkipDir
			}
			return nil
		}

		if shouldIncludeFile(path, includePatterns, excludePatterns) {
			files = append(files, path)
		}
		return nil
	}

	return files, filepath.WalkDir(dir, walkFn)
}

// shouldIncludeFile determines if a file should be included based on include/exclude patterns.
// Without include patterns every supported image is included.
func shouldIncludeFile(path string, includePatterns, excludePatterns []string) bool {
	if matchesAnyPattern(path, excludePatterns) {
		return false
	}

	if len(includePatterns) == 0 {
		return isSupportedImage(path)
	}

	return matchesAnyPattern(path, includePatterns)
}

// matchesAnyPattern matches the base name of path against shell patterns.
func matchesAnyPattern(path string, patterns []string) bool {
	base := filepath.Base(path)
	for _, pattern := range patterns {
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}
	return false
}
