package driver

import (
	"context"
	"crypto/sha256"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"tephra/internal/source"
)

// Digest fingerprints the content of a set of stub files.
type Digest = source.Digest

// IsStubFile reports whether path has a stub extension.
func IsStubFile(path string) bool {
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// CollectFiles expands paths into a sorted list of stub files. Directories
// are walked recursively; explicit files are taken whatever their extension.
func CollectFiles(ctx context.Context, paths []string) ([]string, error) {
	var files []string
	seen := make(map[string]struct{})
	addFile := func(path string) {
		path = filepath.Clean(path)
		if _, ok := seen[path]; ok {
			return
		}
		seen[path] = struct{}{}
		files = append(files, path)
	}

	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			addFile(p)
			continue
		}
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if d.IsDir() {
				if path != p && len(d.Name()) > 1 && d.Name()[0] == '.' {
					return filepath.SkipDir
				}
				return nil
			}
			if IsStubFile(path) {
				addFile(path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	sort.Strings(files)
	return files, nil
}

// DigestFiles hashes the sorted file list together with every file's
// content. A file that cannot be read contributes its name only, so that it
// reappearing changes the digest.
func DigestFiles(files []string) Digest {
	parts := make([]source.Digest, 0, 2*len(files))
	for _, path := range files {
		parts = append(parts, sha256.Sum256([]byte(path)))
		// #nosec G304 -- path comes from CollectFiles
		content, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		parts = append(parts, sha256.Sum256(content))
	}
	return source.Combine(parts...)
}
