package download

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// cacheSearchDepth bounds how many directory levels below a cache
// subdirectory are scanned.
const cacheSearchDepth = 2

var siblingMarkers = []string{".partial", ".lock", ".tmp", ".temp", ".incomplete"}

// Locator finds the file that is growing while a transfer runs. Probe errors
// are treated as "not found".
type Locator struct {
	// CacheDir is the downloader cache root (HF_HOME). Empty skips the cache search.
	CacheDir string
}

// Locate returns the size and path of the best candidate for target, trying
// in order: target itself, the previously located path, the hub and downloads
// cache directories, then temp siblings of target. Size 0 means nothing found.
func (l Locator) Locate(target, previous string) (int64, string) {
	if n := sizeOf(target); n > 0 {
		return n, target
	}
	if previous != "" {
		if n := sizeOf(previous); n > 0 {
			return n, previous
		}
	}
	base := filepath.Base(target)
	if l.CacheDir != "" {
		for _, sub := range []string{"hub", "downloads"} {
			if n, p := searchCache(filepath.Join(l.CacheDir, sub), base); n > 0 {
				return n, p
			}
		}
	}
	return searchSiblings(target)
}

func sizeOf(path string) int64 {
	fi, err := os.Stat(path)
	if err != nil || fi.IsDir() {
		return 0
	}
	return fi.Size()
}

// searchCache returns the largest file under root whose name matches base or
// carries an incomplete/tmp marker.
func searchCache(root, base string) (int64, string) {
	var best int64
	var bestPath string
	_ = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() && p != root {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if p != root && depth(root, p) > cacheSearchDepth {
				return fs.SkipDir
			}
			return nil
		}
		name := d.Name()
		if name != base && !strings.Contains(name, base) &&
			!strings.HasSuffix(name, ".incomplete") && !strings.Contains(name, ".tmp") {
			return nil
		}
		if n := sizeOf(p); n > best {
			best, bestPath = n, p
		}
		return nil
	})
	return best, bestPath
}

func depth(root, p string) int {
	rel, err := filepath.Rel(root, p)
	if err != nil || rel == "." {
		return 0
	}
	return strings.Count(rel, string(filepath.Separator)) + 1
}

// searchSiblings looks for temp files next to target, e.g. model.gguf.partial
// or model.gguf.temp.
func searchSiblings(target string) (int64, string) {
	dir, base := filepath.Dir(target), filepath.Base(target)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, ""
	}
	var best int64
	var bestPath string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || name == base || !strings.Contains(name, base) || !hasMarker(name) {
			continue
		}
		p := filepath.Join(dir, name)
		if n := sizeOf(p); n > best {
			best, bestPath = n, p
		}
	}
	return best, bestPath
}

func hasMarker(name string) bool {
	for _, m := range siblingMarkers {
		if strings.Contains(name, m) {
			return true
		}
	}
	return false
}
