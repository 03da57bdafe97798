package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"captiond/internal/common/fsutil"
	"captiond/pkg/types"
)

// DefaultModelFile is the weights file preferred when scanning a models directory.
const DefaultModelFile = "Qwen2.5-VL-7B-Instruct-Q8_0.gguf"

// GGUFScanner lists *.gguf files in a directory.
type GGUFScanner struct{}

func NewGGUFScanner() *GGUFScanner { return &GGUFScanner{} }

// Scan returns every *.gguf file directly under dir, sorted by name.
// ID is the full filename; Projector is set for vision projector files.
func (s *GGUFScanner) Scan(dir string) ([]types.Model, error) {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var models []types.Model
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(strings.ToLower(name), ".gguf") {
			continue
		}
		m := types.Model{ID: name, Path: filepath.Join(abs, name), Projector: IsProjector(name)}
		if fi, err := e.Info(); err == nil {
			m.Size = fi.Size()
		}
		models = append(models, m)
	}
	sort.Slice(models, func(i, j int) bool { return models[i].ID < models[j].ID })
	return models, nil
}

// LoadDir scans a directory for *.gguf files.
func LoadDir(dir string) ([]types.Model, error) {
	return NewGGUFScanner().Scan(dir)
}

// IsProjector reports whether a file name looks like a multimodal projector.
func IsProjector(name string) bool {
	return strings.Contains(strings.ToLower(name), "mmproj")
}

// Sources are the configured locations, in precedence order.
type Sources struct {
	DevModelPath  string
	ModelPath     string
	ProjectorPath string
	ModelsDir     string
}

// Selection is the resolved pair of files handed to the model manager.
type Selection struct {
	ModelPath     string
	ProjectorPath string
	DevMode       bool
}

// Resolve picks the weights and projector files. Precedence for the weights
// is DevModelPath, ModelPath, then a scan of ModelsDir. When nothing is found
// the default file under ModelsDir is returned so callers can report it as
// missing; loading is lazy and the absence is not an error here.
func Resolve(src Sources) (Selection, error) {
	var sel Selection
	dev, err := fsutil.ExpandHome(src.DevModelPath)
	if err != nil {
		return sel, err
	}
	explicit, err := fsutil.ExpandHome(src.ModelPath)
	if err != nil {
		return sel, err
	}
	dir, err := fsutil.ExpandHome(src.ModelsDir)
	if err != nil {
		return sel, err
	}
	var scanned []types.Model
	switch {
	case dev != "":
		sel.ModelPath, sel.DevMode = dev, true
	case explicit != "":
		sel.ModelPath = explicit
	default:
		scanned, _ = LoadDir(dir)
		sel.ModelPath = pickWeights(scanned, dir)
	}

	proj, err := fsutil.ExpandHome(src.ProjectorPath)
	if err != nil {
		return sel, err
	}
	if proj == "" {
		if scanned == nil {
			scanned, _ = LoadDir(filepath.Dir(sel.ModelPath))
		}
		proj = pickProjector(scanned)
	}
	sel.ProjectorPath = proj
	return sel, nil
}

func pickWeights(models []types.Model, dir string) string {
	var first string
	for _, m := range models {
		if m.Projector {
			continue
		}
		if m.ID == DefaultModelFile {
			return m.Path
		}
		if first == "" {
			first = m.Path
		}
	}
	if first != "" {
		return first
	}
	return filepath.Join(dir, DefaultModelFile)
}

func pickProjector(models []types.Model) string {
	for _, m := range models {
		if m.Projector {
			return m.Path
		}
	}
	return ""
}
