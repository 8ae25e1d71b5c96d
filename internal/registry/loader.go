package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"sessiond/internal/common/fsutil"
	"sessiond/pkg/types"
)

// Scanner discovers model files under a directory.
type Scanner interface {
	Scan(dir string) ([]types.Model, error)
}

// fileScanner lists *.gguf and *.bin files and builds registry entries from
// filenames. ID is the full filename (including extension); Path is absolute.
type fileScanner struct{}

// NewScanner returns the default filesystem scanner.
func NewScanner() Scanner { return fileScanner{} }

var quantRe = regexp.MustCompile(`(?i)(q[0-9]+(_[a-z0-9]+)*|f16|f32)`)

func (fileScanner) Scan(dir string) ([]types.Model, error) {
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
		lower := strings.ToLower(name)
		if !strings.HasSuffix(lower, ".gguf") && !strings.HasSuffix(lower, ".bin") {
			continue
		}
		models = append(models, types.Model{
			ID:     name,
			Name:   name,
			Path:   filepath.Join(abs, name),
			Quant:  quantOf(name),
			Family: familyOf(name),
		})
	}
	return models, nil
}

// quantOf extracts a quantization tag like Q4_K_M from a filename, if any.
func quantOf(name string) string {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	if m := quantRe.FindString(stem); m != "" {
		return strings.ToUpper(m)
	}
	return ""
}

// familyOf guesses the model family from the leading filename token.
func familyOf(name string) string {
	stem := strings.ToLower(strings.TrimSuffix(name, filepath.Ext(name)))
	for _, fam := range []string{"llama", "mistral", "phi", "qwen", "gemma"} {
		if strings.Contains(stem, fam) {
			return fam
		}
	}
	return ""
}

// LoadDir scans dir with the default scanner.
func LoadDir(dir string) ([]types.Model, error) {
	return NewScanner().Scan(dir)
}

// FindByID returns the model with the given id, if present.
func FindByID(models []types.Model, id string) (types.Model, bool) {
	for _, m := range models {
		if m.ID == id {
			return m, true
		}
	}
	return types.Model{}, false
}
