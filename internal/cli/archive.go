package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dyike/CortexFolio/models"
)

const reportSuffix = "_report.json"

// ReportArchive stores portfolio reports as JSON files under
// <data dir>/reports.
type ReportArchive struct {
	dir string
}

type ReportSummary struct {
	Name        string    `json:"name"`
	Symbols     []string  `json:"symbols"`
	Benchmark   string    `json:"benchmark"`
	GeneratedAt time.Time `json:"generated_at"`
	FilePath    string    `json:"file_path"`
	FileSize    int64     `json:"file_size"`
}

func NewReportArchive(dataDir string) *ReportArchive {
	return &ReportArchive{dir: filepath.Join(dataDir, "reports")}
}

// Save writes r and returns the file path. The name is derived from the
// generation time and the held symbols.
func (a *ReportArchive) Save(r *models.PortfolioReport) (string, error) {
	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return "", fmt.Errorf("create reports dir: %w", err)
	}
	name := reportName(r)
	path := filepath.Join(a.dir, name+reportSuffix)

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}

// List returns the saved reports, newest first. Unreadable files are
// skipped.
func (a *ReportArchive) List() ([]ReportSummary, error) {
	entries, err := os.ReadDir(a.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read reports dir: %w", err)
	}

	var out []ReportSummary
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), reportSuffix) {
			continue
		}
		name := strings.TrimSuffix(e.Name(), reportSuffix)
		r, err := a.Load(name)
		if err != nil {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, ReportSummary{
			Name:        name,
			Symbols:     r.Portfolio.Symbols(),
			Benchmark:   r.Benchmark,
			GeneratedAt: r.GeneratedAt,
			FilePath:    filepath.Join(a.dir, e.Name()),
			FileSize:    info.Size(),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].GeneratedAt.Equal(out[j].GeneratedAt) {
			return out[i].Name > out[j].Name
		}
		return out[i].GeneratedAt.After(out[j].GeneratedAt)
	})
	return out, nil
}

func (a *ReportArchive) Load(name string) (*models.PortfolioReport, error) {
	path, err := a.path(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read report %s: %w", name, err)
	}
	var r models.PortfolioReport
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode report %s: %w", name, err)
	}
	return &r, nil
}

func (a *ReportArchive) Delete(name string) error {
	path, err := a.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("delete report %s: %w", name, err)
	}
	return nil
}

func (a *ReportArchive) path(name string) (string, error) {
	name = strings.TrimSuffix(strings.TrimSpace(name), reportSuffix)
	if name == "" || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return "", fmt.Errorf("invalid report name %q", name)
	}
	return filepath.Join(a.dir, name+reportSuffix), nil
}

func reportName(r *models.PortfolioReport) string {
	syms := r.Portfolio.Symbols()
	if len(syms) > 4 {
		syms = append(syms[:4], fmt.Sprintf("%dmore", len(r.Portfolio)-4))
	}
	return r.GeneratedAt.UTC().Format("20060102T150405") + "_" + sanitizeFilename(strings.Join(syms, "-"))
}

func sanitizeFilename(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
