package source

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"time"
)

// DefaultStaleAge is how old a temporary directory must be before Prune
// removes it.
const DefaultStaleAge = time.Hour

var tempDirPattern = regexp.MustCompile(`^` + regexp.QuoteMeta(TempDirPrefix) + `-(.+?)-(\d+)(?:-\d+)?$`)

// TempDirInfo describes a temporary directory left in a working directory,
// usually by a process that was killed before it could clean up.
type TempDirInfo struct {
	Path      string    `json:"path" yaml:"path"`
	Purpose   string    `json:"purpose" yaml:"purpose"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	Size      int64     `json:"size" yaml:"size"`
}

// PruneResult contains what Prune removed.
type PruneResult struct {
	Deleted []TempDirInfo `json:"deleted" yaml:"deleted"`
	Kept    int           `json:"kept" yaml:"kept"`
}

// ListTempDirs returns the temporary directories in workDir, newest first.
func ListTempDirs(workDir string) ([]TempDirInfo, error) {
	entries, err := os.ReadDir(workDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", workDir, err)
	}

	var dirs []TempDirInfo
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		m := tempDirPattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		sec, err := strconv.ParseInt(m[2], 10, 64)
		if err != nil {
			continue
		}
		path := filepath.Join(workDir, e.Name())
		dirs = append(dirs, TempDirInfo{
			Path:      path,
			Purpose:   m[1],
			CreatedAt: time.Unix(sec, 0),
			Size:      dirSize(path),
		})
	}

	sort.Slice(dirs, func(i, j int) bool {
		return dirs[i].CreatedAt.After(dirs[j].CreatedAt)
	})
	return dirs, nil
}

// Prune removes temporary directories in workDir created more than
// olderThan before now.
func Prune(workDir string, olderThan time.Duration, now time.Time) (*PruneResult, error) {
	if olderThan < 0 {
		return nil, fmt.Errorf("age must be non-negative")
	}
	dirs, err := ListTempDirs(workDir)
	if err != nil {
		return nil, err
	}

	result := &PruneResult{}
	cutoff := now.Add(-olderThan)
	for _, d := range dirs {
		if d.CreatedAt.After(cutoff) {
			result.Kept++
			continue
		}
		if err := os.RemoveAll(d.Path); err != nil {
			return nil, fmt.Errorf("failed to delete %s: %w", d.Path, err)
		}
		result.Deleted = append(result.Deleted, d)
	}
	return result, nil
}

func dirSize(root string) int64 {
	var size int64
	_ = filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.Type().IsRegular() {
			if info, err := d.Info(); err == nil {
				size += info.Size()
			}
		}
		return nil
	})
	return size
}
