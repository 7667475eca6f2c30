package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/c2h5oh/datasize"
)

const (
	filePrefix = "lifnet-archive-"
	fileExt    = ".lna"
)

// Info holds metadata for retention decisions.
type Info struct {
	Path      string    `json:"path"`
	Size      int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
	Note      string    `json:"note,omitempty"`
}

// RetentionPolicy decides which archives to keep.
type RetentionPolicy interface {
	Apply(archives []Info) (keep []Info)
}

// CountPolicy keeps the N most recent archives.
type CountPolicy struct {
	MaxCount int
}

// Apply keeps the first MaxCount archives (assumed sorted newest-first).
func (p *CountPolicy) Apply(archives []Info) []Info {
	if len(archives) <= p.MaxCount {
		return archives
	}
	return archives[:p.MaxCount]
}

// AgePolicy keeps archives newer than MaxAge.
type AgePolicy struct {
	MaxAge time.Duration
}

// Apply keeps archives whose CreatedAt is within MaxAge of now.
func (p *AgePolicy) Apply(archives []Info) []Info {
	cutoff := time.Now().Add(-p.MaxAge)
	var keep []Info
	for _, a := range archives {
		if a.CreatedAt.After(cutoff) {
			keep = append(keep, a)
		}
	}
	return keep
}

// SizePolicy keeps archives until the total size exceeds MaxTotal.
// The newest archive is always kept.
type SizePolicy struct {
	MaxTotal datasize.ByteSize
}

// Apply keeps archives (newest-first) until adding the next would exceed the limit.
func (p *SizePolicy) Apply(archives []Info) []Info {
	var keep []Info
	var total uint64
	for _, a := range archives {
		if total+uint64(a.Size) > p.MaxTotal.Bytes() && len(keep) > 0 {
			break
		}
		keep = append(keep, a)
		total += uint64(a.Size)
	}
	return keep
}

// AllPolicy keeps an archive only if every sub-policy keeps it.
type AllPolicy struct {
	Policies []RetentionPolicy
}

// Apply returns the intersection of the sub-policies.
func (p *AllPolicy) Apply(archives []Info) []Info {
	kept := make(map[string]int)
	for _, policy := range p.Policies {
		for _, a := range policy.Apply(archives) {
			kept[a.Path]++
		}
	}

	var result []Info
	for _, a := range archives {
		if kept[a.Path] == len(p.Policies) {
			result = append(result, a)
		}
	}
	return result
}

func isArchiveFile(name string) bool {
	return strings.HasPrefix(name, filePrefix) && strings.HasSuffix(name, fileExt)
}

// List scans dir for archive files and returns them sorted newest-first.
func List(dir string) ([]Info, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading archive directory: %w", err)
	}

	var archives []Info
	for _, e := range entries {
		if e.IsDir() || !isArchiveFile(e.Name()) {
			continue
		}

		info, err := e.Info()
		if err != nil {
			continue
		}

		ai := Info{
			Path:      filepath.Join(dir, e.Name()),
			Size:      info.Size(),
			CreatedAt: info.ModTime(),
		}
		if h, err := ReadHeader(ai.Path); err == nil {
			ai.CreatedAt = h.CreatedAt
			ai.Note = h.Metadata[MetaNote]
		}
		archives = append(archives, ai)
	}

	// Timestamp is embedded in the filename
	sort.Slice(archives, func(i, j int) bool {
		return filepath.Base(archives[i].Path) > filepath.Base(archives[j].Path)
	})

	return archives, nil
}

// ApplyRetention deletes archives in dir not kept by the policy.
func ApplyRetention(dir string, policy RetentionPolicy) (deleted []string, err error) {
	archives, err := List(dir)
	if err != nil {
		return nil, err
	}

	keepSet := make(map[string]bool)
	for _, a := range policy.Apply(archives) {
		keepSet[a.Path] = true
	}

	for _, a := range archives {
		if !keepSet[a.Path] {
			if err := os.Remove(a.Path); err != nil {
				return deleted, fmt.Errorf("removing %s: %w", filepath.Base(a.Path), err)
			}
			deleted = append(deleted, a.Path)
		}
	}

	return deleted, nil
}

// ParseDuration parses duration strings like "30d", "2w", "720h".
func ParseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, fmt.Errorf("empty duration string")
	}

	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}

	if len(s) < 2 {
		return 0, fmt.Errorf("invalid duration: %q", s)
	}

	suffix := s[len(s)-1]
	num, err := strconv.Atoi(s[:len(s)-1])
	if err != nil {
		return 0, fmt.Errorf("invalid duration: %q", s)
	}

	switch suffix {
	case 'd':
		return time.Duration(num) * 24 * time.Hour, nil
	case 'w':
		return time.Duration(num) * 7 * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("unknown duration suffix %q in %q", string(suffix), s)
	}
}

// ParseSize parses sizes like "100MB" or "2GB".
func ParseSize(s string) (datasize.ByteSize, error) {
	var size datasize.ByteSize
	if err := size.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	return size, nil
}
