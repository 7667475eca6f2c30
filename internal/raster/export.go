package raster

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/nvandessel/lifnet/internal/constants"
)

// Format is a spike raster encoding.
type Format string

const (
	FormatCSV     Format = constants.FormatCSV
	FormatJSONL   Format = constants.FormatJSONL
	FormatArrow   Format = constants.FormatArrow
	FormatParquet Format = constants.FormatParquet
)

// ErrUnknownFormat is returned for an unrecognized format name or extension.
var ErrUnknownFormat = errors.New("unknown raster format")

// Formats lists the supported encodings.
var Formats = []Format{FormatCSV, FormatJSONL, FormatArrow, FormatParquet}

// ParseFormat maps a name to a Format (case-insensitive).
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv", "":
		return FormatCSV, nil
	case "jsonl", "ndjson":
		return FormatJSONL, nil
	case "arrow", "arrows", "ipc":
		return FormatArrow, nil
	case "parquet", "pq":
		return FormatParquet, nil
	}
	return "", fmt.Errorf("%w: %q (valid: csv, jsonl, arrow, parquet)", ErrUnknownFormat, s)
}

// FormatFromPath infers a format from a file extension, defaulting to CSV
// for unknown or missing extensions.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl", ".ndjson":
		return FormatJSONL
	case ".arrow", ".arrows", ".ipc":
		return FormatArrow
	case ".parquet", ".pq":
		return FormatParquet
	}
	return FormatCSV
}

// Encode writes events to w in the given format.
func Encode(w io.Writer, format Format, events []Event, meta map[string]string) error {
	switch format {
	case FormatCSV:
		return WriteCSV(w, events)
	case FormatJSONL:
		return WriteJSONL(w, events)
	case FormatArrow:
		return WriteArrow(w, events, meta)
	case FormatParquet:
		return WriteParquet(w, events, meta)
	}
	return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

// Decode reads events in the given format.
func Decode(ctx context.Context, data []byte, format Format) ([]Event, error) {
	switch format {
	case FormatCSV:
		return ReadCSV(bytes.NewReader(data))
	case FormatJSONL:
		return ReadJSONL(bytes.NewReader(data))
	case FormatArrow:
		return ReadArrow(data)
	case FormatParquet:
		return ReadParquet(ctx, data)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

// Export encodes events and writes them to path. The file is written to a
// temporary sibling and renamed into place, so a failed export never leaves
// a truncated raster behind. The parent directory must exist.
// It returns the number of bytes written.
func Export(path string, format Format, events []Event, meta map[string]string) (int64, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, format, events, meta); err != nil {
		return 0, err
	}
	if err := writeFileAtomic(path, buf.Bytes()); err != nil {
		return 0, fmt.Errorf("writing %s: %w", path, err)
	}
	return int64(buf.Len()), nil
}

// Load reads a raster file, inferring the format from its extension.
func Load(ctx context.Context, path string) ([]Event, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	events, err := Decode(ctx, data, FormatFromPath(path))
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return events, nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() { os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return err
	}
	return nil
}
