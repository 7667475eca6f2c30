package raster

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/ipc"
	"github.com/apache/arrow/go/v17/arrow/memory"
	"github.com/apache/arrow/go/v17/parquet"
	"github.com/apache/arrow/go/v17/parquet/compress"
	"github.com/apache/arrow/go/v17/parquet/pqarrow"
)

// Column names shared by the Arrow and Parquet renderings.
const (
	ColTime   = "time_ms"
	ColNeuron = "neuron"
	ColStep   = "step"
)

// Schema returns the Arrow schema for a spike raster. meta is attached as
// schema metadata (run id, dt, synapse mode, ...).
func Schema(meta map[string]string) *arrow.Schema {
	var md *arrow.Metadata
	if len(meta) > 0 {
		keys := make([]string, 0, len(meta))
		for k := range meta {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		values := make([]string, len(keys))
		for i, k := range keys {
			values[i] = meta[k]
		}
		m := arrow.NewMetadata(keys, values)
		md = &m
	}
	return arrow.NewSchema([]arrow.Field{
		{Name: ColTime, Type: arrow.PrimitiveTypes.Float64},
		{Name: ColNeuron, Type: arrow.PrimitiveTypes.Int32},
		{Name: ColStep, Type: arrow.PrimitiveTypes.Int64},
	}, md)
}

// buildRecord converts events to a single Arrow record. The caller must
// Release it.
func buildRecord(mem memory.Allocator, schema *arrow.Schema, events []Event) arrow.Record {
	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()

	times := b.Field(0).(*array.Float64Builder)
	neurons := b.Field(1).(*array.Int32Builder)
	steps := b.Field(2).(*array.Int64Builder)
	times.Reserve(len(events))
	neurons.Reserve(len(events))
	steps.Reserve(len(events))
	for _, e := range events {
		times.Append(e.Time)
		neurons.Append(int32(e.Neuron))
		steps.Append(int64(e.Step))
	}
	return b.NewRecord()
}

// WriteArrow writes events as an Arrow IPC stream: the schema message
// followed by one record batch. The stream format needs no seekable
// destination, so it encodes into any writer.
func WriteArrow(w io.Writer, events []Event, meta map[string]string) error {
	mem := memory.NewGoAllocator()
	schema := Schema(meta)
	rec := buildRecord(mem, schema, events)
	defer rec.Release()

	sw := ipc.NewWriter(w, ipc.WithSchema(schema), ipc.WithAllocator(mem))
	if err := sw.Write(rec); err != nil {
		sw.Close()
		return fmt.Errorf("writing arrow record: %w", err)
	}
	if err := sw.Close(); err != nil {
		return fmt.Errorf("closing arrow writer: %w", err)
	}
	return nil
}

// ReadArrow reads an Arrow IPC stream written by WriteArrow.
func ReadArrow(data []byte) ([]Event, error) {
	mem := memory.NewGoAllocator()
	rdr, err := ipc.NewReader(bytes.NewReader(data), ipc.WithAllocator(mem))
	if err != nil {
		return nil, fmt.Errorf("opening arrow stream: %w", err)
	}
	defer rdr.Release()

	var events []Event
	for rdr.Next() {
		events, err = appendRecord(events, rdr.Record())
		if err != nil {
			return nil, err
		}
	}
	if err := rdr.Err(); err != nil {
		return nil, fmt.Errorf("reading arrow stream: %w", err)
	}
	return events, nil
}

// WriteParquet writes events as a Snappy-compressed Parquet file.
func WriteParquet(w io.Writer, events []Event, meta map[string]string) error {
	mem := memory.NewGoAllocator()
	schema := Schema(meta)
	rec := buildRecord(mem, schema, events)
	defer rec.Release()

	props := parquet.NewWriterProperties(
		parquet.WithCompression(compress.Codecs.Snappy),
		parquet.WithAllocator(mem),
	)
	fw, err := pqarrow.NewFileWriter(schema, w, props, pqarrow.DefaultWriterProps())
	if err != nil {
		return fmt.Errorf("creating parquet writer: %w", err)
	}
	if err := fw.Write(rec); err != nil {
		fw.Close()
		return fmt.Errorf("writing parquet rows: %w", err)
	}
	if err := fw.Close(); err != nil {
		return fmt.Errorf("closing parquet writer: %w", err)
	}
	return nil
}

// ReadParquet reads a Parquet file written by WriteParquet.
func ReadParquet(ctx context.Context, data []byte) ([]Event, error) {
	mem := memory.NewGoAllocator()
	tbl, err := pqarrow.ReadTable(ctx, bytes.NewReader(data), parquet.NewReaderProperties(mem),
		pqarrow.ArrowReadProperties{}, mem)
	if err != nil {
		return nil, fmt.Errorf("reading parquet: %w", err)
	}
	defer tbl.Release()

	tr := array.NewTableReader(tbl, 0)
	defer tr.Release()

	var events []Event
	for tr.Next() {
		events, err = appendRecord(events, tr.Record())
		if err != nil {
			return nil, err
		}
	}
	return events, nil
}

func appendRecord(events []Event, rec arrow.Record) ([]Event, error) {
	if rec.NumCols() != 3 {
		return nil, fmt.Errorf("expected 3 columns, got %d", rec.NumCols())
	}
	times, ok := rec.Column(0).(*array.Float64)
	if !ok {
		return nil, fmt.Errorf("column %s: unexpected type %s", ColTime, rec.Column(0).DataType())
	}
	neurons, ok := rec.Column(1).(*array.Int32)
	if !ok {
		return nil, fmt.Errorf("column %s: unexpected type %s", ColNeuron, rec.Column(1).DataType())
	}
	steps, ok := rec.Column(2).(*array.Int64)
	if !ok {
		return nil, fmt.Errorf("column %s: unexpected type %s", ColStep, rec.Column(2).DataType())
	}
	for i := 0; i < int(rec.NumRows()); i++ {
		events = append(events, Event{
			Step:   int(steps.Value(i)),
			Neuron: int(neurons.Value(i)),
			Time:   times.Value(i),
		})
	}
	return events, nil
}
