package raster

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// WriteCSV writes one "time,neuron" line per event, preserving order.
func WriteCSV(w io.Writer, events []Event) error {
	bw := bufio.NewWriter(w)
	for _, e := range events {
		if _, err := bw.WriteString(FormatTime(e.Time)); err != nil {
			return fmt.Errorf("writing spike: %w", err)
		}
		if err := bw.WriteByte(','); err != nil {
			return fmt.Errorf("writing spike: %w", err)
		}
		if _, err := bw.WriteString(strconv.Itoa(e.Neuron)); err != nil {
			return fmt.Errorf("writing spike: %w", err)
		}
		if err := bw.WriteByte('\n'); err != nil {
			return fmt.Errorf("writing spike: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flushing spikes: %w", err)
	}
	return nil
}

// ReadCSV parses the format produced by WriteCSV. Blank lines are skipped;
// any malformed line is an error. Step is set to -1.
func ReadCSV(r io.Reader) ([]Event, error) {
	scanner := bufio.NewScanner(r)
	var events []Event
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		timeStr, neuronStr, ok := strings.Cut(line, ",")
		if !ok {
			return nil, fmt.Errorf("line %d: expected time,neuron", lineNum)
		}
		ms, err := strconv.ParseFloat(strings.TrimSpace(timeStr), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: parsing time: %w", lineNum, err)
		}
		id, err := strconv.Atoi(strings.TrimSpace(neuronStr))
		if err != nil {
			return nil, fmt.Errorf("line %d: parsing neuron: %w", lineNum, err)
		}
		if id < 0 {
			return nil, fmt.Errorf("line %d: negative neuron index %d", lineNum, id)
		}
		events = append(events, Event{Step: -1, Neuron: id, Time: ms})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanner error: %w", err)
	}
	return events, nil
}
