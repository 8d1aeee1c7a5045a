// Package stops holds the static reference table that maps external stop
// identifiers to canonical stop names.
package stops

import (
	_ "embed"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

//go:embed stops.csv
var defaultTable string

// Directory is read-only after Load and safe for concurrent lookups.
type Directory struct {
	names map[string]string
}

// IsStopNumber reports whether id looks like a station identifier. Platform
// and route-level identifiers in the same namespace end in a letter.
func IsStopNumber(id string) bool {
	if id == "" {
		return false
	}
	last := id[len(id)-1]
	return last >= '0' && last <= '9'
}

// Default loads the table compiled into the binary.
func Default() (*Directory, error) {
	return Load(strings.NewReader(defaultTable))
}

func LoadFile(path string) (*Directory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening stop table: %w", err)
	}
	defer f.Close()

	return Load(f)
}

// Load reads a GTFS stops.txt style CSV. Only the stop_id and stop_name
// columns are used; rows whose id does not end in a digit are ignored.
func Load(r io.Reader) (*Directory, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("error reading stop table header: %w", err)
	}
	idx := makeIndex(header)
	idCol, okID := idx["stop_id"]
	nameCol, okName := idx["stop_name"]
	if !okID || !okName {
		return nil, errors.New("stop table must have stop_id and stop_name columns")
	}

	d := &Directory{names: make(map[string]string)}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading stop table: %w", err)
		}
		if idCol >= len(record) || nameCol >= len(record) {
			continue
		}

		id := strings.TrimSpace(record[idCol])
		name := strings.TrimSpace(record[nameCol])
		if name == "" || !IsStopNumber(id) {
			continue
		}
		if _, seen := d.names[id]; !seen {
			d.names[id] = name
		}
	}

	return d, nil
}

// Lookup returns the canonical name for id. ok is false for unknown ids;
// callers skip those rather than inventing a stop.
func (d *Directory) Lookup(id string) (string, bool) {
	name, ok := d.names[id]
	return name, ok
}

func (d *Directory) Len() int {
	return len(d.names)
}

// Names returns the distinct canonical names, sorted.
func (d *Directory) Names() []string {
	seen := make(map[string]struct{}, len(d.names))
	out := make([]string, 0, len(d.names))
	for _, name := range d.names {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func makeIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, col := range header {
		// Strip a UTF-8 BOM that some exports put on the first column.
		col = strings.TrimPrefix(strings.TrimSpace(col), "\ufeff")
		idx[col] = i
	}
	return idx
}
