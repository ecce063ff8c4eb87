package asset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads an inventory file keyed by IP. The format follows the extension:
// .yaml/.yml holds an `assets:` list, anything else is CSV with a header row
// naming at least ip_address. Duplicate IPs keep the first row.
func Load(path string) (map[string]Record, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from operator config
	if err != nil {
		return nil, fmt.Errorf("open inventory: %w", err)
	}
	defer func() { _ = f.Close() }()

	var rows []Record
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		rows, err = decodeYAML(f)
	default:
		rows, err = decodeCSV(f)
	}
	if err != nil {
		return nil, err
	}

	out := make(map[string]Record, len(rows))
	for _, rec := range rows {
		ip := strings.TrimSpace(rec.IPAddress)
		if ip == "" {
			continue
		}
		if _, dup := out[ip]; dup {
			continue
		}
		rec.IPAddress = ip
		out[ip] = rec
	}
	return out, nil
}

func decodeYAML(r io.Reader) ([]Record, error) {
	var doc struct {
		Assets []Record `yaml:"assets"`
	}
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("decode yaml inventory: %w", err)
	}
	return doc.Assets, nil
}

func decodeCSV(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	if _, ok := cols["ip_address"]; !ok {
		return nil, errors.New("csv inventory has no ip_address column")
	}

	field := func(row []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var out []Record
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}
		out = append(out, Record{
			IPAddress:   field(row, "ip_address"),
			Hostname:    field(row, "hostname"),
			Criticality: field(row, "criticality"),
			Owner:       field(row, "owner"),
			Department:  field(row, "department"),
		})
	}
	return out, nil
}
