package catalog

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
)

// mappingEntry mirrors one value of the mapping JSON file keyed by
// "schema.table". Unknown keys are ignored for forward compatibility.
type mappingEntry struct {
	Geom           string   `json:"geom"`
	Keep           []string `json:"keep"`
	CoverageBy     []string `json:"coverage_by"`
	EnclaveTrigger bool     `json:"enclave_trigger"`
}

// LayerDescriptor describes a layer before its features are loaded.
type LayerDescriptor struct {
	Schema         string
	Name           string
	GeomColumn     string
	KeepAttrs      []string
	CoverageAttrs  []string
	EnclaveTrigger bool
}

// Qualified returns the schema-qualified name of the described layer.
func (d LayerDescriptor) Qualified() string { return d.Schema + "." + d.Name }

// ParseMapping reads the layer mapping document: a JSON object keyed by
// "schema.table" with geometry column, attribute whitelist, coverage and
// trigger settings. Keys without a schema qualifier are skipped, matching the
// source pipeline's tolerance for malformed entries.
func ParseMapping(r io.Reader) ([]LayerDescriptor, error) {
	var raw map[string]mappingEntry
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode layer mapping: %w", err)
	}

	descs := make([]LayerDescriptor, 0, len(raw))
	for fq, entry := range raw {
		schema, table, ok := strings.Cut(fq, ".")
		if !ok {
			continue
		}
		geom := entry.Geom
		if geom == "" {
			geom = "geom"
		}
		descs = append(descs, LayerDescriptor{
			Schema:         schema,
			Name:           table,
			GeomColumn:     geom,
			KeepAttrs:      entry.Keep,
			CoverageAttrs:  entry.CoverageBy,
			EnclaveTrigger: entry.EnclaveTrigger,
		})
	}
	// JSON object order is not stable; sort for a deterministic catalog.
	sort.Slice(descs, func(i, j int) bool { return descs[i].Qualified() < descs[j].Qualified() })
	return descs, nil
}

// ParseCommunesCSV reads the INSEE commune reference CSV. Expected columns
// follow the official export: COM (INSEE code), DEP, and LIBELLE or NCCENR
// for the name. Rows without a COM value are skipped.
func ParseCommunesCSV(r io.Reader) ([]CommuneRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read communes CSV header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToUpper(strings.TrimSpace(name))] = i
	}
	comIdx, ok := col["COM"]
	if !ok {
		return nil, fmt.Errorf("communes CSV missing COM column")
	}

	field := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var records []CommuneRecord
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read communes CSV: %w", err)
		}
		insee := strings.TrimSpace(row[comIdx])
		if insee == "" {
			continue
		}
		name := field(row, "LIBELLE")
		if name == "" {
			name = field(row, "NCCENR")
		}
		records = append(records, CommuneRecord{
			INSEE:      insee,
			Name:       name,
			Department: field(row, "DEP"),
		})
	}
	return records, nil
}
