// Package catalog holds the process-wide description of available GIS layers
// and the commune reference table. A Catalog is built once at startup by one
// of the loaders and never mutated afterwards; refreshing layer data means
// building a new Catalog and swapping the pointer handed to the pipeline.
package catalog

import (
	"strings"

	dErrors "urbacert/pkg/domain-errors"
)

// CadastralSection and CadastralNumero name the parcel-identifying attributes
// of the cadastral layer, matching the IGN parcel export.
const (
	CadastralSection = "section"
	CadastralNumero  = "numero"
	CadastralINSEE   = "code_insee"
)

// Catalog is the immutable layer and commune registry.
type Catalog struct {
	layers    []Layer
	bySchema  map[string][]Layer
	communes  []CommuneRecord
	byINSEE   map[string]CommuneRecord
	byName    map[string][]CommuneRecord
	cadastral string
}

// New assembles a catalog from loaded layers and commune records. cadastral
// names the schema-qualified layer holding parcel boundaries; it is consulted
// by parcel resolution, never by intersection.
func New(layers []Layer, communes []CommuneRecord, cadastral string) *Catalog {
	c := &Catalog{
		layers:    layers,
		bySchema:  make(map[string][]Layer),
		communes:  communes,
		byINSEE:   make(map[string]CommuneRecord, len(communes)),
		byName:    make(map[string][]CommuneRecord),
		cadastral: cadastral,
	}
	for _, l := range layers {
		c.bySchema[l.Schema] = append(c.bySchema[l.Schema], l)
	}
	for _, rec := range communes {
		c.byINSEE[rec.INSEE] = rec
		key := NormalizeCommuneName(rec.Name)
		c.byName[key] = append(c.byName[key], rec)
	}
	return c
}

// HasSchema reports whether any layer is registered under schema.
func (c *Catalog) HasSchema(schema string) bool {
	_, ok := c.bySchema[schema]
	return ok
}

// ListLayers returns the layers under the whitelisted schemas, excluding the
// cadastral layer, plus the whitelist entries unknown to the catalog. Unknown
// schemas are a stage-local condition, not an error.
func (c *Catalog) ListLayers(schemas []string) (layers []Layer, unknown []string) {
	for _, schema := range schemas {
		if !c.HasSchema(schema) {
			unknown = append(unknown, schema)
			continue
		}
		for _, l := range c.bySchema[schema] {
			if l.Qualified() == c.cadastral {
				continue
			}
			layers = append(layers, l)
		}
	}
	return layers, unknown
}

// TriggerLayers returns the layers flagged as enclave triggers.
func (c *Catalog) TriggerLayers() []Layer {
	var out []Layer
	for _, l := range c.layers {
		if l.EnclaveTrigger {
			out = append(out, l)
		}
	}
	return out
}

// LookupCommuneByINSEE resolves an INSEE code to its commune record.
func (c *Catalog) LookupCommuneByINSEE(insee string) (CommuneRecord, error) {
	rec, ok := c.byINSEE[strings.TrimSpace(insee)]
	if !ok {
		return CommuneRecord{}, dErrors.New(dErrors.CodeCommuneNotFound, "no commune for INSEE "+insee)
	}
	return rec, nil
}

// LookupCommuneByName resolves a commune name, optionally narrowed by
// department code to disambiguate homonyms. Ambiguous matches fail.
func (c *Catalog) LookupCommuneByName(name, department string) (CommuneRecord, error) {
	matches := c.byName[NormalizeCommuneName(name)]
	if department != "" {
		dep := normalizeDepartment(department)
		var narrowed []CommuneRecord
		for _, rec := range matches {
			if strings.EqualFold(rec.Department, dep) {
				narrowed = append(narrowed, rec)
			}
		}
		matches = narrowed
	}
	switch len(matches) {
	case 0:
		return CommuneRecord{}, dErrors.New(dErrors.CodeCommuneNotFound, "no commune named "+name)
	case 1:
		return matches[0], nil
	default:
		return CommuneRecord{}, dErrors.New(dErrors.CodeCommuneNotFound, "ambiguous commune name "+name)
	}
}

// FindParcelFeature locates a parcel boundary in the cadastral layer by INSEE
// code, section and four-digit numero.
func (c *Catalog) FindParcelFeature(insee, section, numero string) (*Feature, error) {
	for _, l := range c.layers {
		if l.Qualified() != c.cadastral {
			continue
		}
		for i := range l.Features {
			f := &l.Features[i]
			if f.AttrValue(CadastralINSEE) == insee &&
				f.AttrValue(CadastralSection) == section &&
				f.AttrValue(CadastralNumero) == numero {
				return f, nil
			}
		}
	}
	return nil, dErrors.New(dErrors.CodeParcelNotFound,
		"no parcel "+section+" "+numero+" in commune "+insee)
}

// NormalizeCommuneName folds case, diacritics, dashes and apostrophes so
// source spellings like "Sainte-Hélène" and "sainte helene" compare equal.
func NormalizeCommuneName(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	replacer := strings.NewReplacer(
		"é", "e", "è", "e", "ê", "e", "ë", "e",
		"à", "a", "â", "a",
		"ô", "o", "ö", "o",
		"ù", "u", "û", "u", "ü", "u",
		"ï", "i", "î", "i",
		"ç", "c",
		"-", " ", "'", " ", "’", " ",
	)
	s = replacer.Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// normalizeDepartment left-pads single-digit departments ("3" -> "03") and
// upper-cases Corsican codes ("2a" -> "2A").
func normalizeDepartment(dep string) string {
	d := strings.ToUpper(strings.TrimSpace(dep))
	if len(d) == 1 && d >= "0" && d <= "9" {
		return "0" + d
	}
	return d
}
