package core

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// HeaderMapping holds per-entity header overrides for imports:
// entity key -> external header -> schema field name.
//
// Overrides are loaded from YAML:
//
//	entities:
//	  items:
//	    "SKU #": item_id
//	    "Unit Price": current_unit_cost
type HeaderMapping map[string]map[string]string

type headerMappingFile struct {
	Entities map[string]map[string]string `yaml:"entities"`
}

// LoadHeaderMapping reads overrides from a YAML file. An empty path yields
// an empty mapping.
func LoadHeaderMapping(path string) (HeaderMapping, error) {
	if path == "" {
		return HeaderMapping{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading header mapping: %w", err)
	}

	var file headerMappingFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing header mapping %s: %w", path, err)
	}

	mapping := make(HeaderMapping, len(file.Entities))
	for entity, headers := range file.Entities {
		m := make(map[string]string, len(headers))
		for header, field := range headers {
			m[normalizeHeader(header)] = field
		}
		mapping[entity] = m
	}
	return mapping, nil
}

// Validate checks every override against the registry: the entity must exist
// and the target must be a non-derived field.
func (m HeaderMapping) Validate() error {
	var errs []string
	for entity, headers := range m {
		def, ok := Get(entity)
		if !ok {
			errs = append(errs, fmt.Sprintf("unknown entity %q", entity))
			continue
		}
		for header, field := range headers {
			spec, ok := def.Field(field)
			if !ok || spec.Derived {
				errs = append(errs, fmt.Sprintf("%s: header %q maps to unknown or derived field %q", entity, header, field))
			}
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid header mapping:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// normalizeHeader folds case, separators and repeated spaces so
// "Item_ID", "item id" and " ITEM-ID " compare equal.
func normalizeHeader(h string) string {
	h = strings.ToLower(CleanCell(h))
	h = strings.NewReplacer("_", " ", "-", " ").Replace(h)
	return strings.Join(strings.Fields(h), " ")
}

// Match kinds in precedence order. When two headers in one row resolve to
// the same field, the lower kind wins.
const (
	matchName = iota
	matchLabel
	matchAlias
	matchOverride
)

type headerMatch struct {
	field string
	kind  int
}

// headerResolver maps normalized external headers to schema fields for one
// entity.
type headerResolver map[string]headerMatch

// newHeaderResolver indexes field names, labels and aliases. An override
// replaces whatever the header matched before.
func newHeaderResolver(def EntityDefinition, overrides map[string]string) headerResolver {
	r := make(headerResolver)
	add := func(header, field string, kind int) {
		key := normalizeHeader(header)
		if prev, ok := r[key]; ok && prev.kind <= kind {
			return
		}
		r[key] = headerMatch{field: field, kind: kind}
	}
	for _, spec := range def.FieldSpecs {
		if spec.Derived {
			continue
		}
		add(spec.Name, spec.Name, matchName)
		add(spec.DisplayLabel(), spec.Name, matchLabel)
		for _, alias := range spec.Aliases {
			add(alias, spec.Name, matchAlias)
		}
	}
	for header, field := range overrides {
		r[normalizeHeader(header)] = headerMatch{field: field, kind: matchOverride}
	}
	return r
}

// mapRow translates one row's external headers to schema fields.
// Unmapped headers are dropped. When several headers map to the same field
// a non-blank value beats a blank one, then the match kind decides, then
// the normalized header text, so the result never depends on map order.
func (r headerResolver) mapRow(row ImportRow) map[string]string {
	best := make(map[string]headerCandidate, len(row))
	for header, value := range row {
		key := normalizeHeader(header)
		m, ok := r[key]
		if !ok {
			continue
		}
		c := headerCandidate{header: key, raw: header, value: value, kind: m.kind}
		if prev, seen := best[m.field]; seen && !c.beats(prev) {
			continue
		}
		best[m.field] = c
	}

	out := make(map[string]string, len(best))
	for field, c := range best {
		out[field] = c.value
	}
	return out
}

type headerCandidate struct {
	header string // normalized
	raw    string
	value  string
	kind   int
}

func (c headerCandidate) beats(other headerCandidate) bool {
	cBlank, oBlank := strings.TrimSpace(c.value) == "", strings.TrimSpace(other.value) == ""
	if cBlank != oBlank {
		return oBlank
	}
	if c.kind != other.kind {
		return c.kind < other.kind
	}
	if c.header != other.header {
		return c.header < other.header
	}
	return c.raw < other.raw
}
