package core

import "math"

// ComputeMetrics derives the entity's computed fields from fields.
// Pure: missing or unparseable inputs count as zero and the result never
// fails. Entities without a MetricsFunc have no derived fields.
func ComputeMetrics(def EntityDefinition, fields Fields) Fields {
	if def.Metrics == nil {
		return Fields{}
	}
	out := def.Metrics(fields)
	if out == nil {
		return Fields{}
	}
	return out
}

// withMetrics returns fields with freshly computed derived values applied.
// Stale derived values are always overwritten.
func withMetrics(def EntityDefinition, fields Fields) Fields {
	out := fields.Clone()
	for _, spec := range def.FieldSpecs {
		if spec.Derived {
			delete(out, spec.Name)
		}
	}
	for k, v := range ComputeMetrics(def, fields) {
		out[k] = v
	}
	return out
}

// NumberOrZero reads a numeric field, treating absence as zero.
func NumberOrZero(fields Fields, name string) float64 {
	v, _ := fields.Number(name)
	return v
}

// RoundCents rounds to two decimal places.
func RoundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
