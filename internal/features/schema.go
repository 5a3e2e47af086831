// Package features turns a flight trajectory into a fixed-order numeric
// feature vector for the anomaly detection model.
package features

// Feature families group related dimensions for anomaly classification
const (
	FamilyAltitude = "altitude"
	FamilySpeed    = "speed"
	FamilyRoute    = "route"
	FamilyTemporal = "temporal"
)

// Feature pairs a vector dimension name with its family
type Feature struct {
	Name   string
	Family string
}

// schema is the fixed feature order. Models are fitted against this exact
// order; changing it invalidates every persisted artifact (schema drift).
var schema = []Feature{
	{"altitude_mean", FamilyAltitude},
	{"altitude_std", FamilyAltitude},
	{"altitude_max_local_dev", FamilyAltitude},
	{"speed_mean", FamilySpeed},
	{"speed_std", FamilySpeed},
	{"speed_max_delta", FamilySpeed},
	{"route_directness", FamilyRoute},
	{"bearing_variance", FamilyRoute},
	{"duration_seconds", FamilyTemporal},
	{"gap_mean_seconds", FamilyTemporal},
	{"gap_max_seconds", FamilyTemporal},
}

// Names returns the ordered feature names of the current schema
func Names() []string {
	names := make([]string, len(schema))
	for i, f := range schema {
		names[i] = f.Name
	}
	return names
}

// Families returns the family names in classification priority order
func Families() []string {
	return []string{FamilyAltitude, FamilySpeed, FamilyRoute, FamilyTemporal}
}

// FamilyOf returns the family of a feature name, or "" if unknown
func FamilyOf(name string) string {
	for _, f := range schema {
		if f.Name == name {
			return f.Family
		}
	}
	return ""
}

// Dim returns the number of dimensions in the feature vector
func Dim() int {
	return len(schema)
}
