// Package metadata defines the name/value pairs that annotate results.
package metadata

// NameValue is a BigQuery-compatible type for the Result "name"/"value"
// metadata pairs.
type NameValue struct {
	Name  string
	Value string
}
