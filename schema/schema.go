// Package schema describes the shape of an orders CSV.
package schema

import "github.com/spektr-org/ecomdash/orders"

// ============================================================================
// SCHEMA: What the dashboard can group by and aggregate
// ============================================================================
// Discovered from the raw CSV before loading. Dimensions are string columns
// used for grouping; measures are numeric columns used for aggregation.
// Columns that are neither (IDs, free text, empty) are listed as skipped.
// ============================================================================

// Config describes a discovered dataset.
type Config struct {
	Name       string          `json:"name"`
	Rows       int             `json:"rowsSampled"`
	Dimensions []DimensionMeta `json:"dimensions"`
	Measures   []MeasureMeta   `json:"measures"`

	// Required order columns the CSV lacks. Loading fails when non-empty.
	MissingColumns []string `json:"missingColumns,omitempty"`

	DiscoveredFrom string          `json:"discoveredFrom,omitempty"`
	DiscoveredAt   string          `json:"discoveredAt,omitempty"`
	SkippedColumns []SkippedColumn `json:"skippedColumns,omitempty"`
}

// DimensionMeta describes a string column used for grouping.
type DimensionMeta struct {
	Key             string   `json:"key"`
	DisplayName     string   `json:"displayName"`
	SampleValues    []string `json:"sampleValues"`
	Parent          string   `json:"parent,omitempty"` // e.g. customer_state for customer_city
	IsTemporal      bool     `json:"isTemporal,omitempty"`
	TemporalFormat  string   `json:"temporalFormat,omitempty"`
	Cardinality     int      `json:"cardinality"`
	CardinalityHint string   `json:"cardinalityHint,omitempty"` // "low", "medium", "high"
	NullCount       int      `json:"nullCount,omitempty"`
}

// MeasureMeta describes a numeric column used for aggregation.
type MeasureMeta struct {
	Key         string  `json:"key"`
	DisplayName string  `json:"displayName"`
	Unit        string  `json:"unit,omitempty"` // "currency", "days", "hours", "units"
	IsCurrency  bool    `json:"isCurrency,omitempty"`
	IsSynthetic bool    `json:"isSynthetic,omitempty"`
	Min         float64 `json:"min"`
	Max         float64 `json:"max"`
	Mean        float64 `json:"mean"`
	StdDev      float64 `json:"stdDev"`
	NullCount   int     `json:"nullCount,omitempty"`
}

// SkippedColumn records why a column was excluded.
type SkippedColumn struct {
	Column      string `json:"column"`
	Reason      string `json:"reason"`
	Recoverable bool   `json:"recoverable"` // can be forced in with DiscoverOptions.RecoverColumns
}

// DimensionKeys returns all dimension keys.
func (c Config) DimensionKeys() []string {
	keys := make([]string, len(c.Dimensions))
	for i, d := range c.Dimensions {
		keys[i] = d.Key
	}
	return keys
}

// MeasureKeys returns all measure keys.
func (c Config) MeasureKeys() []string {
	keys := make([]string, len(c.Measures))
	for i, m := range c.Measures {
		keys[i] = m.Key
	}
	return keys
}

// Loadable reports whether every required order column is present.
func (c Config) Loadable() bool { return len(c.MissingColumns) == 0 }

// missingRequired lists the required order columns absent from keys.
func missingRequired(keys []string) []string {
	have := make(map[string]bool, len(keys))
	for _, k := range keys {
		have[k] = true
	}
	var missing []string
	for _, col := range orders.RequiredColumns {
		if !have[col] {
			missing = append(missing, col)
		}
	}
	return missing
}
