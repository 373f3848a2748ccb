package schema

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/spektr-org/ecomdash/orders"
)

// ============================================================================
// AUTO-DISCOVERY: Heuristic column classification
// ============================================================================
// Classification pipeline per column:
//   1. Sample values → detect type (numeric, timestamp, bool, string)
//   2. Type + cardinality → classify role (dimension, measure, skip)
//   3. Name hints → measure unit (currency, days, hours)
//   4. Synthetic record_count measure
//   5. Parent detection between dimensions (city → state)
// ============================================================================

// ErrNoData is returned for a CSV with a header but no rows.
var ErrNoData = errors.New("CSV has no data rows")

// DiscoverOptions controls discovery behavior.
type DiscoverOptions struct {
	SampleSize     int      // max rows to inspect; 0 means DefaultSampleSize
	RecoverColumns []string // force-include columns that were auto-skipped
	Name           string
}

// DefaultSampleSize caps the rows Discover reads.
const DefaultSampleSize = 5000

// Discover reads up to SampleSize rows from r and classifies every column.
func Discover(r io.Reader, opts DiscoverOptions) (*Config, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("CSV is empty")
		}
		return nil, fmt.Errorf("failed to read CSV headers: %w", err)
	}
	if len(headers) == 0 {
		return nil, fmt.Errorf("CSV has no columns")
	}

	limit := opts.SampleSize
	if limit <= 0 {
		limit = DefaultSampleSize
	}

	var rows [][]string
	for len(rows) < limit {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				continue // skip malformed rows
			}
			return nil, fmt.Errorf("read CSV: %w", err)
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, ErrNoData
	}

	columns := make([]columnAnalysis, len(headers))
	keys := make([]string, len(headers))
	for i, header := range headers {
		columns[i] = analyzeColumn(header, i, rows)
		keys[i] = columns[i].key
	}

	recoverSet := make(map[string]bool)
	for _, col := range opts.RecoverColumns {
		recoverSet[toSnakeCase(col)] = true
	}

	cfg := &Config{
		Name:           opts.Name,
		Rows:           len(rows),
		MissingColumns: missingRequired(keys),
		DiscoveredFrom: "CSV",
		DiscoveredAt:   time.Now().UTC().Format(time.RFC3339),
	}
	if cfg.Name == "" {
		cfg.Name = "orders"
	}

	for _, col := range columns {
		switch col.role {
		case roleDimension:
			cfg.Dimensions = append(cfg.Dimensions, col.toDimension())
		case roleMeasure:
			cfg.Measures = append(cfg.Measures, col.toMeasure())
		case roleSkipped:
			if recoverSet[col.key] && col.recoverable {
				cfg.Dimensions = append(cfg.Dimensions, col.toDimension())
				continue
			}
			cfg.SkippedColumns = append(cfg.SkippedColumns, SkippedColumn{
				Column:      col.header,
				Reason:      col.skipReason,
				Recoverable: col.recoverable,
			})
		}
	}

	cfg.Measures = append(cfg.Measures, MeasureMeta{
		Key:         orders.MeasureRecordCount,
		DisplayName: "Record Count",
		Unit:        "units",
		IsSynthetic: true,
		Min:         1,
		Max:         1,
		Mean:        1,
	})

	detectParents(cfg.Dimensions, rows, columns)
	return cfg, nil
}

// ============================================================================
// COLUMN ANALYSIS
// ============================================================================

type columnRole int

const (
	roleDimension columnRole = iota
	roleMeasure
	roleSkipped
)

type columnType int

const (
	typeString columnType = iota
	typeNumeric
	typeTimestamp
	typeBool
)

type columnAnalysis struct {
	header      string
	key         string
	index       int
	colType     columnType
	role        columnRole
	skipReason  string
	recoverable bool

	uniqueCount int
	totalCount  int
	nullCount   int
	sampleVals  []string
	numbers     []float64
	hasDecimals bool

	isTemporal     bool
	temporalFormat string
}

func analyzeColumn(header string, index int, rows [][]string) columnAnalysis {
	col := columnAnalysis{
		header:     header,
		key:        toSnakeCase(header),
		index:      index,
		totalCount: len(rows),
	}

	values := make([]string, 0, len(rows))
	uniqueSet := make(map[string]bool)
	for _, row := range rows {
		if index >= len(row) {
			col.nullCount++
			continue
		}
		val := strings.TrimSpace(row[index])
		if isNull(val) {
			col.nullCount++
			continue
		}
		values = append(values, val)
		uniqueSet[val] = true
	}
	col.uniqueCount = len(uniqueSet)

	if len(values) == 0 {
		col.role = roleSkipped
		col.skipReason = "All values are empty/null"
		return col
	}

	col.sampleVals = collectSamples(uniqueSet, 10)
	col.colType = detectType(values)

	switch col.colType {
	case typeNumeric:
		col.numbers = make([]float64, 0, len(values))
		for _, v := range values {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				continue
			}
			col.numbers = append(col.numbers, f)
			if strings.Contains(v, ".") {
				col.hasDecimals = true
			}
		}
	case typeTimestamp:
		col.isTemporal = true
		col.temporalFormat = "timestamp"
	case typeString:
		col.isTemporal, col.temporalFormat = detectTemporalPattern(col.sampleVals)
	}

	col.classifyRole()
	return col
}

// classifyRole determines dimension vs measure vs skip.
func (col *columnAnalysis) classifyRole() {
	total := col.totalCount
	switch col.colType {
	case typeNumeric:
		if col.uniqueCount == total && total > 10 && !col.hasDecimals {
			col.role = roleSkipped
			col.skipReason = "Unique per row, likely an ID column"
			return
		}
		if col.hasDecimals {
			col.role = roleMeasure
			return
		}
		// few codes at a low ratio (e.g. review score 1-5) group better than they sum
		ratio := float64(col.uniqueCount) / float64(total)
		if col.uniqueCount < 20 && ratio < 0.3 && unitFor(col.key) == "" {
			col.role = roleDimension
			return
		}
		col.role = roleMeasure

	case typeTimestamp, typeBool:
		col.role = roleDimension

	case typeString:
		if col.uniqueCount == total && total > 10 {
			col.role = roleSkipped
			col.skipReason = "Unique per row, likely an identifier"
			return
		}
		if col.uniqueCount > total/2 && col.uniqueCount > 50 {
			col.role = roleSkipped
			col.skipReason = fmt.Sprintf("High cardinality (%d unique values), not useful for grouping", col.uniqueCount)
			col.recoverable = true
			return
		}
		col.role = roleDimension
	}
}

// ============================================================================
// TYPE DETECTION
// ============================================================================

// detectType requires 80%+ of non-null values to match for numeric,
// timestamp or bool.
func detectType(values []string) columnType {
	numCount, tsCount, boolCount := 0, 0, 0
	for _, v := range values {
		if isBool(v) {
			boolCount++
		}
		if isNumeric(v) {
			numCount++
		} else if _, ok := orders.ParseTimestamp(v); ok {
			tsCount++
		}
	}

	threshold := int(math.Ceil(float64(len(values)) * 0.8))
	switch {
	case boolCount >= threshold:
		return typeBool
	case tsCount >= threshold:
		return typeTimestamp
	case numCount >= threshold:
		return typeNumeric
	}
	return typeString
}

func isNull(s string) bool {
	switch s {
	case "", "null", "NULL", "N/A", "n/a", "NaN", "NaT", "<nil>":
		return true
	}
	return false
}

func isNumeric(s string) bool {
	_, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return err == nil
}

func isBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "false", "yes", "no":
		return true
	}
	return false
}

var temporalPatterns = []struct {
	re     *regexp.Regexp
	format string
}{
	{regexp.MustCompile(`^\d{4}-\d{2}$`), "yyyy-MM"},         // 2018-01
	{regexp.MustCompile(`^[A-Z][a-z]{2}-\d{4}$`), "MMM-yyyy"}, // Jan-2018
	{regexp.MustCompile(`^Q[1-4][- ]\d{4}$`), "QN-yyyy"},      // Q1-2018
}

// detectTemporalPattern checks string values against month/quarter shapes.
func detectTemporalPattern(samples []string) (bool, string) {
	if len(samples) == 0 {
		return false, ""
	}
	for _, pattern := range temporalPatterns {
		matches := 0
		for _, s := range samples {
			if pattern.re.MatchString(s) {
				matches++
			}
		}
		if float64(matches)/float64(len(samples)) >= 0.8 {
			return true, pattern.format
		}
	}
	return false, ""
}

// unitFor infers a measure unit from the column name.
func unitFor(key string) string {
	switch {
	case strings.Contains(key, "value"), strings.Contains(key, "price"),
		strings.Contains(key, "freight"), strings.Contains(key, "cost"),
		strings.Contains(key, "amount"):
		return "currency"
	case strings.Contains(key, "days"):
		return "days"
	case strings.Contains(key, "hour"):
		return "hours"
	case strings.Contains(key, "qty"), strings.Contains(key, "quantity"),
		strings.Contains(key, "installments"):
		return "units"
	}
	return ""
}

// ============================================================================
// PARENT DETECTION
// ============================================================================

// detectParents marks A as parent of B when every B value maps to exactly
// one A value and A has fewer distinct values. Among several valid parents
// the one with the most distinct values wins.
func detectParents(dimensions []DimensionMeta, rows [][]string, columns []columnAnalysis) {
	index := make(map[string]int)
	for _, col := range columns {
		if col.role == roleDimension && !col.isTemporal {
			index[col.key] = col.index
		}
	}

	for i := range dimensions {
		child := dimensions[i]
		childIdx, ok := index[child.Key]
		if !ok {
			continue
		}

		best, bestCard := "", 0
		for j := range dimensions {
			parent := dimensions[j]
			parentIdx, ok := index[parent.Key]
			if i == j || !ok || parent.Cardinality >= child.Cardinality {
				continue
			}
			if functionalDependency(rows, childIdx, parentIdx) && parent.Cardinality > bestCard {
				best, bestCard = parent.Key, parent.Cardinality
			}
		}
		dimensions[i].Parent = best
	}
}

func functionalDependency(rows [][]string, childIdx, parentIdx int) bool {
	seen := make(map[string]string)
	for _, row := range rows {
		if childIdx >= len(row) || parentIdx >= len(row) {
			continue
		}
		c, p := strings.TrimSpace(row[childIdx]), strings.TrimSpace(row[parentIdx])
		if isNull(c) || isNull(p) {
			continue
		}
		if existing, ok := seen[c]; ok {
			if existing != p {
				return false
			}
			continue
		}
		seen[c] = p
	}
	return len(seen) > 1
}

// ============================================================================
// CONVERSION HELPERS
// ============================================================================

func (col *columnAnalysis) toDimension() DimensionMeta {
	hint := "high"
	switch {
	case col.uniqueCount <= 10:
		hint = "low"
	case col.uniqueCount <= 100:
		hint = "medium"
	}
	return DimensionMeta{
		Key:             col.key,
		DisplayName:     toDisplayName(col.header),
		SampleValues:    col.sampleVals,
		IsTemporal:      col.isTemporal,
		TemporalFormat:  col.temporalFormat,
		Cardinality:     col.uniqueCount,
		CardinalityHint: hint,
		NullCount:       col.nullCount,
	}
}

func (col *columnAnalysis) toMeasure() MeasureMeta {
	unit := unitFor(col.key)
	m := MeasureMeta{
		Key:         col.key,
		DisplayName: toDisplayName(col.header),
		Unit:        unit,
		IsCurrency:  unit == "currency",
		NullCount:   col.nullCount,
	}
	if len(col.numbers) > 0 {
		m.Min = floats.Min(col.numbers)
		m.Max = floats.Max(col.numbers)
		m.Mean, m.StdDev = stat.MeanStdDev(col.numbers, nil)
		if math.IsNaN(m.StdDev) {
			m.StdDev = 0
		}
	}
	return m
}

// ============================================================================
// STRING UTILITIES
// ============================================================================

// toSnakeCase converts "Column Name" or "columnName" → "column_name".
func toSnakeCase(s string) string {
	var b strings.Builder
	runes := []rune(strings.TrimSpace(s))
	for i, r := range runes {
		if unicode.IsUpper(r) && i > 0 && (unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1])) {
			b.WriteRune('_')
		}
		b.WriteRune(r)
	}
	out := strings.ToLower(b.String())
	out = strings.NewReplacer(" ", "_", "-", "_").Replace(out)
	for strings.Contains(out, "__") {
		out = strings.ReplaceAll(out, "__", "_")
	}
	return strings.Trim(out, "_")
}

// toDisplayName: "payment_value" → "Payment Value".
func toDisplayName(s string) string {
	if strings.Contains(s, " ") {
		return strings.TrimSpace(s)
	}
	words := strings.Fields(strings.NewReplacer("_", " ", "-", " ").Replace(s))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}

// collectSamples picks up to maxSamples values in sorted order.
func collectSamples(uniqueSet map[string]bool, maxSamples int) []string {
	samples := make([]string, 0, len(uniqueSet))
	for v := range uniqueSet {
		samples = append(samples, v)
	}
	sort.Strings(samples)
	if len(samples) > maxSamples {
		samples = samples[:maxSamples]
	}
	return samples
}
