package analysis

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/casbin/govaluate"
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/user/mpki_plotter_go/internal/parser"
)

const (
	DefaultMetricName = "MPKI"
	// misses per thousand loads; column names are bracketed because they contain '-'
	DefaultMetricExpression = "([L1-dcache-load-misses] / [L1-dcache-loads]) * 1000"
)

// Metric is a derived per-row value computed from the measurement columns.
// Variables in the expression are column names in square brackets.
type Metric struct {
	Name       string
	Expression string
	Variables  []string
	evaluable  *govaluate.EvaluableExpression
}

// NewMetric parses expression once so it can be evaluated for every row.
// Only the schema columns may be referenced.
func NewMetric(name, expression string) (*Metric, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("metric name is empty")
	}
	evaluable, err := govaluate.NewEvaluableExpression(expression)
	if err != nil {
		return nil, fmt.Errorf("failed to parse metric expression %q: %w", expression, err)
	}

	known := mapset.NewThreadUnsafeSet(parser.RequiredColumns...)
	used := mapset.NewThreadUnsafeSet(evaluable.Vars()...)
	if unknown := used.Difference(known); unknown.Cardinality() > 0 {
		names := unknown.ToSlice()
		sort.Strings(names)
		return nil, fmt.Errorf("metric expression %q references unknown column(s): %s", expression, strings.Join(names, ", "))
	}
	vars := used.ToSlice()
	sort.Strings(vars)

	return &Metric{
		Name:       name,
		Expression: expression,
		Variables:  vars,
		evaluable:  evaluable,
	}, nil
}

// DefaultMetric returns the MPKI metric.
func DefaultMetric() *Metric {
	m, err := NewMetric(DefaultMetricName, DefaultMetricExpression)
	if err != nil {
		panic(err) // constant expression
	}
	return m
}

// Evaluate computes the metric for a single row. Division by zero yields
// +Inf or NaN rather than an error; callers decide what to do with it.
func (m *Metric) Evaluate(row parser.MeasurementRow) (value float64, err error) {
	// the evaluator panics on some type mismatches
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("evaluating %s (%s) panicked: %v", m.Name, m.Expression, r)
		}
	}()

	variables := map[string]any{
		parser.ColMatrixSize: float64(row.MatrixSize),
		parser.ColLoads:      float64(row.Loads),
		parser.ColLoadMisses: float64(row.LoadMisses),
	}
	result, err := m.evaluable.Evaluate(variables)
	if err != nil {
		return math.NaN(), fmt.Errorf("%v : %s : %s", err, m.Name, m.Expression)
	}
	switch v := result.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	default:
		return math.NaN(), fmt.Errorf("metric %s evaluated to non-numeric %T", m.Name, result)
	}
}

// DependsOnLoads reports whether the expression divides by, or otherwise
// reads, the loads column. The zero-loads policy only applies to such metrics.
func (m *Metric) DependsOnLoads() bool {
	for _, v := range m.Variables {
		if v == parser.ColLoads {
			return true
		}
	}
	return false
}
