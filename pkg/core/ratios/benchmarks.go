package ratios

import (
	"fmt"
	"os"
	"sort"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v2"

	"snf_underwriting/pkg/core/cache"
	"snf_underwriting/pkg/models"
)

// Benchmark directions.
const (
	LowerIsBetter  = "lower_is_better"
	HigherIsBetter = "higher_is_better"
)

// Benchmark is one industry target. Values at or better than Target are good, values past
// Critical are critical, anything between is a warning.
type Benchmark struct {
	Metric    string  `yaml:"metric" json:"metric"`
	Label     string  `yaml:"label" json:"label"`
	Target    float64 `yaml:"target" json:"target"`
	Critical  float64 `yaml:"critical" json:"critical"`
	Direction string  `yaml:"direction" json:"direction"`
	// OfRevenue marks ratios expressed as a percentage of revenue; only those feed savings.
	OfRevenue bool `yaml:"of_revenue" json:"of_revenue"`
}

// DefaultBenchmarks are skilled-nursing operating targets.
var DefaultBenchmarks = []Benchmark{
	{Metric: "labor_pct", Label: "Labor cost", Target: 55, Critical: 62, Direction: LowerIsBetter, OfRevenue: true},
	{Metric: "agency_pct", Label: "Agency labor share", Target: 2, Critical: 5, Direction: LowerIsBetter},
	{Metric: "food_pct", Label: "Food cost", Target: 5, Critical: 7, Direction: LowerIsBetter, OfRevenue: true},
	{Metric: "management_fee_pct", Label: "Management fee", Target: 4, Critical: 6, Direction: LowerIsBetter, OfRevenue: true},
	{Metric: "bad_debt_pct", Label: "Bad debt", Target: 1, Critical: 2, Direction: LowerIsBetter, OfRevenue: true},
	{Metric: "utilities_pct", Label: "Utilities", Target: 2.5, Critical: 3.5, Direction: LowerIsBetter, OfRevenue: true},
	{Metric: "insurance_pct", Label: "Insurance", Target: 2, Critical: 3, Direction: LowerIsBetter, OfRevenue: true},
	{Metric: "ebitda_margin", Label: "EBITDA margin", Target: 15, Critical: 8, Direction: HigherIsBetter},
	{Metric: "ebitdar_margin", Label: "EBITDAR margin", Target: 22, Critical: 15, Direction: HigherIsBetter},
}

type benchmarkFile struct {
	Benchmarks []Benchmark `yaml:"benchmarks"`
}

// BenchmarkSource resolves benchmark definitions, memoizing file reads in an injected cache.
type BenchmarkSource struct {
	path  string
	cache *cache.TTL[string, []Benchmark]
}

// NewBenchmarkSource reads definitions from path, or uses DefaultBenchmarks when path is empty.
// A nil cache disables memoization.
func NewBenchmarkSource(path string, c *cache.TTL[string, []Benchmark]) *BenchmarkSource {
	return &BenchmarkSource{path: path, cache: c}
}

// Definitions returns the active benchmark table.
func (s *BenchmarkSource) Definitions() ([]Benchmark, error) {
	if s == nil || s.path == "" {
		return DefaultBenchmarks, nil
	}
	if s.cache == nil {
		return LoadBenchmarks(s.path)
	}
	return s.cache.GetOrLoad(s.path, func() ([]Benchmark, error) {
		return LoadBenchmarks(s.path)
	})
}

// LoadBenchmarks parses a YAML benchmark file.
func LoadBenchmarks(path string) ([]Benchmark, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read benchmarks %s: %w", path, err)
	}
	var f benchmarkFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse benchmarks %s: %w", path, err)
	}
	for _, b := range f.Benchmarks {
		if b.Metric == "" {
			return nil, fmt.Errorf("benchmark in %s has no metric", path)
		}
		if b.Direction != LowerIsBetter && b.Direction != HigherIsBetter {
			return nil, fmt.Errorf("benchmark %s: unknown direction %q", b.Metric, b.Direction)
		}
	}
	return f.Benchmarks, nil
}

// Status grades value against b.
func (b Benchmark) Status(value float64) string {
	if b.Direction == HigherIsBetter {
		switch {
		case value >= b.Target:
			return models.StatusGood
		case value >= b.Critical:
			return models.StatusWarning
		}
		return models.StatusCritical
	}
	switch {
	case value <= b.Target:
		return models.StatusGood
	case value <= b.Critical:
		return models.StatusWarning
	}
	return models.StatusCritical
}

// Flags grades every ratio that has a value. Ratios without a value produce no flag.
func Flags(r *Ratios, defs []Benchmark) []models.BenchmarkFlag {
	if r == nil {
		return nil
	}
	out := make([]models.BenchmarkFlag, 0, len(defs))
	for _, b := range defs {
		v := r.Value(b.Metric)
		if v == nil {
			continue
		}
		status := b.Status(*v)
		out = append(out, models.BenchmarkFlag{
			Metric:    b.Metric,
			Value:     *v,
			Target:    b.Target,
			Status:    status,
			Direction: b.Direction,
			Message:   fmt.Sprintf("%s %.1f%% vs target %.1f%% (%s)", b.Label, *v, b.Target, status),
		})
	}
	return out
}

// PotentialSavings is the revenue-weighted excess of every over-target cost ratio:
// sum((actual - target)% * revenue). Rounded to whole dollars.
func PotentialSavings(r *Ratios, defs []Benchmark, revenue *float64) float64 {
	if r == nil || !usable(revenue) {
		return 0
	}
	total := decimal.Zero
	for _, b := range defs {
		if !b.OfRevenue || b.Direction != LowerIsBetter {
			continue
		}
		v := r.Value(b.Metric)
		if v == nil || *v <= b.Target {
			continue
		}
		excess := decimal.NewFromFloat(*v - b.Target).Div(decimal.NewFromInt(100))
		total = total.Add(excess.Mul(decimal.NewFromFloat(*revenue)))
	}
	return total.Round(0).InexactFloat64()
}

// Critical returns the flags with critical status, worst first by distance from target.
func Critical(flags []models.BenchmarkFlag) []models.BenchmarkFlag {
	var out []models.BenchmarkFlag
	for _, f := range flags {
		if f.Status == models.StatusCritical {
			out = append(out, f)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return gap(out[i]) > gap(out[j])
	})
	return out
}

func gap(f models.BenchmarkFlag) float64 {
	if f.Direction == HigherIsBetter {
		return f.Target - f.Value
	}
	return f.Value - f.Target
}
