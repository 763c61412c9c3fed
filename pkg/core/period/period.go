// Package period classifies source documents by statement period and recommends which
// documents combine into the best trailing-twelve-month window.
package period

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Statement period types.
const (
	TypeT12     = "T12"
	TypeYTD     = "YTD"
	TypeMonthly = "monthly"
	TypeUnknown = "unknown"
)

const monthLayout = "2006-01"

// scanLimit bounds how much of each document is searched for period markers.
const scanLimit = 6000

// Document is one decoded source document.
type Document struct {
	Name string
	Text string
}

// DocumentPeriod is the detected coverage of one document.
type DocumentPeriod struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	PeriodStart string `json:"period_start,omitempty"`
	PeriodEnd   string `json:"period_end,omitempty"`
	Months      int    `json:"months"`
}

// Covers reports whether month falls inside the document's period.
func (d DocumentPeriod) Covers(month string) bool {
	return d.PeriodStart != "" && d.PeriodStart <= month && month <= d.PeriodEnd
}

// Analysis is the period analyzer output.
type Analysis struct {
	Documents   []DocumentPeriod `json:"documents"`
	WindowStart string           `json:"window_start,omitempty"`
	WindowEnd   string           `json:"window_end,omitempty"`
	Recommended []string         `json:"recommended"`
	Uncovered   []string         `json:"uncovered_months,omitempty"`
	Guidance    string           `json:"guidance"`
}

var (
	t12Pattern     = regexp.MustCompile(`(?i)\b(t-?12|ttm|trailing\s+(twelve|12)|twelve\s+months?\s+ended|12\s+months?\s+ended|12[\s-]+months?)\b`)
	ytdPattern     = regexp.MustCompile(`(?i)\b(ytd|year[\s-]+to[\s-]+date)\b`)
	monthlyPattern = regexp.MustCompile(`(?i)\b(monthly|month\s+ended|for\s+the\s+month)\b`)

	monthNamePattern = regexp.MustCompile(`(?i)\b(january|february|march|april|may|june|july|august|september|october|november|december|jan|feb|mar|apr|jun|jul|aug|sept|sep|oct|nov|dec)\.?(?:\s+\d{1,2},?)?(?:[\s,]*(\d{4})|\s*[-'’](\d{2}))\b`)
	isoMonthPattern  = regexp.MustCompile(`\b(20\d{2})[-/](0[1-9]|1[0-2])\b`)
	usMonthPattern   = regexp.MustCompile(`\b(0?[1-9]|1[0-2])(?:/\d{1,2})?[/-](20\d{2})\b`)
)

var monthIndex = map[string]int{
	"jan": 1, "feb": 2, "mar": 3, "apr": 4, "may": 5, "jun": 6,
	"jul": 7, "aug": 8, "sep": 9, "oct": 10, "nov": 11, "dec": 12,
}

// Classify detects the period type and coverage of one document.
func Classify(doc Document) DocumentPeriod {
	text := doc.Text
	if len(text) > scanLimit {
		text = text[:scanLimit]
	}
	// Underscores are word characters to the regexp engine; file names use them as separators.
	haystack := strings.ReplaceAll(doc.Name+"\n"+text, "_", " ")

	dp := DocumentPeriod{Name: doc.Name, Type: TypeUnknown}
	switch {
	case t12Pattern.MatchString(haystack):
		dp.Type = TypeT12
	case ytdPattern.MatchString(haystack):
		dp.Type = TypeYTD
	case monthlyPattern.MatchString(haystack):
		dp.Type = TypeMonthly
	}

	months := findMonths(haystack)
	if len(months) == 0 {
		return dp
	}
	first, last := months[0], months[len(months)-1]
	dp.PeriodEnd = last

	switch dp.Type {
	case TypeT12:
		dp.PeriodStart = AddMonths(last, -11)
	case TypeYTD:
		dp.PeriodStart = last[:4] + "-01"
	case TypeMonthly:
		dp.PeriodStart = last
	default:
		dp.PeriodStart = first
		if len(months) >= 12 {
			dp.Type = TypeT12
		} else if len(months) == 1 {
			dp.Type = TypeMonthly
		}
	}
	dp.Months = MonthsBetween(dp.PeriodStart, dp.PeriodEnd)
	return dp
}

// findMonths returns the distinct YYYY-MM values mentioned in s, sorted ascending.
func findMonths(s string) []string {
	set := map[string]bool{}
	add := func(year, month int) {
		if year < 100 {
			year += 2000
		}
		if year < 2000 || year > 2099 || month < 1 || month > 12 {
			return
		}
		set[fmt.Sprintf("%04d-%02d", year, month)] = true
	}
	for _, m := range monthNamePattern.FindAllStringSubmatch(s, -1) {
		year := m[2]
		if year == "" {
			year = m[3]
		}
		y, _ := strconv.Atoi(year)
		add(y, monthIndex[strings.ToLower(m[1])[:3]])
	}
	for _, m := range isoMonthPattern.FindAllStringSubmatch(s, -1) {
		y, _ := strconv.Atoi(m[1])
		mo, _ := strconv.Atoi(m[2])
		add(y, mo)
	}
	for _, m := range usMonthPattern.FindAllStringSubmatch(s, -1) {
		mo, _ := strconv.Atoi(m[1])
		y, _ := strconv.Atoi(m[2])
		add(y, mo)
	}
	out := make([]string, 0, len(set))
	for m := range set {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// Analyze classifies every document and picks the documents that together cover the
// latest twelve-month window. Documents are taken newest period first, preferring T12 over
// YTD over monthly, and a document is kept only if it covers a month not yet covered.
func Analyze(docs []Document) *Analysis {
	a := &Analysis{Documents: make([]DocumentPeriod, 0, len(docs)), Recommended: []string{}}
	for _, d := range docs {
		a.Documents = append(a.Documents, Classify(d))
	}

	for _, d := range a.Documents {
		if d.PeriodEnd > a.WindowEnd {
			a.WindowEnd = d.PeriodEnd
		}
	}
	if a.WindowEnd == "" {
		a.Guidance = BuildGuidance(a)
		return a
	}
	a.WindowStart = AddMonths(a.WindowEnd, -11)

	candidates := make([]DocumentPeriod, 0, len(a.Documents))
	for _, d := range a.Documents {
		if d.PeriodStart != "" {
			candidates = append(candidates, d)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].PeriodEnd != candidates[j].PeriodEnd {
			return candidates[i].PeriodEnd > candidates[j].PeriodEnd
		}
		return typeRank(candidates[i].Type) < typeRank(candidates[j].Type)
	})

	window := Months(a.WindowStart, a.WindowEnd)
	covered := map[string]bool{}
	for _, d := range candidates {
		adds := false
		for _, m := range window {
			if !covered[m] && d.Covers(m) {
				covered[m] = true
				adds = true
			}
		}
		if adds {
			a.Recommended = append(a.Recommended, d.Name)
		}
	}
	for _, m := range window {
		if !covered[m] {
			a.Uncovered = append(a.Uncovered, m)
		}
	}
	a.Guidance = BuildGuidance(a)
	return a
}

func typeRank(t string) int {
	switch t {
	case TypeT12:
		return 0
	case TypeYTD:
		return 1
	case TypeMonthly:
		return 2
	}
	return 3
}

// BuildGuidance renders the analysis as instructions for the extraction step.
func BuildGuidance(a *Analysis) string {
	var b strings.Builder
	b.WriteString("PERIOD GUIDANCE:\n")
	if a.WindowEnd == "" {
		b.WriteString("No statement periods could be detected. Extract every month present and label each with its YYYY-MM month.\n")
		return b.String()
	}
	fmt.Fprintf(&b, "Target trailing-twelve-month window: %s through %s.\n", a.WindowStart, a.WindowEnd)
	b.WriteString("Detected documents:\n")
	for _, d := range a.Documents {
		if d.PeriodStart == "" {
			fmt.Fprintf(&b, "- %s: %s, period not detected\n", d.Name, d.Type)
			continue
		}
		fmt.Fprintf(&b, "- %s: %s covering %s to %s (%d months)\n", d.Name, d.Type, d.PeriodStart, d.PeriodEnd, d.Months)
	}
	if len(a.Recommended) > 0 {
		fmt.Fprintf(&b, "Use these documents to assemble the window, in priority order: %s.\n", strings.Join(a.Recommended, ", "))
	}
	if len(a.Uncovered) > 0 {
		fmt.Fprintf(&b, "No document covers %s; leave those months out rather than estimating.\n", strings.Join(a.Uncovered, ", "))
	}
	b.WriteString("Extract each month separately and attribute it to its source document. Where documents overlap, report the month from each document; duplicates are resolved downstream.\n")
	return b.String()
}

// AddMonths shifts a YYYY-MM month by n months. An unparseable month is returned unchanged.
func AddMonths(month string, n int) string {
	t, err := time.Parse(monthLayout, month)
	if err != nil {
		return month
	}
	return t.AddDate(0, n, 0).Format(monthLayout)
}

// MonthsBetween counts the months from start to end inclusive; 0 when either is invalid or
// end precedes start.
func MonthsBetween(start, end string) int {
	s, err1 := time.Parse(monthLayout, start)
	e, err2 := time.Parse(monthLayout, end)
	if err1 != nil || err2 != nil || e.Before(s) {
		return 0
	}
	return (e.Year()-s.Year())*12 + int(e.Month()-s.Month()) + 1
}

// Months lists every month from start to end inclusive.
func Months(start, end string) []string {
	n := MonthsBetween(start, end)
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, AddMonths(start, i))
	}
	return out
}
