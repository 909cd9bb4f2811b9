package output

import (
	"io"
	"strings"
	"text/tabwriter"
	"unicode/utf8"

	"github.com/hupe1980/vecgroup/model"
)

// AnalysisFields lists the item fields checked for emptiness, in report
// column order.
var AnalysisFields = []string{"title", "description", "alternate_names", "variable_name", "value_format"}

// CommunityAnalysis describes the text content of one community.
type CommunityAnalysis struct {
	CommunityID string
	Members     int

	// AvgTextLen is the mean character count of the members' semantic text.
	AvgTextLen float64

	// EmptyPct holds the percentage of members with an empty field, parallel
	// to AnalysisFields.
	EmptyPct []float64
}

func fieldValue(it model.Item, field string) string {
	switch field {
	case "title":
		return it.Title
	case "description":
		return it.Description
	case "alternate_names":
		return strings.Join(it.AlternateNames, " ")
	case "variable_name":
		return it.VariableName
	case "value_format":
		return it.ValueFormat
	default:
		return ""
	}
}

// Analyze computes the per-community text statistics. Members without a
// matching item are ignored; communities with no known member are skipped.
func Analyze(communities []model.Community, items []model.Item) []CommunityAnalysis {
	byID := make(map[int64]*model.Item, len(items))
	for i := range items {
		byID[items[i].ID] = &items[i]
	}

	var out []CommunityAnalysis

	for _, c := range communities {
		a := CommunityAnalysis{
			CommunityID: c.CommunityID,
			EmptyPct:    make([]float64, len(AnalysisFields)),
		}

		var textLen int

		for _, id := range c.MemberIDs {
			it, ok := byID[id]
			if !ok {
				continue
			}

			a.Members++
			textLen += utf8.RuneCountInString(it.SemanticText())

			for f, field := range AnalysisFields {
				if strings.TrimSpace(fieldValue(*it, field)) == "" {
					a.EmptyPct[f]++
				}
			}
		}

		if a.Members == 0 {
			continue
		}

		a.AvgTextLen = float64(textLen) / float64(a.Members)
		for f := range a.EmptyPct {
			a.EmptyPct[f] = a.EmptyPct[f] * 100 / float64(a.Members)
		}

		out = append(out, a)
	}

	return out
}

// WriteAnalysis writes the analysis report as an aligned table with one row
// per community.
func WriteAnalysis(w io.Writer, rows []CommunityAnalysis) error {
	ew := &errWriter{w: w}

	ew.printf("--- Advanced Community Analysis ---\n\n")

	if len(rows) == 0 {
		ew.printf("No data available.\n")
		return ew.err
	}

	lens := make([]float64, len(rows))
	for i, r := range rows {
		lens[i] = r.AvgTextLen
	}

	lo, hi, mean := floatStats(lens)
	ew.printf("Average Text Length per Community:\n  - Min: %.2f\n  - Max: %.2f\n  - Avg: %.2f\n\n", lo, hi, mean)

	if ew.err != nil {
		return ew.err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	tew := &errWriter{w: tw}

	tew.printf("community_id\tmembers\tavg_char_len")
	for _, field := range AnalysisFields {
		tew.printf("\t%s_empty_pct", field)
	}
	tew.printf("\n")

	for _, r := range rows {
		tew.printf("%s\t%d\t%.2f", r.CommunityID, r.Members, r.AvgTextLen)
		for _, pct := range r.EmptyPct {
			tew.printf("\t%.0f", pct)
		}
		tew.printf("\n")
	}

	if tew.err != nil {
		return tew.err
	}

	return tw.Flush()
}

func floatStats(values []float64) (lo, hi, mean float64) {
	lo, hi = values[0], values[0]

	var total float64
	for _, v := range values {
		lo = min(lo, v)
		hi = max(hi, v)
		total += v
	}

	return lo, hi, total / float64(len(values))
}
