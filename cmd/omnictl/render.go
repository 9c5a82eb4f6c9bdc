package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"OmniSpectrum/internal/domain/models"
)

var rangeLabels = map[string]string{
	"weekly_range_pts":     "Weekly range",
	"monthly_range_pts":    "Monthly range",
	"short_term_envelope":  "Short-term envelope",
	"medium_term_envelope": "Medium-term envelope",
}

func render(w io.Writer, s *models.Snapshot) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	t := s.Tiles

	fmt.Fprintf(tw, "Close\t%.2f\n", s.Close)
	fmt.Fprintf(tw, "Last update\t%s\n", s.LastUpdate)
	if at, ok := s.GeneratedAt(); ok {
		fmt.Fprintf(tw, "Generated\t%s\n", at.UTC().Format("2006-01-02 15:04 MST"))
	}
	if s.ModelVersion != "" {
		fmt.Fprintf(tw, "Model\t%s %s\n", s.ModelVersion, s.ModelDate)
	}

	fmt.Fprintf(tw, "Tomorrow\t±%.1f pts\t%.2f - %.2f\n", t.TomorrowExpectedMovePts,
		models.ImpliedPrice(s.Close, -t.TomorrowExpectedMovePts), models.ImpliedPrice(s.Close, t.TomorrowExpectedMovePts))
	fmt.Fprintf(tw, "2-day\t±%.1f pts\n", t.TwoDayExpectedMovePts)
	fmt.Fprintf(tw, "3-day\t±%.1f pts\n", t.ThreeDayExpectedMovePts)

	ranges := s.Ranges()
	keys := make([]string, 0, len(ranges))
	for k := range ranges {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		r := ranges[k]
		lo, hi := r.Absolute(s.Close)
		fmt.Fprintf(tw, "%s\t[%+.1f, %+.1f]\t%.2f - %.2f\n", rangeLabels[k], r.Low(), r.High(), lo, hi)
	}

	fmt.Fprintf(tw, "Directional tilt\t%s\n", tiltText(t.DirectionalTilt))
	if t.VolatilityExpansionProb != nil {
		fmt.Fprintf(tw, "Vol expansion\t%.0f%%\n", *t.VolatilityExpansionProb*100)
	}
	if t.OptionSellersStatus != "" || t.OptionBuyersStatus != "" {
		fmt.Fprintf(tw, "Option radar\tsellers %s\tbuyers %s\n", orDash(string(t.OptionSellersStatus)), orDash(string(t.OptionBuyersStatus)))
	}
	fmt.Fprintf(tw, "Pattern match\t%.1f\n", t.PatternMatchIndex)
	fmt.Fprintf(tw, "Summary\t%s\n", t.CompositeSummary.String())
	return tw.Flush()
}

func tiltText(t models.DirectionalTilt) string {
	p, ok := t.Probabilities()
	if !ok {
		return string(t.Dominant())
	}
	return fmt.Sprintf("%s (bear %.0f%% / neutral %.0f%% / bull %.0f%%)",
		t.Dominant(), p.Bear*100, p.Neutral*100, p.Bull*100)
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
