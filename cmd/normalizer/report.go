package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"normalizer/internal/orchestrator"
	"normalizer/internal/progress"
)

var titleCaser = cases.Title(language.English)

func gainSource(o orchestrator.Outcome) string {
	switch {
	case o.Override:
		return "override"
	case o.CacheHit:
		return "cache"
	case o.GainKnown:
		return "analysis"
	default:
		return "-"
	}
}

func formatGain(o orchestrator.Outcome) string {
	if !o.GainKnown {
		return "?"
	}
	return fmt.Sprintf("%+.1f", o.Gain)
}

func outcomeStatus(o orchestrator.Outcome) string {
	switch {
	case o.Err != nil:
		return "failed"
	case o.DryRun:
		return "dry run"
	default:
		return "ok"
	}
}

func renderTransformReport(report orchestrator.Report) string {
	rows := make([][]string, 0, len(report.Outcomes))
	for _, o := range report.Outcomes {
		rows = append(rows, []string{
			filepath.Base(o.Job.Input),
			strings.ToUpper(o.Job.Format),
			formatGain(o),
			titleCaser.String(gainSource(o)),
			titleCaser.String(outcomeStatus(o)),
			o.Elapsed.Round(10 * time.Millisecond).String(),
		})
	}
	return renderTable(
		[]string{"File", "Format", "Gain (dB)", "Source", "Result", "Elapsed"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft, alignRight},
	)
}

func renderAnalysisReport(report orchestrator.Report) string {
	rows := make([][]string, 0, len(report.Outcomes))
	for _, o := range report.Outcomes {
		rows = append(rows, []string{
			filepath.Base(o.Job.Input),
			measurement(o.Measurements, progress.MetricIntegratedLUFS),
			measurement(o.Measurements, progress.MetricPeakDBFS),
			formatGain(o),
			titleCaser.String(gainSource(o)),
		})
	}
	return renderTable(
		[]string{"File", "Integrated (LUFS)", "Peak (dBFS)", "Gain (dB)", "Source"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignLeft},
	)
}

// measurement formats a reading; cache hits carry no measurements.
func measurement(m progress.Measurements, name string) string {
	v, ok := m[name]
	if !ok {
		return "-"
	}
	return fmt.Sprintf("%.1f", progress.RoundTenth(v))
}

func summaryLine(report orchestrator.Report) string {
	return fmt.Sprintf("Batch %s: %d transform(s), %d analysis run(s), %d cache hit(s) in %s",
		report.BatchID, report.Transforms, report.Analyses, report.CacheHits,
		report.Elapsed.Round(10*time.Millisecond))
}
