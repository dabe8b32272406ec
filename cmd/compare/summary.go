package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"

	"gocompare/app"
	"gocompare/domain/analysis"
)

var (
	okColor    = color.New(color.FgGreen)
	failColor  = color.New(color.FgRed)
	sigColor   = color.New(color.FgYellow, color.Bold)
	labelColor = color.New(color.FgCyan)
)

func printSummary(w io.Writer, result *analysis.BatchResult) {
	sum := result.Summary
	labelColor.Fprintf(w, "Run %s (%s, %s)\n", result.RunID, result.Mode, result.Execution.Strategy)
	if result.Execution.Sampled {
		sigColor.Fprintf(w, "  sampled %d of %d subjects (seed %d)\n",
			result.Execution.SampledSubjects, result.Execution.Subjects, result.Execution.Seed)
	}

	for _, rec := range result.Records {
		name := taskLabel(rec.Task)
		if rec.Status == analysis.StatusFailed {
			failColor.Fprintf(w, "  ✗ %-36s %s: %s\n", name, rec.Error.Kind, rec.Error.Message)
			continue
		}
		line := fmt.Sprintf("  ✓ %-36s %-26s p=%.4g adj=%.4g", name, rec.Decision.Method, *rec.RawP, *rec.AdjustedP)
		if rec.AdjustedSignificant {
			sigColor.Fprintln(w, line+" *")
		} else {
			fmt.Fprintln(w, line)
		}
	}

	fmt.Fprintf(w, "\n%d task(s): ", sum.Total)
	okColor.Fprintf(w, "%d succeeded", sum.Succeeded)
	fmt.Fprint(w, ", ")
	if sum.Failed > 0 {
		failColor.Fprintf(w, "%d failed", sum.Failed)
	} else {
		fmt.Fprint(w, "0 failed")
	}
	fmt.Fprintf(w, "; %d significant raw, %d after %s (alpha %.3g)\n",
		sum.SignificantRaw, sum.SignificantAdjusted, result.Correction, result.Alpha)

	if len(sum.FailuresByKind) > 0 {
		kinds := make([]string, 0, len(sum.FailuresByKind))
		for k, n := range sum.FailuresByKind {
			kinds = append(kinds, fmt.Sprintf("%s=%d", k, n))
		}
		sort.Strings(kinds)
		failColor.Fprintf(w, "failures: %s\n", strings.Join(kinds, ", "))
	}
}

func printPlan(w io.Writer, report *app.PlanReport) {
	exec := report.Execution
	labelColor.Fprintf(w, "Mode %s: %s strategy\n", report.Mode, exec.Strategy)
	fmt.Fprintf(w, "  estimate %.0f (%d rows, %d subjects), %d worker(s), seed %d\n",
		exec.Estimate, exec.Rows, exec.Subjects, exec.Workers, exec.Seed)
	if exec.Sampled {
		sigColor.Fprintf(w, "  sampling %d subjects (fraction %.3f)\n", exec.SampledSubjects, exec.SampleFraction)
	}
	fmt.Fprintf(w, "%d task(s):\n", len(report.Tasks))
	for _, t := range report.Tasks {
		fmt.Fprintf(w, "  %s  %s\n", t.ID, taskLabel(t))
	}
}

func taskLabel(t analysis.Task) string {
	if t.Group == "" {
		return t.Label()
	}
	return t.Label() + " by " + t.Group
}
