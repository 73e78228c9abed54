package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"oshimaint/internal/journal"
	"oshimaint/internal/maintenance"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
)

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func paint(w io.Writer, color, s string) string {
	if !shouldColorize(w) {
		return s
	}
	return color + s + ansiReset
}

// runResult is the JSON envelope of a journaled command.
type runResult struct {
	Run    *journal.Run `json:"run,omitempty"`
	Report any          `json:"report"`
	Error  string       `json:"error,omitempty"`
}

// finishRun prints the outcome of a journaled command and passes err through.
// render prints the human-readable report body.
func (c *commandContext) finishRun(cmd *cobra.Command, run *journal.Run, report maintenance.Summary, err error, render func(io.Writer)) error {
	if c.jsonOutput() {
		result := runResult{Run: run, Report: report}
		if err != nil {
			result.Error = err.Error()
		}
		if jsonErr := writeJSON(cmd, result); jsonErr != nil {
			return jsonErr
		}
		return err
	}

	out := cmd.OutOrStdout()
	if render != nil && report != nil {
		render(out)
	}
	if report != nil {
		fmt.Fprintln(out, formatCounts(report.Counts()))
	}
	if run != nil {
		icon := "✅"
		if run.Status != journal.RunSucceeded {
			icon = "❌"
		}
		fmt.Fprintf(out, "%s run %s: %s\n", icon, shortRunID(run.ID), run.Status)
		if run.DryRun && err == nil {
			fmt.Fprintln(out, paint(out, ansiYellow, "🔍 Dry run: nothing was changed."))
		}
	}
	return err
}

func formatCounts(counts map[string]int) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+strconv.Itoa(counts[k]))
	}
	return strings.Join(parts, " ")
}

func shortRunID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit-1]) + "…"
}

func printFailures(w io.Writer, failures []maintenance.Failure) {
	for _, f := range failures {
		fmt.Fprintln(w, paint(w, ansiRed, fmt.Sprintf("failed %s/%s: %s", f.Table, f.ID, f.Error)))
	}
}
