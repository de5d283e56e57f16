package output

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"

	"github.com/abdul-hamid-achik/flowspec/packages/core/engine"
)

// formatValue formats a value for display, truncating or summarizing large values
func formatValue(v any, maxLen int) string {
	switch val := v.(type) {
	case []any:
		return fmt.Sprintf("[array with %d items]", len(val))
	case map[string]any:
		return fmt.Sprintf("{object with %d keys}", len(val))
	case map[string]string:
		return fmt.Sprintf("{map with %d entries}", len(val))
	}
	str := fmt.Sprintf("%v", v)
	if len(str) > maxLen {
		return str[:maxLen] + "..."
	}
	return str
}

type ConsoleFormatter struct {
	writer  io.Writer
	verbose bool
	noColor bool
}

type ConsoleOption func(*ConsoleFormatter)

func NewConsoleFormatter(opts ...ConsoleOption) *ConsoleFormatter {
	f := &ConsoleFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.noColor {
		color.NoColor = true
	}
	return f
}

func WithWriter(w io.Writer) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.writer = w
	}
}

func WithVerbose(v bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.verbose = v
	}
}

func WithNoColor(nc bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.noColor = nc
	}
}

func (f *ConsoleFormatter) FormatResult(file string, result *engine.TestCaseResult) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()

	title := result.Name
	if file != "" {
		title = fmt.Sprintf("%s (%s)", result.Name, file)
	}
	fmt.Fprintf(f.writer, "\n%s\n\n", bold("Running: "+title))

	for _, sr := range result.Steps {
		switch sr.Status {
		case engine.StatusSkipped:
			fmt.Fprintf(f.writer, "  %s %s", yellow("-"), sr.Name)
			if sr.SkipReason != "" {
				fmt.Fprintf(f.writer, " (%s)", sr.SkipReason)
			}
			fmt.Fprintf(f.writer, "\n")
			continue
		case engine.StatusError:
			fmt.Fprintf(f.writer, "  %s %s", red("x"), sr.Name)
			if sr.Error != nil {
				fmt.Fprintf(f.writer, " %s", red("("+sr.Error.Message+")"))
			}
			fmt.Fprintf(f.writer, "\n")
			continue
		}

		symbol := green("✓")
		if !sr.Passed() {
			symbol = red("✗")
		}
		fmt.Fprintf(f.writer, "  %s %s %s", symbol, sr.Name,
			cyan(fmt.Sprintf("(%dms)", sr.Duration().Milliseconds())))
		if sr.RetryCount > 0 {
			fmt.Fprintf(f.writer, " %s", yellow(fmt.Sprintf("[%d retries]", sr.RetryCount)))
		}
		fmt.Fprintf(f.writer, "\n")

		if f.verbose && sr.Response != nil {
			fmt.Fprintf(f.writer, "    Status: %d\n", sr.Response.Status)
		}

		if !sr.Passed() {
			if sr.Error != nil {
				fmt.Fprintf(f.writer, "    %s %s\n", red("→"), sr.Error.Message)
				if sr.Error.Suggestion != "" {
					fmt.Fprintf(f.writer, "      %s\n", sr.Error.Suggestion)
				}
			}
			for _, v := range sr.Validations {
				if v.Passed {
					continue
				}
				fmt.Fprintf(f.writer, "    %s %s %s\n", red("→"), v.Type, v.Operator)
				fmt.Fprintf(f.writer, "      Expected: %s\n", formatValue(v.Expect, 100))
				fmt.Fprintf(f.writer, "      Actual:   %s\n", formatValue(v.Actual, 100))
				if v.Message != "" {
					fmt.Fprintf(f.writer, "      %s\n", v.Message)
				}
			}
		}

		if f.verbose && len(sr.Extracted) > 0 {
			fmt.Fprintf(f.writer, "    Extracted:\n")
			for name, value := range sr.Extracted {
				fmt.Fprintf(f.writer, "      %s = %v\n", name, value)
			}
		}
	}

	fmt.Fprintf(f.writer, "\nSteps: ")
	if result.Passed > 0 {
		fmt.Fprintf(f.writer, "%s, ", green(fmt.Sprintf("%d passed", result.Passed)))
	}
	if result.Failed > 0 {
		fmt.Fprintf(f.writer, "%s, ", red(fmt.Sprintf("%d failed", result.Failed)))
	}
	if result.Errors > 0 {
		fmt.Fprintf(f.writer, "%s, ", red(fmt.Sprintf("%d errors", result.Errors)))
	}
	if result.Skipped > 0 {
		fmt.Fprintf(f.writer, "%s, ", yellow(fmt.Sprintf("%d skipped", result.Skipped)))
	}
	fmt.Fprintf(f.writer, "%d total\n", len(result.Steps))
	fmt.Fprintf(f.writer, "Time:  %dms\n", result.Duration().Milliseconds())

	if f.verbose && result.Latency != nil && result.Latency.Total > 0 {
		l := result.Latency
		fmt.Fprintf(f.writer, "Latency: p50 %.1fms, p95 %.1fms, p99 %.1fms, max %.1fms\n",
			l.P50Ms, l.P95Ms, l.P99Ms, l.MaxMs)
	}
	fmt.Fprintf(f.writer, "\n")
}

func (f *ConsoleFormatter) FormatError(err error) {
	red := color.New(color.FgRed).SprintFunc()
	fmt.Fprintf(f.writer, "%s %v\n", red("Error:"), err)
}

func (f *ConsoleFormatter) FormatHeader(version string) {
	bold := color.New(color.Bold).SprintFunc()
	fmt.Fprintf(f.writer, "%s %s\n", bold("flowspec"), version)
}
