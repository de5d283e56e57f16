package output

import (
	"fmt"
	"io"
	"time"

	"github.com/abdul-hamid-achik/flowspec/packages/core/engine"
)

// Formatter renders test case results as they complete.
type Formatter interface {
	FormatHeader(version string)
	FormatResult(file string, result *engine.TestCaseResult)
	FormatError(err error)
}

// Flushable is implemented by formatters that accumulate results and
// emit everything at the end of the run.
type Flushable interface {
	Flush(totalDuration time.Duration) error
}

// New builds the formatter for a reporter name.
func New(name string, w io.Writer, verbose, noColor bool) (Formatter, error) {
	switch name {
	case "console", "":
		return NewConsoleFormatter(WithWriter(w), WithVerbose(verbose), WithNoColor(noColor)), nil
	case "json":
		return NewJSONFormatter(JSONWithWriter(w)), nil
	case "junit":
		return NewJUnitFormatter(JUnitWithWriter(w)), nil
	case "tap":
		return NewTAPFormatter(TAPWithWriter(w)), nil
	case "html":
		return NewHTMLFormatter(HTMLWithWriter(w)), nil
	default:
		return nil, fmt.Errorf("unknown reporter %q", name)
	}
}
