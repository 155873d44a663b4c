package cli

import (
	"fmt"
	"io"
	"strings"
)

// IO bundles a command's streams and collects warnings.
type IO struct {
	in       io.Reader
	out      io.Writer
	errOut   io.Writer
	warnings []string
	started  bool
}

// NewIO creates a new IO instance. A nil in reads as empty.
func NewIO(in io.Reader, out, errOut io.Writer) *IO {
	if in == nil {
		in = strings.NewReader("")
	}

	return &IO{in: in, out: out, errOut: errOut}
}

// In returns the command's stdin.
func (o *IO) In() io.Reader { return o.in }

// Out returns the command's stdout.
func (o *IO) Out() io.Writer { return o.out }

// Warn records a non-fatal problem.
//
// Warnings are printed to stderr before the first stdout line and again at
// the end, so they survive head/tail truncation. Any warning makes the exit
// code 1 while normal output still happens.
func (o *IO) Warn(issue string, detail string) {
	o.warnings = append(o.warnings, fmt.Sprintf("%s: %s", issue, detail))
}

// Println writes to stdout. On first call, any collected warnings
// are printed to stderr first.
func (o *IO) Println(a ...any) {
	o.flushWarningsStart()
	_, _ = fmt.Fprintln(o.out, a...)
}

// Printf writes formatted output to stdout. On first call, any collected
// warnings are printed to stderr first.
func (o *IO) Printf(format string, a ...any) {
	o.flushWarningsStart()
	_, _ = fmt.Fprintf(o.out, format, a...)
}

// ErrPrintln writes to stderr.
func (o *IO) ErrPrintln(a ...any) {
	_, _ = fmt.Fprintln(o.errOut, a...)
}

// Finish prints warnings to stderr and returns exit code.
// Returns 1 if any warnings, 0 otherwise.
func (o *IO) Finish() int {
	// No output happened yet: print at the "start" position too.
	o.flushWarningsStart()

	for _, w := range o.warnings {
		_, _ = fmt.Fprintln(o.errOut, "warning:", w)
	}

	if len(o.warnings) > 0 {
		return 1
	}

	return 0
}

func (o *IO) flushWarningsStart() {
	if !o.started && len(o.warnings) > 0 {
		for _, w := range o.warnings {
			_, _ = fmt.Fprintln(o.errOut, "warning:", w)
		}

		o.started = true
	}
}
