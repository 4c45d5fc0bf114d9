package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

type output struct {
	w       io.Writer
	json    bool
	label   *color.Color
	good    *color.Color
	bad     *color.Color
	warning *color.Color
}

func newOutput(cmd *cobra.Command, opts *options) *output {
	return &output{
		w:       cmd.OutOrStdout(),
		json:    opts.jsonOut,
		label:   color.New(color.FgCyan),
		good:    color.New(color.FgGreen, color.Bold),
		bad:     color.New(color.FgRed, color.Bold),
		warning: color.New(color.FgYellow),
	}
}

func (o *output) JSON(v any) error {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (o *output) Field(name string, format string, args ...any) {
	o.label.Fprintf(o.w, "%-22s", name)
	fmt.Fprintf(o.w, format+"\n", args...)
}

func (o *output) OK(format string, args ...any) {
	o.good.Fprintf(o.w, "✓ "+format+"\n", args...)
}

func (o *output) Fail(format string, args ...any) {
	o.bad.Fprintf(o.w, "✗ "+format+"\n", args...)
}

func (o *output) Warn(format string, args ...any) {
	o.warning.Fprintf(o.w, "! "+format+"\n", args...)
}
