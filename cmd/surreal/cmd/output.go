package cmd

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	gojson "github.com/goccy/go-json"
	"github.com/goccy/go-yaml"
	"github.com/mattn/go-isatty"
	"github.com/spf13/pflag"

	"github.com/surrealdb/surrealdriver/pkg/models"
)

const (
	formatJSON = "json"
	formatYAML = "yaml"

	colorAuto   = "auto"
	colorAlways = "always"
	colorNever  = "never"
)

type formatter struct {
	format string
	color  string
}

func (f *formatter) ConfigFlags(pf *pflag.FlagSet) {
	pf.StringVarP(&f.format, "format", "f", formatJSON, "Output format: json or yaml")
	pf.StringVar(&f.color, "color", colorAuto, "Colour status lines: auto, always or never")
}

func (f *formatter) validate() error {
	switch f.format {
	case formatJSON, formatYAML:
	default:
		return fmt.Errorf("unknown output format %q", f.format)
	}
	switch f.color {
	case colorAuto, colorAlways, colorNever:
	default:
		return fmt.Errorf("unknown color mode %q", f.color)
	}
	return nil
}

// output writes v in the selected format.
func (f *formatter) output(w io.Writer, v any) error {
	var (
		out []byte
		err error
	)
	switch f.format {
	case formatYAML:
		out, err = yaml.Marshal(v)
	default:
		out, err = gojson.MarshalIndent(v, "", "  ")
		out = append(out, '\n')
	}
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}

// colored reports whether status lines written to w get ANSI colours.
func (f *formatter) colored(w io.Writer) bool {
	switch f.color {
	case colorAlways:
		return true
	case colorNever:
		return false
	}
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(file.Fd()) || isatty.IsCygwinTerminal(file.Fd())
}

func (f *formatter) status(w io.Writer, index int, ok bool, timing, message string) {
	c := color.New(color.FgGreen)
	label := "OK"
	if !ok {
		c = color.New(color.FgRed, color.Bold)
		label = "ERR"
	}
	if f.colored(w) {
		c.EnableColor()
	} else {
		c.DisableColor()
	}

	line := fmt.Sprintf("-- statement %d: %s", index+1, c.Sprint(label))
	if timing != "" {
		line += " (" + timing + ")"
	}
	if message != "" {
		line += ": " + message
	}
	fmt.Fprintln(w, line)
}

// plain converts v into maps, slices and scalars that both encoders render
// the same way. Record ids, datetimes and durations become their string form.
func plain(v models.Value) (any, error) {
	raw, err := v.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var out any
	dec := gojson.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

func plainAll(values []models.Value) ([]any, error) {
	out := make([]any, len(values))
	for i, v := range values {
		p, err := plain(v)
		if err != nil {
			return nil, err
		}
		out[i] = p
	}
	return out, nil
}
