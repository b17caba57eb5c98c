package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/xmlwasm/expat"
	"github.com/xmlwasm/expat/parser"
)

const feedChunk = 64 * 1024

var (
	eventNameStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#98FB98"))
	errEventStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
)

var eventsCmd = &cobra.Command{
	Use:   "events <file.xml>",
	Short: "Parse a document and print every event as it fires",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runEvents(cmd.Context(), args[0])
	},
}

func runEvents(ctx context.Context, path string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	wasm, err := loadWasm()
	if err != nil {
		return err
	}

	rt, err := parser.NewRuntime(ctx, wasm, parser.WithLogger(logger))
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	p, err := rt.NewParser(ctx, parserOptions())
	if err != nil {
		return err
	}
	defer p.Destroy(ctx)

	color := term.IsTerminal(int(os.Stdout.Fd()))
	p.On(parser.Wildcard, func(args ...any) {
		fmt.Println(formatEvent(args[0].(string), args[1:], color))
	})

	var in io.Reader
	if path == "-" {
		in = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	buf := make([]byte, feedChunk)
	for {
		n, rerr := in.Read(buf)
		if n > 0 {
			if err := p.Parse(ctx, buf[:n], false); err != nil {
				return err
			}
		}
		if rerr == io.EOF {
			return p.Parse(ctx, nil, true)
		}
		if rerr != nil {
			return rerr
		}
	}
}

func formatEvent(name string, args []any, color bool) string {
	parts := make([]string, 0, len(args))
	for _, a := range args {
		switch v := a.(type) {
		case parser.Attributes:
			kv := make([]string, 0, len(v))
			for _, at := range v {
				kv = append(kv, fmt.Sprintf("%s=%q", at.Name, at.Value))
			}
			parts = append(parts, "{"+strings.Join(kv, " ")+"}")
		case *parser.Model:
			parts = append(parts, formatModel(v))
		case string:
			parts = append(parts, fmt.Sprintf("%q", v))
		case nil:
			parts = append(parts, "null")
		default:
			parts = append(parts, fmt.Sprint(v))
		}
	}

	label := name
	if color {
		style := eventNameStyle
		if name == parser.EventError {
			style = errEventStyle
		}
		label = style.Render(name)
	}
	if len(parts) == 0 {
		return label
	}
	return label + " " + strings.Join(parts, " ")
}

func formatModel(m *parser.Model) string {
	var b strings.Builder
	writeModel(&b, m)
	return b.String()
}

func writeModel(b *strings.Builder, m *parser.Model) {
	switch {
	case m.Name != "":
		b.WriteString(m.Name)
	case len(m.Children) > 0:
		sep := ","
		if m.Type == expat.ContentChoice {
			sep = "|"
		}
		b.WriteByte('(')
		for i, c := range m.Children {
			if i > 0 {
				b.WriteString(sep)
			}
			writeModel(b, c)
		}
		b.WriteByte(')')
	default:
		b.WriteString(m.Type.String())
	}
	b.WriteString(m.Quant.String())
}
