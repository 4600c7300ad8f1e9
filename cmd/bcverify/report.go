package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"github.com/itchyny/timefmt-go"
	"github.com/mattn/go-runewidth"

	"github.com/chazu/bcverify/diag"
	"github.com/chazu/bcverify/wire"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiYellow = "\x1b[33m"
	ansiGreen  = "\x1b[32m"
	ansiDim    = "\x1b[2m"
)

// printer renders a report as aligned text.
type printer struct {
	w     io.Writer
	color bool
	quiet bool
	err   error
}

func (p *printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

func (p *printer) paint(code, s string) string {
	if !p.color {
		return s
	}
	return code + s + ansiReset
}

func (p *printer) status(s diag.Status) string {
	switch s {
	case diag.OK:
		return p.paint(ansiGreen, s.String())
	case diag.Warning:
		return p.paint(ansiYellow, s.String())
	default:
		return p.paint(ansiRed, s.String())
	}
}

func (p *printer) severity(s diag.Severity) string {
	switch s {
	case diag.SeverityError:
		return p.paint(ansiRed, s.String())
	case diag.SeverityWarning:
		return p.paint(ansiYellow, s.String())
	default:
		return p.paint(ansiDim, s.String())
	}
}

// nameWidth returns the display width of the longest method name shown.
func (p *printer) nameWidth(r *wire.Report) int {
	width := 0
	for _, m := range r.Methods {
		if p.quiet && m.Status == diag.OK {
			continue
		}
		width = max(width, runewidth.StringWidth(m.Method))
	}
	return width
}

func (p *printer) report(r *wire.Report) {
	p.printf("run %s  %s  %s\n",
		r.RunID,
		timefmt.Format(r.Started.Local(), "%Y-%m-%d %H:%M:%S"),
		r.Elapsed.Round(time.Microsecond))
	if r.BundleHash != ([32]byte{}) {
		p.printf("bundle %s\n", hex.EncodeToString(r.BundleHash[:8]))
	}

	width := p.nameWidth(r)
	for _, m := range r.Methods {
		if p.quiet && m.Status == diag.OK {
			continue
		}
		p.printf("  %s  %s", runewidth.FillRight(m.Method, width), p.status(m.Status))
		if m.Warnings > 0 || m.Errors > 0 {
			p.printf("  (%d errors, %d warnings)", m.Errors, m.Warnings)
		}
		p.printf("\n")
		if m.Err != "" {
			p.printf("      %s\n", p.paint(ansiRed, m.Err))
		}
		for _, msg := range m.Messages {
			at := "----"
			if msg.Offset >= 0 {
				at = fmt.Sprintf("%04X", msg.Offset)
			}
			p.printf("      %s %s [%s] %s\n", at, p.severity(msg.Severity), msg.Kind, msg.Text)
		}
	}

	counts := r.Counts()
	p.printf("%d methods: %d ok, %d warning, %d error; result %s\n",
		len(r.Methods), counts[diag.OK], counts[diag.Warning], counts[diag.Error], p.status(r.Status))
}
