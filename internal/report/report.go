// Package report prints the outcome of a load run.
package report

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/subygan/receiver/internal/hammer"
)

type theme struct {
	title lipgloss.Style
	ok    lipgloss.Style
	bad   lipgloss.Style
	faint lipgloss.Style
	card  lipgloss.Style
}

func styled() theme {
	return theme{
		title: lipgloss.NewStyle().Bold(true),
		ok:    lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		bad:   lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
		faint: lipgloss.NewStyle().Faint(true),
		card: lipgloss.NewStyle().
			Padding(0, 1).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")),
	}
}

func plain() theme {
	s := lipgloss.NewStyle()
	return theme{title: s, ok: s, bad: s, faint: s, card: s}
}

// Render formats res for target. Styling is skipped when color is false.
func Render(target string, res hammer.Result, color bool) string {
	th := plain()
	if color {
		th = styled()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", th.title.Render(fmt.Sprintf("%d requests to %s", res.Sent, target)))
	fmt.Fprintf(&b, "  succeeded: %s\n", th.ok.Render(fmt.Sprint(res.Succeeded)))
	fmt.Fprintf(&b, "  failed:    %s\n", failStyle(th, res.Failed).Render(fmt.Sprint(res.Failed)))
	if res.Mismatched > 0 {
		fmt.Fprintf(&b, "  mismatched: %s\n", th.bad.Render(fmt.Sprint(res.Mismatched)))
	}
	if len(res.Statuses) > 0 {
		codes := make([]int, 0, len(res.Statuses))
		for code := range res.Statuses {
			codes = append(codes, code)
		}
		sort.Ints(codes)
		parts := make([]string, 0, len(codes))
		for _, code := range codes {
			parts = append(parts, fmt.Sprintf("%d×%d", code, res.Statuses[code]))
		}
		fmt.Fprintf(&b, "  statuses:  %s\n", strings.Join(parts, " "))
	}
	fmt.Fprintf(&b, "  elapsed:   %s", th.faint.Render(res.Elapsed.Round(time.Millisecond).String()))
	for _, err := range res.Errors {
		fmt.Fprintf(&b, "\n  %s", th.bad.Render(err.Error()))
	}
	if extra := res.Failed - len(res.Errors); len(res.Errors) > 0 && extra > 0 {
		fmt.Fprintf(&b, "\n  %s", th.faint.Render(fmt.Sprintf("... (+%d more)", extra)))
	}
	return th.card.Render(b.String())
}

// Write prints the report followed by a newline.
func Write(w io.Writer, target string, res hammer.Result, color bool) error {
	_, err := fmt.Fprintln(w, Render(target, res, color))
	return err
}

func failStyle(th theme, failed int) lipgloss.Style {
	if failed > 0 {
		return th.bad
	}
	return th.ok
}
