package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"github.com/Veraticus/balance-sync-recon/internal/cli"
	"github.com/Veraticus/balance-sync-recon/internal/model"
)

var mismatchOrder = []model.MismatchType{
	model.MismatchCalculationAndBalanceSync,
	model.MismatchCalculation,
	model.MismatchBalanceSync,
	model.MismatchNone,
}

// Render writes a terminal view of the report. At most rows events are
// listed; zero lists none.
func Render(w io.Writer, r *Report, rows int) error {
	var b strings.Builder

	b.WriteString(cli.FormatTitle("Balance Reconciliation"))
	b.WriteString("\n")
	b.WriteString(cli.RenderBox("Summary", summaryLines(r)))
	b.WriteString("\n\n")

	if len(r.Users) > 0 {
		b.WriteString(cli.StyleTitle("Users with anomalies"))
		b.WriteString("\n")
		users := make([][]string, len(r.Users))
		for i, u := range r.Users {
			users[i] = []string{u.UserID, strconv.Itoa(u.Mismatches), strconv.Itoa(u.Overdrafts), formatMoney(u.MismatchValue)}
		}
		b.WriteString(Table([]string{"User", "Mismatches", "Overdrafts", "Value"}, users))
		b.WriteString("\n\n")
	}

	if len(r.Daily) > 0 {
		b.WriteString(cli.StyleTitle("Daily trend"))
		b.WriteString("\n")
		days := make([][]string, len(r.Daily))
		for i, d := range r.Daily {
			row := []string{d.Day, strconv.Itoa(d.Events)}
			for _, m := range mismatchOrder {
				row = append(row, strconv.Itoa(d.ByMismatch[m]))
			}
			days[i] = row
		}
		header := []string{"Day", "Events"}
		for _, m := range mismatchOrder {
			header = append(header, string(m))
		}
		b.WriteString(Table(header, days))
		b.WriteString("\n\n")
	}

	if rows > 0 && len(r.Events) > 0 {
		events := r.Events
		if len(events) > rows {
			events = events[:rows]
		}
		b.WriteString(cli.StyleTitle(fmt.Sprintf("Events (%d of %d)", len(events), len(r.Events))))
		b.WriteString("\n")
		table := make([][]string, len(events))
		for i, ev := range events {
			table[i] = []string{
				ev.Timestamp,
				ev.UserID,
				ev.Currency,
				string(ev.EventType),
				formatMoney(ev.OldBalance),
				formatMoney(ev.Amount),
				formatMoney(ev.VAT),
				formatMoney(ev.NewBalance),
				formatMoney(ev.ExpectedNewBalance),
				cli.FormatMismatch(ev.MismatchType),
			}
		}
		b.WriteString(Table([]string{"Timestamp", "User", "Cur", "Type", "Old", "Amount", "VAT", "New", "Expected", "Mismatch"}, table))
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func summaryLines(r *Report) string {
	s := r.Summary
	lastSync := "never"
	if !s.LastSync.IsZero() {
		lastSync = s.LastSync.Format("2006-01-02 15:04:05")
	}

	lines := []string{
		fmt.Sprintf("Events:               %d", s.TotalEvents),
		fmt.Sprintf("Users with mismatch:  %d", s.UsersWithMismatch),
		fmt.Sprintf("Total mismatch value: %s", decimal.NewFromFloat(s.TotalMismatchValue).StringFixed(2)),
		fmt.Sprintf("Overdrafts:           %d", s.Overdrafts),
		fmt.Sprintf("Last sync:            %s", lastSync),
	}
	for _, m := range mismatchOrder {
		if n := s.ByMismatch[m]; n > 0 {
			lines = append(lines, fmt.Sprintf("  %-30s %d", m, n))
		}
	}
	return strings.Join(lines, "\n")
}

// Table lays out rows under a bold header with columns padded to the widest
// cell. Widths account for styled cells.
func Table(header []string, rows [][]string) string {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) {
				widths[i] = max(widths[i], lipgloss.Width(cell))
			}
		}
	}

	render := func(cells []string) string {
		parts := make([]string, len(cells))
		for i, cell := range cells {
			parts[i] = cli.TableCellStyle.Render(cell + strings.Repeat(" ", widths[i]-lipgloss.Width(cell)))
		}
		return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
	}

	lines := make([]string, 0, len(rows)+1)
	lines = append(lines, cli.TableHeaderStyle.Render(render(header)))
	for _, row := range rows {
		lines = append(lines, render(row))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}
