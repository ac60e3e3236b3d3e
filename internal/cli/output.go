package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/jkdigital/servicehub/internal/client"
)

var (
	green  = color.New(color.FgGreen)
	red    = color.New(color.FgRed)
	yellow = color.New(color.FgYellow)
	cyan   = color.New(color.FgCyan)
	bold   = color.New(color.Bold)
)

// newTable returns a borderless table writing to w.
func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetBorder(false)
	table.SetHeaderLine(false)
	table.SetColumnSeparator("")
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	return table
}

// statusText colours a lifecycle status: green for done, red for failed or
// refunded, yellow while waiting.
func statusText(status string) string {
	switch strings.ToLower(status) {
	case "success", "completed", "active":
		return green.Sprint(status)
	case "failed", "refunded", "expired", "blocked", "inactive":
		return red.Sprint(status)
	case "pending", "submitted", "processing":
		return yellow.Sprint(status)
	default:
		return status
	}
}

func money(v float64) string {
	return "₹" + strconv.FormatFloat(v, 'f', 2, 64)
}

func shortTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func printSuccess(w io.Writer, format string, args ...interface{}) {
	fmt.Fprintf(w, "%s %s\n", green.Sprint("✓"), fmt.Sprintf(format, args...))
}

func printWarning(w io.Writer, format string, args ...interface{}) {
	fmt.Fprintf(w, "%s %s\n", yellow.Sprint("⚠"), fmt.Sprintf(format, args...))
}

func printInfo(w io.Writer, format string, args ...interface{}) {
	fmt.Fprintf(w, "%s %s\n", cyan.Sprint("ℹ"), fmt.Sprintf(format, args...))
}

func printError(w io.Writer, err error) {
	fmt.Fprintf(w, "%s %s\n", red.Sprint("✗"), err.Error())
}

func printBalance(w io.Writer, balance float64) {
	fmt.Fprintf(w, "  wallet balance: %s\n", bold.Sprint(money(balance)))
}

func printExamStatus(w io.Writer, token string, s client.ExamStatus) {
	status := string(s.TokenStatus)
	if status == "" {
		status = s.Status
	}
	fmt.Fprintf(w, "%s  %s", token, statusText(status))
	if s.Queue != "" && !s.Terminal() {
		fmt.Fprintf(w, "  queue %s", s.Queue)
	}
	if s.Remarks != "" {
		fmt.Fprintf(w, "  %s", s.Remarks)
	}
	if s.PDFAvailable {
		fmt.Fprint(w, "  (pdf ready)")
	}
	fmt.Fprintln(w)
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "< 1s"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
