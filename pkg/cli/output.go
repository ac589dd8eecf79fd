package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"
)

// stdout is where command output goes
var stdout io.Writer = os.Stdout

var (
	outputJSON bool
	outputYAML bool
)

// SetJSONOutput sets the JSON output mode
func SetJSONOutput(enabled bool) {
	outputJSON = enabled
}

// SetYAMLOutput sets the YAML output mode
func SetYAMLOutput(enabled bool) {
	outputYAML = enabled
}

// IsStructuredOutput returns true if JSON or YAML output is enabled
func IsStructuredOutput() bool {
	return outputJSON || outputYAML
}

// PrintStructured writes data as JSON or YAML when one of those modes is
// enabled and returns true if it did.
func PrintStructured(data interface{}) bool {
	switch {
	case outputJSON:
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		enc.Encode(data)
		return true
	case outputYAML:
		fmt.Fprintln(stdout, "---")
		enc := yaml.NewEncoder(stdout)
		enc.SetIndent(2)
		enc.Encode(data)
		enc.Close()
		return true
	}
	return false
}

// PrintSuccess prints a success message with a green checkmark
func PrintSuccess(msg string) {
	fmt.Fprintf(stdout, "  %s %s\n", SuccessStyle.Render(SymbolSuccess), msg)
}

func PrintErrorMsg(msg string) {
	fmt.Fprintf(stdout, "  %s %s\n", ErrorStyle.Render(SymbolError), ErrorStyle.Render(msg))
}

func PrintWarning(msg string) {
	fmt.Fprintf(stdout, "  %s %s\n", WarningStyle.Render(SymbolWarning), WarningStyle.Render(msg))
}

// PrintInfo prints an info message with an arrow
func PrintInfo(msg string) {
	fmt.Fprintf(stdout, "  %s %s\n", InfoStyle.Render(SymbolInfo), msg)
}

// PrintHint prints a subtle hint/suggestion
func PrintHint(msg string) {
	fmt.Fprintf(stdout, "\n  %s\n", HintStyle.Render(msg))
}

func PrintSuggestions(title string, suggestions []string) {
	fmt.Fprintln(stdout)
	fmt.Fprintf(stdout, "  %s\n", DimStyle.Render(title))
	for _, s := range suggestions {
		fmt.Fprintf(stdout, "    %s %s\n", DimStyle.Render(SymbolBullet), s)
	}
}

// PrintHeader prints a section header
func PrintHeader(title string) {
	fmt.Fprintf(stdout, "\n  %s\n\n", BoldStyle.Render(title))
}

// PrintNewline prints an empty line
func PrintNewline() {
	fmt.Fprintln(stdout)
}

// PrintKeyValue prints a key-value pair with consistent alignment
func PrintKeyValue(key, value string) {
	fmt.Fprintf(stdout, "  %s %s\n", KeyStyle.Render(key), value)
}

// Table represents a styled table
type Table struct {
	Headers []string
	Rows    [][]string
	Widths  []int
}

// NewTable creates a new table with the given headers
func NewTable(headers ...string) *Table {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	return &Table{
		Headers: headers,
		Widths:  widths,
	}
}

// AddRow adds a row to the table. Missing cells are left blank.
func (t *Table) AddRow(cells ...string) {
	row := make([]string, len(t.Headers))
	for i := range row {
		if i < len(cells) {
			row[i] = cells[i]
			if w := lipgloss.Width(cells[i]); w > t.Widths[i] {
				t.Widths[i] = w
			}
		}
	}
	t.Rows = append(t.Rows, row)
}

// Print renders the table
func (t *Table) Print() {
	if len(t.Rows) == 0 {
		return
	}

	fmt.Fprint(stdout, "  ")
	for i, h := range t.Headers {
		fmt.Fprint(stdout, TableHeaderStyle.Width(t.Widths[i]+2).Render(h))
	}
	fmt.Fprintln(stdout)

	fmt.Fprint(stdout, "  ")
	for i := range t.Headers {
		fmt.Fprint(stdout, DimStyle.Render(strings.Repeat("─", t.Widths[i])), "  ")
	}
	fmt.Fprintln(stdout)

	for _, row := range t.Rows {
		fmt.Fprint(stdout, "  ")
		for i, cell := range row {
			fmt.Fprint(stdout, TableCellStyle.Width(t.Widths[i]+2).Render(cell))
		}
		fmt.Fprintln(stdout)
	}
}

// FormatRelativeTime formats a timestamp as relative time (e.g., "2 hours ago")
func FormatRelativeTime(t time.Time) string {
	return formatRelative(t, time.Now())
}

func formatRelative(t, now time.Time) string {
	duration := now.Sub(t)

	switch {
	case duration < time.Minute:
		return "just now"
	case duration < time.Hour:
		mins := int(duration.Minutes())
		if mins == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", mins)
	case duration < 24*time.Hour:
		hours := int(duration.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	case duration < 7*24*time.Hour:
		days := int(duration.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	default:
		return t.Format("Jan 2, 2006")
	}
}

// FormatBool renders yes/no
func FormatBool(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
