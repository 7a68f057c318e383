package ui

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Printer writes UI components to a writer.
type Printer struct {
	out   io.Writer
	width int
}

// NewPrinter creates a printer sized to the terminal.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{out: w, width: GetTerminalWidth()}
}

// Width returns the rendering width.
func (p *Printer) Width() int {
	return p.width
}

// Println prints content followed by a newline.
func (p *Printer) Println(content string) {
	fmt.Fprintln(p.out, content)
}

// PrintHeader prints a command header and a blank line.
func (p *Printer) PrintHeader(title, command string, params []Field) {
	p.Println(NewHeader(title, command, params).SetWidth(p.width).Render())
	p.Println("")
}

// PrintSuccess prints a success box.
func (p *Printer) PrintSuccess(title string, details []Field) {
	p.Println(NewSuccessResult(title, details).SetWidth(p.width).Render())
}

// PrintWarning prints a warning box.
func (p *Printer) PrintWarning(title string, details []Field) {
	p.Println(NewWarningResult(title, details).SetWidth(p.width).Render())
}

// PrintFailure prints a failure box.
func (p *Printer) PrintFailure(title string, err error, troubleshooting string) {
	p.Println(NewFailureResult(title, err, troubleshooting).SetWidth(p.width).Render())
}

// PrintTable prints rows under headers with a rounded border.
func (p *Printer) PrintTable(headers []string, rows [][]string) {
	p.Println(RenderTable(headers, rows))
}

// RenderTable renders rows under headers.
func RenderTable(headers []string, rows [][]string) string {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(PrimaryColor)).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return TableHeaderStyle
			}
			return TableCellStyle
		}).
		Headers(headers...).
		Rows(rows...).
		Render()
}
