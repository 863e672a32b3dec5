// Package observability provides formatted output utilities for the CLI.
package observability

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/libdb/internal/pipeline"
	"github.com/jonathan/libdb/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 10
)

// Printer handles formatted output for CLI commands
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(strings.TrimRight(content, "\n"), "\n")
	for _, line := range lines {
		// Truncate long lines
		if len(line) > boxWidth-4 {
			line = line[:boxWidth-7] + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// writeList appends up to maxItemsToShow bullet items to sb
func writeList(sb *strings.Builder, items []string) {
	count := min(len(items), maxItemsToShow)
	for i := 0; i < count; i++ {
		sb.WriteString(fmt.Sprintf("  • %s\n", items[i]))
	}
	if len(items) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(items)-maxItemsToShow))
	}
}

// PrintLibrary outputs the details of an analysed library
func (p *Printer) PrintLibrary(details types.LibraryDetails) {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Name:        %s\n", details.Name))
	sb.WriteString(fmt.Sprintf("Language:    %s\n", details.Language))
	if details.Repository != "" {
		sb.WriteString(fmt.Sprintf("Repository:  %s\n", details.Repository))
	}
	if details.Description != "" {
		sb.WriteString("\n")
		sb.WriteString(details.Description)
		sb.WriteString("\n")
	}
	if len(details.Topics) > 0 {
		sb.WriteString("\nTopics:\n")
		writeList(&sb, details.Topics)
	}

	p.printBox("📚 LIBRARY", sb.String())
}

// PrintLibraryResult outputs the outcome of reading one library: its details, the
// failure message of its latest analysis, or a note that no analysis has completed.
func (p *Printer) PrintLibraryResult(ref types.LibraryReference, details types.LibraryDetails, err error) {
	var failure *pipeline.AnalysisFailure
	switch {
	case err == nil:
		p.PrintLibrary(details)
	case errors.As(err, &failure):
		p.printBox("❌ ANALYSIS FAILED", fmt.Sprintf("Library:  %s\n\n%s", ref, failure.Message))
	case errors.Is(err, pipeline.ErrNotYetAnalysed):
		p.printBox("⏳ NOT YET ANALYSED", fmt.Sprintf("Library:  %s", ref))
	default:
		p.printBox("❌ ERROR", fmt.Sprintf("Library:  %s\n\n%v", ref, err))
	}
}

// PrintTopic outputs the libraries of a topic
func (p *Printer) PrintTopic(name string, libraries []types.LibraryReference) {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Topic:      %s\n", name))
	sb.WriteString(fmt.Sprintf("Libraries:  %d\n", len(libraries)))
	if len(libraries) > 0 {
		sb.WriteString("\n")
		items := make([]string, 0, len(libraries))
		for _, ref := range libraries {
			items = append(items, ref.String())
		}
		writeList(&sb, items)
	}

	p.printBox("🏷️  TOPIC", sb.String())
}

// PrintTopicResult outputs the outcome of reading a topic's libraries
func (p *Printer) PrintTopicResult(name string, libraries []types.LibraryReference, err error) {
	var failures *pipeline.DiscoveryFailures
	switch {
	case err == nil:
		p.PrintTopic(name, libraries)
	case errors.As(err, &failures):
		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("Topic:     %s\n", name))
		sb.WriteString(fmt.Sprintf("Failures:  %d\n\n", len(failures.Failures)))
		writeList(&sb, failures.Failures)
		p.printBox("❌ DISCOVERY FAILED", sb.String())
	default:
		p.printBox("❌ ERROR", fmt.Sprintf("Topic:  %s\n\n%v", name, err))
	}
}
