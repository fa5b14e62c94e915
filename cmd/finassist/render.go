package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/germanamz/finassist/pkg/assistant"
	"github.com/germanamz/finassist/pkg/tools/toolbox"
	"github.com/mattn/go-runewidth"
)

const defaultWidth = 100

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
	nameStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	paramStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// terminalWidth reads COLUMNS, falling back to defaultWidth.
func terminalWidth() int {
	if n, err := strconv.Atoi(os.Getenv("COLUMNS")); err == nil && n > 0 {
		return n
	}
	return defaultWidth
}

// renderMarkdown converts markdown text to terminal-formatted output. The raw
// text is returned if the renderer cannot be built.
func renderMarkdown(text string, width int) string {
	if width <= 0 {
		width = defaultWidth
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return text
	}

	out, err := r.Render(text)
	if err != nil {
		return text
	}

	return strings.TrimRight(out, "\n")
}

// renderToolTable lays tools out as NAME / PARAMS / DESCRIPTION columns fitted
// to width. Required parameters carry a trailing "*".
func renderToolTable(tools []toolbox.Descriptor, width int) string {
	if width <= 0 {
		width = defaultWidth
	}

	params := make([]string, len(tools))
	nameW, paramW := len("NAME"), len("PARAMS")
	for i, t := range tools {
		params[i] = paramSummary(t.InputSchema)
		nameW = max(nameW, runewidth.StringWidth(t.Name))
		paramW = max(paramW, runewidth.StringWidth(params[i]))
	}

	const gap = 2
	descW := max(width-nameW-paramW-2*gap, 10)

	var b strings.Builder
	b.WriteString(headerStyle.Render(pad("NAME", nameW+gap) + pad("PARAMS", paramW+gap) + "DESCRIPTION"))
	b.WriteByte('\n')

	for i, t := range tools {
		desc := runewidth.Truncate(strings.ReplaceAll(t.Description, "\n", " "), descW, "…")
		b.WriteString(nameStyle.Render(pad(t.Name, nameW+gap)))
		b.WriteString(paramStyle.Render(pad(params[i], paramW+gap)))
		b.WriteString(desc)
		b.WriteByte('\n')
	}

	b.WriteString(mutedStyle.Render(fmt.Sprintf("%d tools", len(tools))))

	return b.String()
}

// pad right-fills s with spaces to display width w.
func pad(s string, w int) string {
	return runewidth.FillRight(s, w)
}

// paramSummary lists the schema's properties alphabetically, required ones
// first and suffixed with "*".
func paramSummary(schema json.RawMessage) string {
	var s struct {
		Properties map[string]json.RawMessage `json:"properties"`
		Required   []string                   `json:"required"`
	}
	if err := json.Unmarshal(schema, &s); err != nil {
		return ""
	}

	required := make(map[string]bool, len(s.Required))
	for _, r := range s.Required {
		required[r] = true
	}

	names := make([]string, 0, len(s.Properties))
	for name := range s.Properties {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if required[names[i]] != required[names[j]] {
			return required[names[i]]
		}
		return names[i] < names[j]
	})

	for i, name := range names {
		if required[name] {
			names[i] = name + "*"
		}
	}

	return strings.Join(names, ",")
}

// renderUsage formats token usage as a muted one-line footer.
func renderUsage(tc assistant.TokenCount) string {
	return mutedStyle.Render(fmt.Sprintf("tokens: %d prompt, %d completion", tc.PromptTokens, tc.CompletionTokens))
}
