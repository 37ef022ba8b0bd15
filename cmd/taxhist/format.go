package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"taxhist/internal/history"
	"taxhist/internal/historycache"
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	FormatJSON  OutputFormat = "json"
	FormatYAML  OutputFormat = "yaml"
	FormatHuman OutputFormat = "human"
)

// FormatResponse formats a response according to the specified format
func FormatResponse(resp interface{}, format OutputFormat) (string, error) {
	switch format {
	case FormatJSON:
		return formatJSON(resp)
	case FormatYAML:
		return formatYAML(resp)
	case FormatHuman:
		return formatHuman(resp)
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}

// formatJSON formats the response as JSON
func formatJSON(resp interface{}) (string, error) {
	data, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return string(data), nil
}

// formatYAML goes through JSON first so keys match the JSON field names.
func formatYAML(resp interface{}) (string, error) {
	data, err := json.Marshal(resp)
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	var generic interface{}
	if err := json.Unmarshal(data, &generic); err != nil {
		return "", fmt.Errorf("failed to decode JSON: %w", err)
	}
	out, err := yaml.Marshal(generic)
	if err != nil {
		return "", fmt.Errorf("failed to marshal YAML: %w", err)
	}
	return strings.TrimRight(string(out), "\n"), nil
}

// formatHuman formats the response in human-readable format
func formatHuman(resp interface{}) (string, error) {
	switch v := resp.(type) {
	case *HistoryResponseCLI:
		return formatHistoryHuman(v), nil
	case *historycache.Status:
		return formatStatusHuman(v), nil
	case *RefreshResponseCLI:
		return formatRefreshHuman(v), nil
	default:
		return formatJSON(resp)
	}
}

// HistoryResponseCLI is the output of history, taxon and discipline.
type HistoryResponseCLI struct {
	Subject            string                 `json:"subject,omitempty"`
	Entries            []history.HistoryEntry `json:"entries"`
	TotalCommits       int                    `json:"totalCommits"`
	CommitsWithChanges int                    `json:"commitsWithChanges"`
	FromCache          bool                   `json:"fromCache"`
	CacheAgeMs         int64                  `json:"cacheAgeMs"`
	Message            string                 `json:"message,omitempty"`
}

// RefreshResponseCLI is the output of refresh.
type RefreshResponseCLI struct {
	Forced             bool   `json:"forced"`
	Entries            int    `json:"entries"`
	TotalCommits       int    `json:"totalCommits"`
	CommitsWithChanges int    `json:"commitsWithChanges"`
	Watermark          string `json:"watermark"`
	ProcessingTimeMs   int64  `json:"processingTimeMs"`
}

var changeMarks = map[history.ChangeKind]string{
	history.ChangeAdded:      "+",
	history.ChangeRemoved:    "-",
	history.ChangeDeprecated: "!",
	history.ChangeModified:   "~",
}

func formatHistoryHuman(resp *HistoryResponseCLI) string {
	var b strings.Builder

	title := "Taxonomy history"
	if resp.Subject != "" {
		title += ": " + resp.Subject
	}
	b.WriteString(title + "\n")
	b.WriteString(strings.Repeat("=", 60) + "\n")
	b.WriteString(fmt.Sprintf("%d commits with changes of %d examined", resp.CommitsWithChanges, resp.TotalCommits))
	if resp.FromCache {
		b.WriteString(fmt.Sprintf(" (cached %s ago)", (time.Duration(resp.CacheAgeMs) * time.Millisecond).Round(time.Second)))
	}
	b.WriteString("\n")
	if resp.Message != "" {
		b.WriteString(resp.Message + "\n")
	}

	for _, e := range resp.Entries {
		b.WriteString(fmt.Sprintf("\n%s  %s  %s\n", shortHash(e.Hash), e.Date.Format("2006-01-02"), e.Author))
		if e.Message != "" {
			b.WriteString("  " + e.Message + "\n")
		}
		for _, c := range e.Changes {
			line := fmt.Sprintf("    %s %-10s %s", changeMarks[c.Kind], c.Kind, c.Name)
			if len(c.Fields) > 0 {
				fields := make([]string, len(c.Fields))
				for i, f := range c.Fields {
					fields[i] = f.Field
				}
				line += " (" + strings.Join(fields, ", ") + ")"
			}
			b.WriteString(line + "\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatStatusHuman(st *historycache.Status) string {
	var b strings.Builder

	b.WriteString("History cache\n")
	b.WriteString(strings.Repeat("=", 60) + "\n")
	rows := map[string]string{
		"State":     string(st.State),
		"Store":     st.StorePath,
		"Entries":   fmt.Sprintf("%d", st.Entries),
		"Commits":   fmt.Sprintf("%d examined, %d with changes", st.TotalCommits, st.CommitsWithChanges),
		"Watermark": shortHash(st.Watermark),
		"Initial":   shortHash(st.InitialCommit),
	}
	if st.CachedAt != nil {
		rows["Cached"] = fmt.Sprintf("%s (%s ago)", st.CachedAt.Format(time.RFC3339),
			(time.Duration(st.AgeMs) * time.Millisecond).Round(time.Second))
	}
	if st.LastError != "" {
		rows["Last error"] = st.LastError
	}

	keys := make([]string, 0, len(rows))
	for k := range rows {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString(fmt.Sprintf("  %-10s %s\n", k+":", rows[k]))
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatRefreshHuman(resp *RefreshResponseCLI) string {
	mode := "Incremental"
	if resp.Forced {
		mode = "Full"
	}
	return fmt.Sprintf("%s refresh done in %dms: %d entries, %d commits examined, watermark %s",
		mode, resp.ProcessingTimeMs, resp.Entries, resp.TotalCommits, shortHash(resp.Watermark))
}

func shortHash(hash string) string {
	if hash == "" {
		return "-"
	}
	if len(hash) > 7 {
		return hash[:7]
	}
	return hash
}

// historyFromResult converts a cache result for output.
func historyFromResult(subject string, res *historycache.Result, entries []history.HistoryEntry) *HistoryResponseCLI {
	if entries == nil {
		entries = []history.HistoryEntry{}
	}
	return &HistoryResponseCLI{
		Subject:            subject,
		Entries:            entries,
		TotalCommits:       res.TotalCommits,
		CommitsWithChanges: len(entries),
		FromCache:          res.FromCache,
		CacheAgeMs:         res.CacheAgeMs,
		Message:            res.Message,
	}
}
