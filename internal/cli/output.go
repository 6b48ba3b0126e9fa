package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/pfrederiksen/telefication/internal/event"
	"github.com/pfrederiksen/telefication/internal/notifier"
)

// OutputFormat specifies the output format
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
)

// OutputResult contains data to be output
type OutputResult struct {
	ChatID  string            `json:"chat_id,omitempty"`
	Outcome string            `json:"outcome,omitempty"`
	Kind    event.Kind        `json:"kind,omitempty"`
	Results []notifier.Result `json:"results,omitempty"`
}

// WriteOutput writes the result in the specified format
func WriteOutput(w io.Writer, result *OutputResult, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, result)
	case FormatText:
		return writeText(w, result)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func writeText(w io.Writer, result *OutputResult) error {
	if result.ChatID != "" {
		fmt.Fprintf(w, "Chat ID: %s\n", result.ChatID)
	}
	if result.Outcome != "" {
		fmt.Fprintf(w, "Outcome: %s\n", result.Outcome)
	}
	if result.Kind == "" {
		return nil
	}

	if len(result.Results) == 0 {
		fmt.Fprintf(w, "No notifications enabled for %s.\n", result.Kind)
		return nil
	}

	counts := make(map[string]int)
	for _, r := range result.Results {
		counts[r.Status]++
		detail := r.Outcome
		if r.Error != "" {
			detail = r.Error
		}
		fmt.Fprintf(w, "%-8s %s: %s\n", r.Status, r.Handler, detail)
	}
	fmt.Fprintf(w, "\nTotal: %d sent, %d skipped, %d rejected, %d failed\n",
		counts[notifier.StatusSent], counts[notifier.StatusSkipped],
		counts[notifier.StatusRejected], counts[notifier.StatusFailed])
	return nil
}
