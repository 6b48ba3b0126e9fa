package notifier

import (
	"context"
	"fmt"
	"io"
	"sync"
	"unicode/utf8"
)

// DryRunOutcome is returned for every message a DryRun prints
const DryRunOutcome = "dry run: not sent"

// DryRun prints what would be sent without contacting Telegram
type DryRun struct {
	mu  sync.Mutex
	out io.Writer
	n   int
}

// NewDryRun creates a dry-run sender writing to out
func NewDryRun(out io.Writer) *DryRun {
	return &DryRun{out: out}
}

// SendMessage prints the message
func (d *DryRun) SendMessage(_ context.Context, message, recipient string) (string, error) {
	d.print("Message", message, recipient, "")
	return DryRunOutcome, nil
}

// SendPhoto prints the caption and photo URL
func (d *DryRun) SendPhoto(_ context.Context, caption, photoURL, recipient string) (string, error) {
	d.print("Photo", caption, recipient, photoURL)
	return DryRunOutcome, nil
}

// Count returns how many messages were printed
func (d *DryRun) Count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.n
}

func (d *DryRun) print(what, text, recipient, photoURL string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.n++
	if recipient == "" {
		recipient = "default chat"
	}
	fmt.Fprintf(d.out, "--- %s %d to %s ---\n", what, d.n, recipient)
	if photoURL != "" {
		fmt.Fprintf(d.out, "[photo: %s]\n", photoURL)
	}
	fmt.Fprintln(d.out, text)
	fmt.Fprintf(d.out, "\n(Length: %d characters)\n\n", utf8.RuneCountInString(text))
}
