package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/okian/gestor/internal/domain/change"
	"github.com/okian/gestor/internal/domain/classify"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// describe renders one event as a single human readable line.
func describe(i int, e change.Wire) string {
	rec := e.Record
	head := fmt.Sprintf("[%d] %-17s %s/%s (%s)", i, e.Kind, rec.OwnerID, rec.ClientID, rec.Label())

	switch e.Kind {
	case change.KindLevelIncreased, change.KindLevelDecreased:
		if e.PreviousLevel != nil && e.NewLevel != nil {
			return fmt.Sprintf("%s level %d -> %d", head, *e.PreviousLevel, *e.NewLevel)
		}
	case change.KindMoodImproved, change.KindMoodWorsened:
		if e.PreviousMood != nil && e.NewMood != nil {
			return fmt.Sprintf("%s mood %d -> %d", head, *e.PreviousMood, *e.NewMood)
		}
	case change.KindRecordCreated:
		return fmt.Sprintf("%s level %d mood %d at_risk=%t", head, rec.Level, rec.Mood, rec.AtRisk)
	}
	return head
}

func printEvents(w io.Writer, events []change.Wire, rejected []classify.Rejection) {
	if len(events) == 0 {
		fmt.Fprintln(w, "no changes")
	}
	for i, e := range events {
		fmt.Fprintln(w, describe(i, e))
	}
	printRejections(w, rejected)
}

func printRejections(w io.Writer, rejected []classify.Rejection) {
	if len(rejected) == 0 {
		return
	}
	fmt.Fprintf(w, "%d record(s) rejected:\n", len(rejected))
	for _, r := range rejected {
		fmt.Fprintf(w, "  %s/%s: %s\n", r.Record.OwnerID, r.Record.ClientID, r.Reason)
	}
}

func printReview(w io.Writer, r Review) {
	fmt.Fprintf(w, "review %s\n", r.ID)
	if r.BaselineCapturedAt != nil {
		fmt.Fprintf(w, "baseline captured at %s\n", r.BaselineCapturedAt.Format(time.RFC3339))
	} else {
		fmt.Fprintln(w, "no baseline captured")
	}
	printEvents(w, r.Events, r.Rejected)
}

func printReport(w io.Writer, r Report) {
	fmt.Fprintf(w, "review %s: %d applied, %d failed\n", r.ReviewID, r.Outcome.Applied, r.Outcome.Failed)
	for _, res := range r.Outcome.Results {
		line := fmt.Sprintf("[%d] %-7s %-17s %s", res.Index, res.Status, res.Kind, res.Key)
		if res.Error != "" {
			line += fmt.Sprintf(" (%s: %s)", res.Stage, res.Error)
		}
		fmt.Fprintln(w, line)
	}
	printRejections(w, r.Outcome.Rejected)
	if r.SnapshotRefreshed {
		fmt.Fprintln(w, "snapshot refreshed")
	}
}

func printSnapshot(w io.Writer, s Snapshot) {
	if s.CapturedAt == nil {
		fmt.Fprintln(w, "no snapshot captured")
		return
	}
	fmt.Fprintf(w, "%d record(s) captured at %s\n", len(s.Records), s.CapturedAt.Format(time.RFC3339))
}
