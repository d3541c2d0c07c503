package api

import (
	"fmt"

	"github.com/feedwatch/feedwatch/internal/status"
)

const lowAudienceCutoff = 50

// DiagnosticHint is one human-readable insight about a feed's state. The
// dashboard shows these as chips on the feed card; clicking one shows Detail.
type DiagnosticHint struct {
	// Key is a stable machine-readable identifier (used for dedup/ordering).
	Key string `json:"key"`
	// Level is "ok" | "info" | "warning" | "critical"
	Level string `json:"level"`
	// Title is a short label shown on the chip.
	Title string `json:"title"`
	// Detail is the full explanation shown on click/hover.
	Detail string `json:"detail"`
	// Value is an optional numeric value associated with this hint.
	Value *float64 `json:"value,omitempty"`
}

// computeDiagnostics derives diagnostic hints from a feed status.
// Hints are ordered most severe first.
func computeDiagnostics(st status.FeedStatus) []DiagnosticHint {
	var hints []DiagnosticHint

	if st.Spiked {
		v := st.Delta
		level := "warning"
		title := "Listener spike"
		if st.Streak > 1 {
			level = "critical"
			title = "Sustained spike"
		}
		detail := fmt.Sprintf(
			"This feed is at %d listeners, %.0f above its usual level. "+
				"A jump like this usually means something is happening on the channel "+
				"right now. If it keeps up across several cycles the baseline will be "+
				"corrected so follow-on growth still registers.",
			st.Listeners, st.Delta,
		)
		if st.Streak > 1 {
			detail = fmt.Sprintf(
				"This feed has spiked %d cycles in a row and is now at %d listeners, "+
					"%.0f above its usual level. Sustained jumps are the strongest signal "+
					"of a live incident on the channel.",
				st.Streak, st.Listeners, st.Delta,
			)
		}
		hints = append(hints, DiagnosticHint{Key: "spiking", Level: level, Title: title, Detail: detail, Value: &v})
	}

	if st.Alert != "" {
		hints = append(hints, DiagnosticHint{
			Key:   "directory_alert",
			Level: "warning",
			Title: "Directory alert",
			Detail: fmt.Sprintf(
				"The feed directory has flagged this feed: \"%s\". "+
					"Alert text is written by the directory operators and usually names "+
					"the incident directly.",
				st.Alert,
			),
		})
	}

	if u := st.Unskewed; u != nil {
		v := *u
		hints = append(hints, DiagnosticHint{
			Key:   "correcting_baseline",
			Level: "info",
			Title: "Correcting baseline",
			Detail: fmt.Sprintf(
				"A sustained jump pulled the live average up, so spike checks are "+
					"temporarily measured against a held baseline of %.0f listeners "+
					"instead. The held value walks toward the live average each cycle "+
					"and normal tracking resumes once they converge.",
				v,
			),
			Value: &v,
		})
	}

	if st.Listeners > 0 && st.Listeners < lowAudienceCutoff {
		v := float64(st.Listeners)
		hints = append(hints, DiagnosticHint{
			Key:   "small_audience",
			Level: "info",
			Title: "Small audience",
			Detail: fmt.Sprintf(
				"Only %d people are listening, and at this size a handful of joins "+
					"looks like a big percentage move. Detection applies a stricter "+
					"threshold here, so expect fewer spike events from this feed.",
				st.Listeners,
			),
			Value: &v,
		})
	}

	if len(hints) == 0 {
		v := st.Average
		hints = append(hints, DiagnosticHint{
			Key:   "steady",
			Level: "ok",
			Title: "Steady",
			Detail: fmt.Sprintf(
				"Listener count is tracking its average of %.0f with no spike and "+
					"no directory alert. Nothing to do here.",
				st.Average,
			),
			Value: &v,
		})
	}

	return hints
}
