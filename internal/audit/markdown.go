package audit

import (
	"fmt"
	"strings"

	"github.com/merchantsafe/kyc-screener/internal/models"
)

// Markdown renders a human-reviewable summary of a trail: checks grouped by
// status with failures first, then keyword triggers, then the timeline.
func Markdown(t *models.AuditTrail) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# Screening Audit %s\n\n", t.ScanID)
	fmt.Fprintf(&sb, "- Target: %s\n", t.TargetURL)
	if t.FinalURL != "" && t.FinalURL != t.TargetURL {
		fmt.Fprintf(&sb, "- Final URL: %s\n", t.FinalURL)
	}
	fmt.Fprintf(&sb, "- Started: %s\n", t.StartedAt.Format("2006-01-02 15:04:05 UTC"))
	fmt.Fprintf(&sb, "- Duration: %.1fs\n", t.DurationSeconds)
	fmt.Fprintf(&sb, "- Pages scanned: %d (%d URLs visited)\n\n", t.PagesScanned, len(t.URLsVisited))

	writeChecks(&sb, t.Checks)
	writeTriggers(&sb, t.KeywordTriggers)
	writeTimeline(&sb, t.Timeline)

	return sb.String()
}

func writeChecks(sb *strings.Builder, checks []models.AuditCheck) {
	if len(checks) == 0 {
		return
	}
	sb.WriteString("## Checks\n\n")
	for _, status := range []models.CheckStatus{models.CheckFail, models.CheckFlag, models.CheckPass, models.CheckInfo} {
		var group []models.AuditCheck
		for _, c := range checks {
			if c.Status == status {
				group = append(group, c)
			}
		}
		if len(group) == 0 {
			continue
		}
		fmt.Fprintf(sb, "### %s (%d)\n\n", strings.ToUpper(string(status)), len(group))
		for _, c := range group {
			fmt.Fprintf(sb, "- **%s**", c.Name)
			if c.Detail != "" {
				fmt.Fprintf(sb, ": %s", c.Detail)
			}
			if c.URL != "" {
				fmt.Fprintf(sb, " (%s)", c.URL)
			}
			sb.WriteByte('\n')
		}
		sb.WriteByte('\n')
	}
}

func writeTriggers(sb *strings.Builder, triggers []models.KeywordTrigger) {
	if len(triggers) == 0 {
		return
	}
	sb.WriteString("## Keyword Triggers\n\n")
	for _, tr := range triggers {
		fmt.Fprintf(sb, "- `%s` (%s, %s intent) on %s\n", tr.Keyword, tr.Category, tr.Intent, tr.URL)
	}
	sb.WriteByte('\n')
}

func writeTimeline(sb *strings.Builder, events []models.TimelineEvent) {
	if len(events) == 0 {
		return
	}
	sb.WriteString("## Timeline\n\n")
	for _, ev := range events {
		fmt.Fprintf(sb, "- %s %s", ev.At.Format("15:04:05.000"), ev.Event)
		if ev.Detail != "" {
			fmt.Fprintf(sb, ": %s", ev.Detail)
		}
		sb.WriteByte('\n')
	}
}
