package export

import (
	"fmt"
	"strings"

	"github.com/harrisonrobin/engage/pkg/model"
)

// Summary renders a plain-text preview of a session. Tasks due up to and
// including the session day are listed as pre-session work.
func Summary(records []model.TaskRecord, label string) string {
	var b strings.Builder
	if label != "" {
		fmt.Fprintf(&b, "SESSION: %s\n\n", label)
	}

	b.WriteString("PRE-SESSION TASKS:\n")
	for _, r := range records {
		if r.Offset >= 0 {
			writeSummaryLine(&b, r)
		}
	}

	b.WriteString("\nPOST-SESSION TASKS:\n")
	for _, r := range records {
		if r.Offset < 0 {
			writeSummaryLine(&b, r)
		}
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func writeSummaryLine(b *strings.Builder, r model.TaskRecord) {
	fmt.Fprintf(b, "  %s - %s\n", r.DueDate.Format(PlannerDateLayout), r.Name)
}
