package ui

import (
	"fmt"

	"github.com/bamsammich/winstick/internal/stats"
)

// CompletionSummary builds the final success line from a snapshot.
// Format: done ✓  stages 12/12  files 840  size 5.1 GiB  parts 2  time 6m 02s
func CompletionSummary(snap stats.Snapshot) string {
	base := fmt.Sprintf("done ✓  stages %d/%d  files %s",
		snap.StagesDone,
		snap.StagesTotal,
		FormatCount(snap.FilesCopied),
	)
	if snap.BytesCopied > 0 {
		base += "  size " + FormatBytes(snap.BytesCopied)
	}
	if snap.SplitParts > 0 {
		base += fmt.Sprintf("  parts %d", snap.SplitParts)
	}
	return base + "  time " + FormatDuration(snap.Elapsed)
}
