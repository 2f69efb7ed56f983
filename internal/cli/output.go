package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/eshaffer321/expense-matcher/internal/application/service"
	"github.com/eshaffer321/expense-matcher/internal/infrastructure/storage"
)

// PrintImportSummary prints the result of importing one statement
func PrintImportSummary(w io.Writer, source string, result *service.ImportResult) {
	fmt.Fprintf(w, "%s (run %d)\n", source, result.RunID)
	fmt.Fprintf(w, "  Rows=%d Imported=%d Skipped=%d (duplicates=%d malformed=%d)\n",
		result.Total,
		result.Imported,
		result.Skipped,
		result.Duplicates,
		result.Malformed)
}

// PrintAutoMatch prints how many matches a sweep proposed
func PrintAutoMatch(w io.Writer, threshold float64, created int) {
	fmt.Fprintf(w, "Auto-match (threshold %.0f): %d new pending matches\n", threshold, created)
}

// PrintStats prints the match statistics
func PrintStats(w io.Writer, stats *storage.MatchStats) {
	fmt.Fprintln(w, strings.Repeat("-", 60))
	fmt.Fprintf(w, "Matches: Total=%d Confirmed=%d Pending=%d Rejected=%d\n",
		stats.TotalMatches,
		stats.ConfirmedMatches,
		stats.PendingMatches,
		stats.RejectedMatches)
	fmt.Fprintf(w, "Unmatched receipts: %d\n", stats.UnmatchedReceipts)

	if stats.TotalMatches > 0 {
		rate := float64(stats.ConfirmedMatches) / float64(stats.TotalMatches) * 100
		fmt.Fprintf(w, "Confirmation rate: %.1f%%\n", rate)
	}
}
