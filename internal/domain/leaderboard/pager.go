// Package leaderboard paginates a server-ranked standings list. Rank order
// is trusted as given and never recomputed here.
package leaderboard

import "codearena/internal/domain/model"

// DefaultPageSize matches the standings table rendered by clients.
const DefaultPageSize = 10

// Page returns the 1-based page of rows. Out-of-range pages and non-positive
// sizes yield an empty slice; concatenating all pages in order reproduces
// rows exactly.
func Page(rows []model.LeaderboardRow, page, size int) []model.LeaderboardRow {
	if page < 1 || size < 1 {
		return nil
	}
	lo := (page - 1) * size
	if lo >= len(rows) {
		return nil
	}
	hi := lo + size
	if hi > len(rows) {
		hi = len(rows)
	}
	return rows[lo:hi]
}

// TotalPages reports how many pages the list spans; an empty list has one
// (empty) page so callers always have a valid selection.
func TotalPages(rows []model.LeaderboardRow, size int) int {
	if size < 1 || len(rows) == 0 {
		return 1
	}
	return (len(rows) + size - 1) / size
}

// PageOf finds the page containing the viewer's row, matching by email.
// A viewer absent from the list lands on page 1; that is a no-op, not an
// error.
func PageOf(rows []model.LeaderboardRow, email string, size int) int {
	if size < 1 {
		return 1
	}
	for i, row := range rows {
		if row.Email == email {
			return i/size + 1
		}
	}
	return 1
}
