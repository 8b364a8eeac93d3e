package leaderboard

import (
	"math"
	"sort"
	"time"

	"codearena/internal/domain/model"
)

// Score weighting: solved points dominate, speed breaks the rest, and a
// log factor rewards placing well in a larger field.
const (
	scoreWeight = 0.7
	speedWeight = 0.3
	scoreScale  = 1000
)

// FinalScore combines the point ratio with time efficiency, scaled by
// log2(participants+1). taken is how long after the start the last counted
// problem was accepted; a participant who solved nothing has zero efficiency.
// The result is scaled to an integer, 0..scoreScale*log2(participants+1).
func FinalScore(score, maxScore int, taken, duration time.Duration, participants int) int {
	if maxScore <= 0 || participants < 1 || duration <= 0 {
		return 0
	}
	ratio := float64(score) / float64(maxScore)

	efficiency := 0.0
	if score > 0 {
		efficiency = 1 - float64(taken)/float64(duration)
		if efficiency < 0 {
			efficiency = 0
		}
		if efficiency > 1 {
			efficiency = 1
		}
	}

	weighted := scoreWeight*ratio + speedWeight*efficiency
	return int(math.Round(weighted * math.Log2(float64(participants)+1) * scoreScale))
}

// Rank orders rows by final score, breaking ties by earlier finish and then
// by email so the ordering is total. The sorted slice IS the ranking served
// to clients.
func Rank(rows []model.LeaderboardRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].FinalScore != rows[j].FinalScore {
			return rows[i].FinalScore > rows[j].FinalScore
		}
		if rows[i].FinishTime != rows[j].FinishTime {
			// Unfinished rows carry an empty finish time and sort last.
			if rows[i].FinishTime == "" {
				return false
			}
			if rows[j].FinishTime == "" {
				return true
			}
			return rows[i].FinishTime < rows[j].FinishTime
		}
		return rows[i].Email < rows[j].Email
	})
}
