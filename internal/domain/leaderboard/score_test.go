package leaderboard

import (
	"testing"
	"time"

	"codearena/internal/domain/model"
)

func TestFinalScoreWeighting(t *testing.T) {
	const threeHours = 3 * time.Hour
	cases := []struct {
		name         string
		score, max   int
		taken        time.Duration
		participants int
		want         int
	}{
		// Full score after one of three hours: 0.7*1 + 0.3*(2/3) = 0.9.
		{"full score fast", 300, 300, time.Hour, 1, 900},
		// Perfect and instant in a field of three: log2(4) doubles it.
		{"field multiplier", 300, 300, 0, 3, 2000},
		// A finish past the deadline earns no efficiency credit.
		{"efficiency clamped", 100, 300, 4 * time.Hour, 1, 233},
		// No solves means no efficiency even with zero elapsed time.
		{"nothing solved", 0, 300, 0, 5, 0},
	}
	for _, tc := range cases {
		got := FinalScore(tc.score, tc.max, tc.taken, threeHours, tc.participants)
		if got != tc.want {
			t.Fatalf("%s: FinalScore = %d, want %d", tc.name, got, tc.want)
		}
	}
}

func TestFinalScoreDegenerateInputs(t *testing.T) {
	if got := FinalScore(100, 0, time.Hour, 3*time.Hour, 2); got != 0 {
		t.Fatalf("zero max score = %d, want 0", got)
	}
	if got := FinalScore(100, 300, time.Hour, 0, 2); got != 0 {
		t.Fatalf("zero duration = %d, want 0", got)
	}
	if got := FinalScore(100, 300, time.Hour, 3*time.Hour, 0); got != 0 {
		t.Fatalf("no participants = %d, want 0", got)
	}
}

func TestFinalScoreRewardsSpeedAtEqualPoints(t *testing.T) {
	fast := FinalScore(200, 300, 30*time.Minute, 3*time.Hour, 10)
	slow := FinalScore(200, 300, 2*time.Hour, 3*time.Hour, 10)
	if fast <= slow {
		t.Fatalf("fast solver %d should outrank slow solver %d", fast, slow)
	}
}

func TestRankOrdersByFinalScoreThenFinish(t *testing.T) {
	rows := []model.LeaderboardRow{
		{Email: "carol@arena.dev", FinalScore: 500, FinishTime: "15:30:00"},
		{Email: "dave@arena.dev", FinalScore: 900, FinishTime: ""},
		{Email: "alice@arena.dev", FinalScore: 900, FinishTime: "15:00:00"},
		{Email: "bob@arena.dev", FinalScore: 900, FinishTime: "14:45:00"},
		{Email: "erin@arena.dev", FinalScore: 0, FinishTime: ""},
	}
	Rank(rows)
	want := []string{
		"bob@arena.dev",   // highest score, earliest finish
		"alice@arena.dev", // same score, later finish
		"dave@arena.dev",  // same score, no finish recorded
		"carol@arena.dev",
		"erin@arena.dev",
	}
	for i, email := range want {
		if rows[i].Email != email {
			t.Fatalf("rank %d = %s, want %s", i+1, rows[i].Email, email)
		}
	}
}

func TestRankBreaksFullTiesByEmail(t *testing.T) {
	rows := []model.LeaderboardRow{
		{Email: "zed@arena.dev", FinalScore: 700, FinishTime: "15:00:00"},
		{Email: "amy@arena.dev", FinalScore: 700, FinishTime: "15:00:00"},
	}
	Rank(rows)
	if rows[0].Email != "amy@arena.dev" {
		t.Fatalf("tie broken to %s, want amy@arena.dev", rows[0].Email)
	}
}
