package model

// LeaderboardRow is one ranked entry as served by the backend. The order in
// which rows arrive IS the ranking; the engine never re-sorts them.
type LeaderboardRow struct {
	Email      string `json:"email"`
	Uname      string `json:"uname"`
	Solved     int    `json:"solved"`
	Score      int    `json:"score"`
	MaxScore   int    `json:"max_score"`
	FinishTime string `json:"finish_time,omitempty"`
	TimeTaken  string `json:"time_taken,omitempty"`
	FinalScore int    `json:"final_score"`
}

// ContestResult is the viewer's own outcome for a finished contest:
// per-problem earned points plus totals.
type ContestResult struct {
	ContestID string          `json:"contest_id"`
	Email     string          `json:"email"`
	Solved    int             `json:"solved"`
	Score     int             `json:"score"`
	MaxScore  int             `json:"max_score"`
	Problems  []ProblemResult `json:"problems"`
	Finished  bool            `json:"finished"`
	Violation bool            `json:"violation"`
}

type ProblemResult struct {
	ProblemID  string     `json:"problem_id"`
	Title      string     `json:"title"`
	Difficulty Difficulty `json:"difficulty"`
	Points     int        `json:"points"`
	Progress   Progress   `json:"progress"`
}
