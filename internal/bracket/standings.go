package bracket

import (
	"sort"

	"github.com/google/uuid"
)

type Standing struct {
	Rank       int       `json:"rank"`
	TeamID     uuid.UUID `json:"team_id"`
	TeamName   string    `json:"team_name"`
	Played     int       `json:"played"`
	Wins       int       `json:"wins"`
	Losses     int       `json:"losses"`
	Points     int       `json:"points"`
	WinPercent float64   `json:"win_percent"`
	Eliminated bool      `json:"eliminated"`
}

// WinPercent avoids dividing by zero for teams that have not played yet.
func WinPercent(wins, losses int) float64 {
	return float64(wins) / float64(max(wins+losses, 1))
}

// Standings orders teams by points, then wins, then team id so equal records always rank the same way.
func Standings(teams []Team) []Standing {
	standings := make([]Standing, 0, len(teams))
	for _, t := range teams {
		standings = append(standings, Standing{
			TeamID:     t.ID,
			TeamName:   t.Name,
			Played:     t.Wins + t.Losses,
			Wins:       t.Wins,
			Losses:     t.Losses,
			Points:     t.Points,
			WinPercent: WinPercent(t.Wins, t.Losses),
			Eliminated: t.Eliminated,
		})
	}

	sort.SliceStable(standings, func(i, j int) bool {
		a, b := standings[i], standings[j]
		if a.Points != b.Points {
			return a.Points > b.Points
		}
		if a.Wins != b.Wins {
			return a.Wins > b.Wins
		}
		return a.TeamID.String() < b.TeamID.String()
	})

	for i := range standings {
		standings[i].Rank = i + 1
	}
	return standings
}
