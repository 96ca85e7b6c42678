package bracket

// MatchesPerRound gives the number of match slots in each elimination round for teamCount teams.
// Every match sends one team forward, so round i+1 has ceil(matches[i]/2) slots. An odd number of
// teams entering a round leaves its last slot with a single team (a bye).
func MatchesPerRound(teamCount int) []int {
	var rounds []int
	remaining := teamCount
	for remaining > 1 {
		matches := (remaining + 1) / 2
		rounds = append(rounds, matches)
		remaining = matches
	}
	return rounds
}

func RoundsFor(teamCount int) int {
	return len(MatchesPerRound(teamCount))
}

// PlayedMatches is the number of non-bye matches an elimination bracket needs. Always teamCount-1.
func PlayedMatches(teamCount int) int {
	played := 0
	remaining := teamCount
	for remaining > 1 {
		played += remaining / 2
		remaining = (remaining + 1) / 2
	}
	return played
}

// NoTeam marks an empty side of a planned match.
const NoTeam = -1

// PlannedMatch is one slot of a generated schedule. TeamA/TeamB index into the seed-ordered team list
// (NoTeam when the side is filled later by advancement or never filled for a bye).
type PlannedMatch struct {
	Round    int
	Position int
	TeamA    int
	TeamB    int
	IsBye    bool
}

// SeedPairs pairs the seed-ordered teams of round one, highest against lowest. With an odd count the top
// seed sits out in the last slot.
func SeedPairs(teamCount int) [][2]int {
	if teamCount < 2 {
		return [][2]int{}
	}

	first := 0
	if teamCount%2 != 0 {
		first = 1
	}

	pairs := make([][2]int, 0, (teamCount+1)/2)
	for lo, hi := first, teamCount-1; lo < hi; lo, hi = lo+1, hi-1 {
		pairs = append(pairs, [2]int{lo, hi})
	}
	if first == 1 {
		pairs = append(pairs, [2]int{0, NoTeam})
	}
	return pairs
}

// EliminationLayout plans every slot of a single elimination tree, round one populated from SeedPairs.
func EliminationLayout(teamCount int) []PlannedMatch {
	perRound := MatchesPerRound(teamCount)
	if len(perRound) == 0 {
		return nil
	}

	var planned []PlannedMatch
	for i, pair := range SeedPairs(teamCount) {
		planned = append(planned, PlannedMatch{
			Round:    1,
			Position: i,
			TeamA:    pair[0],
			TeamB:    pair[1],
			IsBye:    pair[1] == NoTeam,
		})
	}

	for r := 1; r < len(perRound); r++ {
		feeders := perRound[r-1]
		for p := 0; p < perRound[r]; p++ {
			planned = append(planned, PlannedMatch{
				Round:    r + 1,
				Position: p,
				TeamA:    NoTeam,
				TeamB:    NoTeam,
				IsBye:    2*p+1 >= feeders,
			})
		}
	}
	return planned
}

// RoundRobinLayout schedules every pair exactly once using the circle method. Rounds are numbered from one;
// with an odd team count each round leaves one team idle and no match is planned for it.
func RoundRobinLayout(teamCount int) []PlannedMatch {
	if teamCount < 2 {
		return nil
	}

	slots := make([]int, teamCount)
	for i := range slots {
		slots[i] = i
	}
	if teamCount%2 != 0 {
		slots = append(slots, NoTeam)
	}

	n := len(slots)
	var planned []PlannedMatch
	for round := 1; round < n; round++ {
		position := 0
		for i := 0; i < n/2; i++ {
			a, b := slots[i], slots[n-1-i]
			if a == NoTeam || b == NoTeam {
				continue
			}
			planned = append(planned, PlannedMatch{Round: round, Position: position, TeamA: a, TeamB: b})
			position++
		}
		// Keep the first slot fixed and rotate the rest by one
		rotated := append([]int{slots[0], slots[n-1]}, slots[1:n-1]...)
		slots = rotated
	}
	return planned
}

// RoundRobinRounds is the number of rounds RoundRobinLayout produces.
func RoundRobinRounds(teamCount int) int {
	if teamCount < 2 {
		return 0
	}
	if teamCount%2 != 0 {
		return teamCount
	}
	return teamCount - 1
}
