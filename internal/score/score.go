// Package score computes time-weighted points and rankings.
package score

import (
	"math"
	"sort"

	"livequiz-service/internal/domain"
)

// Points awards 0 for an incorrect answer and 1000 plus a speed bonus for a
// correct one. The bonus decays linearly and reaches zero at 10s, so being
// right always outweighs being fast.
func Points(correct bool, elapsedMs int64) int {
	if !correct {
		return 0
	}
	bonus := 1000 - int(math.Round(float64(elapsedMs)/10))
	if bonus < 0 {
		bonus = 0
	}
	return 1000 + bonus
}

// Rank orders entries by score descending and assigns 1-based ranks.
// Tie-break: lower average response time wins, then nickname ascending, so
// rank order is stable across broadcasts.
func Rank(entries []domain.RankingEntry) []domain.RankingEntry {
	ranked := make([]domain.RankingEntry, len(entries))
	copy(ranked, entries)
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		if ranked[i].AvgElapsedMs != ranked[j].AvgElapsedMs {
			return ranked[i].AvgElapsedMs < ranked[j].AvgElapsedMs
		}
		return ranked[i].Nickname < ranked[j].Nickname
	})
	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked
}

// Leaderboard folds durable responses into ranked per-identity entries.
// Unknown verdicts contribute neither points nor correct counts.
func Leaderboard(responses []domain.Response) []domain.RankingEntry {
	type acc struct {
		entry     domain.RankingEntry
		elapsedMs int64
		count     int64
	}
	byIdentity := make(map[string]*acc)
	order := make([]string, 0)

	for _, r := range responses {
		id := r.Identity()
		if id == "" {
			continue
		}
		a, ok := byIdentity[id]
		if !ok {
			a = &acc{entry: domain.RankingEntry{Identity: id, Nickname: r.Nickname}}
			byIdentity[id] = a
			order = append(order, id)
		}
		correct := r.Verdict == domain.VerdictCorrect
		if correct {
			a.entry.CorrectCount++
		}
		a.entry.Score += Points(correct, r.ElapsedMs)
		a.elapsedMs += r.ElapsedMs
		a.count++
	}

	entries := make([]domain.RankingEntry, 0, len(order))
	for _, id := range order {
		a := byIdentity[id]
		if a.count > 0 {
			a.entry.AvgElapsedMs = a.elapsedMs / a.count
		}
		entries = append(entries, a.entry)
	}
	return Rank(entries)
}
