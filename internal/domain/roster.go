package domain

import "sort"

// FoldRoster recomputes the student-only headcount and the deduplicated,
// sorted nickname list from the participant registry. State store
// implementations call this inside the same atomic operation that mutates the
// registry, so readers never observe count and names out of sync. A user
// holding several connections under one nickname counts once; lecturers are
// never counted.
func FoldRoster(st *SessionState, participants []Participant) {
	seen := make(map[string]struct{})
	names := make([]string, 0, len(participants))
	for _, p := range participants {
		if p.Role != RoleStudent || p.Nickname == "" {
			continue
		}
		if _, ok := seen[p.Nickname]; ok {
			continue
		}
		seen[p.Nickname] = struct{}{}
		names = append(names, p.Nickname)
	}
	sort.Strings(names)
	st.StudentNames = names
	st.StudentCount = len(names)
}
