package domain

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

// AnswerKind tags which member of the Answer union is populated.
type AnswerKind string

const (
	AnswerIndex    AnswerKind = "index"
	AnswerIndexSet AnswerKind = "indices"
	AnswerText     AnswerKind = "text"
)

// Answer is a tagged union over the answer shapes the evaluator understands.
// A zero Answer (empty Kind) means the payload did not match any shape the
// question type accepts; grading degrades deterministically from there.
type Answer struct {
	Kind    AnswerKind `json:"kind,omitempty"`
	Index   int        `json:"index,omitempty"`
	Indices []int      `json:"indices,omitempty"`
	Text    string     `json:"text,omitempty"`
}

// ParseAnswer decodes a raw client payload into the shape the question type
// expects. It never fails: anything unrecognized yields a zero Answer.
func ParseAnswer(t QuestionType, raw json.RawMessage) Answer {
	switch t {
	case SingleSelect, TrueFalse:
		var idx int
		if err := json.Unmarshal(raw, &idx); err == nil {
			return Answer{Kind: AnswerIndex, Index: idx}
		}
		// Legacy clients submit the option text instead of its index.
		var text string
		if err := json.Unmarshal(raw, &text); err == nil {
			return Answer{Kind: AnswerText, Text: text}
		}
	case MultiSelect:
		var indices []int
		if err := json.Unmarshal(raw, &indices); err == nil {
			return Answer{Kind: AnswerIndexSet, Indices: indices}
		}
	case ShortText, LongText:
		var text string
		if err := json.Unmarshal(raw, &text); err == nil {
			return Answer{Kind: AnswerText, Text: text}
		}
	}
	return Answer{}
}

// Label renders the answer as a stable aggregation key for result
// distributions: the index as a string, a sorted comma-joined index list, or
// the normalized text.
func (a Answer) Label() string {
	switch a.Kind {
	case AnswerIndex:
		return strconv.Itoa(a.Index)
	case AnswerIndexSet:
		set := dedupeSorted(a.Indices)
		parts := make([]string, len(set))
		for i, v := range set {
			parts[i] = strconv.Itoa(v)
		}
		return strings.Join(parts, ",")
	case AnswerText:
		return strings.ToLower(strings.TrimSpace(a.Text))
	}
	return ""
}

func dedupeSorted(indices []int) []int {
	seen := make(map[int]struct{}, len(indices))
	out := make([]int, 0, len(indices))
	for _, v := range indices {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}
