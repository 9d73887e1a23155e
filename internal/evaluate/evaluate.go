// Package evaluate grades submitted answers against a question's key.
//
// Evaluate is total: every malformed input degrades to an incorrect or
// unknown verdict, never an error. Client UIs render correct/incorrect
// highlighting from this value alone, so the degradation rules here are part
// of the visible contract.
package evaluate

import (
	"strings"

	"livequiz-service/internal/domain"
)

// Evaluate returns the tri-state verdict for a submitted answer.
func Evaluate(t domain.QuestionType, submitted domain.Answer, key domain.AnswerKey) domain.Verdict {
	switch t {
	case domain.SingleSelect, domain.TrueFalse:
		return evaluateSingle(submitted, key)
	case domain.MultiSelect:
		return evaluateMulti(submitted, key)
	case domain.ShortText, domain.LongText:
		return evaluateText(submitted, key)
	default:
		return domain.VerdictUnknown
	}
}

func evaluateSingle(submitted domain.Answer, key domain.AnswerKey) domain.Verdict {
	switch submitted.Kind {
	case domain.AnswerIndex:
		if key.Index != nil && submitted.Index == *key.Index {
			return domain.VerdictCorrect
		}
	case domain.AnswerText:
		// Legacy text submissions match the key text exactly.
		if key.Text != "" && submitted.Text == key.Text {
			return domain.VerdictCorrect
		}
	}
	return domain.VerdictIncorrect
}

func evaluateMulti(submitted domain.Answer, key domain.AnswerKey) domain.Verdict {
	if submitted.Kind != domain.AnswerIndexSet || key.Indices == nil {
		return domain.VerdictIncorrect
	}
	if equalIndexSets(submitted.Indices, key.Indices) {
		return domain.VerdictCorrect
	}
	return domain.VerdictIncorrect
}

func evaluateText(submitted domain.Answer, key domain.AnswerKey) domain.Verdict {
	accepted := key.Accepted
	if len(accepted) == 0 && key.Text != "" {
		accepted = []string{key.Text}
	}
	if len(accepted) == 0 {
		// No comparable key; flag for manual review rather than auto-grade.
		return domain.VerdictUnknown
	}
	if submitted.Kind != domain.AnswerText {
		return domain.VerdictIncorrect
	}
	got := normalize(submitted.Text)
	for _, want := range accepted {
		if got == normalize(want) {
			return domain.VerdictCorrect
		}
	}
	return domain.VerdictIncorrect
}

// equalIndexSets compares the two slices as sets: order-independent,
// duplicates ignored.
func equalIndexSets(a, b []int) bool {
	as := toSet(a)
	bs := toSet(b)
	if len(as) != len(bs) {
		return false
	}
	for v := range as {
		if _, ok := bs[v]; !ok {
			return false
		}
	}
	return true
}

func toSet(indices []int) map[int]struct{} {
	set := make(map[int]struct{}, len(indices))
	for _, v := range indices {
		set[v] = struct{}{}
	}
	return set
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
