package quiz

import (
	"math/rand/v2"

	"github.com/p-n-ai/study-centre/internal/catalog"
)

// SelectBalanced picks n questions from bank spread evenly across
// categories. Each category gets n/len(categories) questions, the remainder
// going to the earliest categories; a category that runs short is topped up
// from the rest of the bank. The result is shuffled.
func SelectBalanced(bank []catalog.Question, n int, categories []string, rng *rand.Rand) []catalog.Question {
	if n > len(bank) {
		n = len(bank)
	}
	if n <= 0 {
		return nil
	}

	pool := append([]catalog.Question{}, bank...)
	rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	if len(categories) == 0 {
		return pool[:n]
	}

	groups := make(map[string][]catalog.Question, len(categories))
	var rest []catalog.Question
	inCategories := make(map[string]bool, len(categories))
	for _, c := range categories {
		inCategories[c] = true
	}
	for _, q := range pool {
		if inCategories[q.Category] {
			groups[q.Category] = append(groups[q.Category], q)
		} else {
			rest = append(rest, q)
		}
	}

	out := make([]catalog.Question, 0, n)
	base, extra := n/len(categories), n%len(categories)
	for i, c := range categories {
		quota := base
		if i < extra {
			quota++
		}
		g := groups[c]
		take := min(quota, len(g))
		out = append(out, g[:take]...)
		rest = append(rest, g[take:]...)
	}

	if short := n - len(out); short > 0 {
		rng.Shuffle(len(rest), func(i, j int) { rest[i], rest[j] = rest[j], rest[i] })
		out = append(out, rest[:short]...)
	}
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}
