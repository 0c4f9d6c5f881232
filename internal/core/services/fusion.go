package services

import "sort"

// scoredSection holds an intermediate ranking entry before hydration.
type scoredSection struct {
	id    string
	score float64
}

// sortScored orders by score descending, ties by section ID ascending,
// so every ranking is deterministic.
func sortScored(list []scoredSection) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].score != list[j].score {
			return list[i].score > list[j].score
		}
		return list[i].id < list[j].id
	})
}

// reciprocalRankFusion merges ranked lists: score = sum of 1/(k+rank) over
// every list containing the section, with 1-based ranks. k is the constant
// (typically 60) that keeps top ranks from dominating.
func reciprocalRankFusion(k int, lists ...[]scoredSection) []scoredSection {
	scores := make(map[string]float64)
	var order []string

	for _, list := range lists {
		for rank, entry := range list {
			if _, ok := scores[entry.id]; !ok {
				order = append(order, entry.id)
			}
			scores[entry.id] += 1.0 / float64(k+rank+1)
		}
	}

	results := make([]scoredSection, 0, len(order))
	for _, id := range order {
		results = append(results, scoredSection{id: id, score: scores[id]})
	}
	sortScored(results)
	return results
}
