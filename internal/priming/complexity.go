package priming

import (
	"github.com/fyrsmithlabs/swarmd/internal/store"
)

// Tier classifies task complexity for prompt sizing and pheromone retrieval.
type Tier string

const (
	TierLow    Tier = "low"
	TierMedium Tier = "medium"
	TierHigh   Tier = "high"
)

// Complexity keyword buckets. A single hit casts the bucket's vote.
var (
	highComplexityWords = []string{
		"distributed", "concurrent", "consensus", "migration", "refactor",
		"architecture", "scalable", "transaction", "optimization", "security",
		"encryption", "realtime", "protocol",
	}
	mediumComplexityWords = []string{
		"integration", "api", "endpoint", "database", "schema", "validation",
		"parser", "workflow", "pipeline", "cache",
	}
	lowComplexityWords = []string{
		"rename", "typo", "format", "comment", "readme", "cleanup", "bump",
		"config", "logging", "label",
	}
)

// ClassifyComplexity derives a tier from three votes: keyword-bucket match,
// text length and task priority. Plurality decides; ties resolve
// high > medium > low.
func ClassifyComplexity(task store.Task) Tier {
	votes := map[Tier]int{}

	votes[keywordVote(task)]++
	votes[lengthVote(task)]++
	votes[priorityVote(task.Priority)]++

	best := TierLow
	bestCount := -1
	// Iterate in tie-break order so equal counts keep the higher tier.
	for _, tier := range []Tier{TierHigh, TierMedium, TierLow} {
		if votes[tier] > bestCount {
			best = tier
			bestCount = votes[tier]
		}
	}
	return best
}

func keywordVote(task store.Task) Tier {
	keywords := ExtractKeywords(task.Title + " " + task.Description)
	joined := ""
	for _, kw := range keywords {
		joined += kw + " "
	}
	for _, w := range highComplexityWords {
		if matchCount(joined, []string{w}) > 0 {
			return TierHigh
		}
	}
	for _, w := range mediumComplexityWords {
		if matchCount(joined, []string{w}) > 0 {
			return TierMedium
		}
	}
	for _, w := range lowComplexityWords {
		if matchCount(joined, []string{w}) > 0 {
			return TierLow
		}
	}
	return TierLow
}

func lengthVote(task store.Task) Tier {
	n := len(task.Title) + len(task.Description)
	switch {
	case n > 500:
		return TierHigh
	case n > 200:
		return TierMedium
	default:
		return TierLow
	}
}

func priorityVote(p store.Priority) Tier {
	switch p {
	case store.PriorityHigh:
		return TierHigh
	case store.PriorityMedium:
		return TierMedium
	default:
		return TierLow
	}
}
