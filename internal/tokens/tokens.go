// Package tokens provides cheap token-count heuristics for prompt sizing.
package tokens

import "math"

// EstimateText approximates tokens for a given text using a 4 characters per token heuristic.
func EstimateText(text string) int {
	if text == "" {
		return 0
	}
	runes := len([]rune(text))
	return int(math.Ceil(float64(runes) / 4.0))
}

// EstimateTexts sums the estimate over several strings.
func EstimateTexts(texts ...string) int {
	total := 0
	for _, t := range texts {
		total += EstimateText(t)
	}
	return total
}
