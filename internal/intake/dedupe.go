package intake

import "strings"

// similarityThreshold is the shared-word ratio above which a candidate reply
// counts as a near-duplicate of a recently sent one.
const similarityThreshold = 0.7

// minSimilarityWordLen filters out short filler words before comparing.
const minSimilarityWordLen = 4

// Similarity computes the shared-word ratio between two texts: the fraction
// of the candidate's qualifying words (longer than 3 characters) that also
// appear in the other text. Pure and deterministic.
func Similarity(candidate, previous string) float64 {
	candidateWords := significantWords(candidate)
	if len(candidateWords) == 0 {
		return 0
	}
	previousSet := make(map[string]struct{})
	for _, word := range significantWords(previous) {
		previousSet[word] = struct{}{}
	}
	shared := 0
	for _, word := range candidateWords {
		if _, ok := previousSet[word]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(candidateWords))
}

// Dedupe checks the candidate against the recent reply history and, when it
// is a near-duplicate, substitutes the first alternative phrasing that is
// not. When every alternative also collides, the candidate goes out as-is;
// repetition is a quality concern, not a correctness one.
func Dedupe(candidate string, recent []string, alternatives []string) string {
	if !isRepetitive(candidate, recent) {
		return candidate
	}
	for _, alt := range alternatives {
		if alt != candidate && !isRepetitive(alt, recent) {
			return alt
		}
	}
	return candidate
}

func isRepetitive(candidate string, recent []string) bool {
	for _, previous := range recent {
		if Similarity(candidate, previous) > similarityThreshold {
			return true
		}
	}
	return false
}

func significantWords(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	words := make([]string, 0, len(fields))
	for _, field := range fields {
		word := strings.Trim(field, ".,!?;:()\"'")
		if len([]rune(word)) >= minSimilarityWordLen {
			words = append(words, word)
		}
	}
	return words
}
