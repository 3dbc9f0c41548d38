package textutil

// CosineSimilarity returns the cosine of the angle between two fingerprints,
// or 0 when either is nil or empty.
func CosineSimilarity(a, b *Fingerprint) float64 {
	if a == nil || b == nil || a.norm == 0 || b.norm == 0 {
		return 0
	}
	var dot float64
	for token, count := range a.tokens {
		dot += count * b.tokens[token]
	}
	return dot / (a.norm * b.norm)
}

// ClosestMatch returns the tracked path most similar to target and its score.
// Candidates scoring below minScore are ignored and ties keep the earliest
// candidate. An empty string means nothing qualified.
func ClosestMatch(target string, candidates []string, minScore float64) (string, float64) {
	fp := NewFingerprint(target)
	if fp == nil {
		return "", 0
	}
	best := ""
	bestScore := 0.0
	for _, candidate := range candidates {
		score := CosineSimilarity(fp, NewFingerprint(candidate))
		if score < minScore || score <= bestScore {
			continue
		}
		best = candidate
		bestScore = score
	}
	return best, bestScore
}
