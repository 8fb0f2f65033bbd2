package classifier

// Similarity scores how alike two tokens are, from 0 (nothing shared) to 1
// (identical).
type Similarity interface {
	Similarity(a, b string) float64
}

// SimilarityFunc adapts a plain function to the Similarity interface.
type SimilarityFunc func(a, b string) float64

// Similarity calls f(a, b).
func (f SimilarityFunc) Similarity(a, b string) float64 { return f(a, b) }

// JaroWinkler is the Jaro similarity with a bonus for a shared prefix. The
// bonus only applies once the plain Jaro score reaches BoostThreshold.
type JaroWinkler struct {
	PrefixScale    float64
	MaxPrefix      int
	BoostThreshold float64
}

// DefaultJaroWinkler uses the customary Winkler parameters.
var DefaultJaroWinkler = JaroWinkler{PrefixScale: 0.1, MaxPrefix: 4, BoostThreshold: 0.7}

// Similarity implements Similarity.
func (jw JaroWinkler) Similarity(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	sim := jaro(ra, rb)
	if sim < jw.BoostThreshold {
		return sim
	}

	prefix := 0
	for prefix < len(ra) && prefix < len(rb) && prefix < jw.MaxPrefix && ra[prefix] == rb[prefix] {
		prefix++
	}
	return sim + float64(prefix)*jw.PrefixScale*(1-sim)
}

func jaro(a, b []rune) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	window := max(len(a), len(b))/2 - 1
	if window < 0 {
		window = 0
	}

	matchedA := make([]bool, len(a))
	matchedB := make([]bool, len(b))
	matches := 0
	for i := range a {
		lo := max(0, i-window)
		hi := min(len(b)-1, i+window)
		for j := lo; j <= hi; j++ {
			if matchedB[j] || a[i] != b[j] {
				continue
			}
			matchedA[i], matchedB[j] = true, true
			matches++
			break
		}
	}
	if matches == 0 {
		return 0
	}

	transpositions := 0
	j := 0
	for i := range a {
		if !matchedA[i] {
			continue
		}
		for !matchedB[j] {
			j++
		}
		if a[i] != b[j] {
			transpositions++
		}
		j++
	}

	m := float64(matches)
	return (m/float64(len(a)) + m/float64(len(b)) + (m-float64(transpositions)/2)/m) / 3
}

// EditRatio is 1 minus the Levenshtein distance divided by the longer
// token's length.
var EditRatio = SimilarityFunc(func(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	longest := max(len(ra), len(rb))
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein(ra, rb))/float64(longest)
})

func levenshtein(a, b []rune) int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}
