// Package resolver implements the text-similarity algorithm that picks a
// market's winning submission: classic dynamic-programming edit distance.
package resolver

// Distance returns the Levenshtein edit distance between a and b: the minimum
// number of single-character insertions, deletions, and substitutions needed
// to transform a into b. It operates on runes and builds the full
// (len(a)+1) x (len(b)+1) table. Callers bound both inputs by
// domain.MaxTextLen, so the table size and therefore the cost of every call
// is capped.
func Distance(a, b string) int {
	ra := []rune(a)
	rb := []rune(b)

	rows := len(ra) + 1
	cols := len(rb) + 1

	table := make([][]int, rows)
	for i := range table {
		table[i] = make([]int, cols)
		table[i][0] = i
	}
	for j := 1; j < cols; j++ {
		table[0][j] = j
	}

	for i := 1; i < rows; i++ {
		for j := 1; j < cols; j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}

			d := table[i-1][j-1] + cost // substitution (or match)
			if del := table[i-1][j] + 1; del < d {
				d = del
			}
			if ins := table[i][j-1] + 1; ins < d {
				d = ins
			}
			table[i][j] = d
		}
	}

	return table[rows-1][cols-1]
}
