// File path: internal/diff/engine.go
package diff

import (
	"strings"

	"docverge/internal/document"
)

// Compare aligns the two line sequences and emits one record per changed
// line. It is pure and deterministic: no I/O, no clock, no randomness.
//
// Replaced blocks are paired index-by-index up to the shorter side's length as
// Modified records; the remainder of the longer side becomes pure Added or
// Removed records.
func Compare(source, target *document.NormalizedText, opts Options) (Summary, []ChangeRecord) {
	srcLines := lines(source)
	tgtLines := lines(target)
	contextLines := opts.ContextLines
	if contextLines <= 0 {
		contextLines = DefaultContextLines
	}

	matches := lcsPairs(srcLines, tgtLines)
	unchanged := len(matches)
	// Sentinel closes the trailing gap.
	matches = append(matches, pair{i: len(srcLines), j: len(tgtLines)})

	var records []ChangeRecord
	summary := Summary{SourceLines: len(srcLines), TargetLines: len(tgtLines)}
	prevI, prevJ := 0, 0
	for _, m := range matches {
		if m.i > prevI || m.j > prevJ {
			before := contextWindow(srcLines, prevI-contextLines, prevI)
			after := contextWindow(srcLines, m.i, m.i+contextLines)
			records = append(records, gapRecords(srcLines, tgtLines, prevI, m.i, prevJ, m.j, before, after, &summary)...)
		}
		prevI, prevJ = m.i+1, m.j+1
	}

	summary.SimilarityPercentage = similarityPercentage(unchanged, len(srcLines), len(tgtLines))
	return summary, records
}

// gapRecords emits the records for one unmatched region spanning source lines
// [i1,i2) and target lines [j1,j2).
func gapRecords(src, tgt []string, i1, i2, j1, j2 int, before, after string, summary *Summary) []ChangeRecord {
	srcGap := i2 - i1
	tgtGap := j2 - j1
	paired := srcGap
	if tgtGap < paired {
		paired = tgtGap
	}
	records := make([]ChangeRecord, 0, srcGap+tgtGap-paired)
	for k := 0; k < paired; k++ {
		rec := ChangeRecord{
			Kind:          KindModified,
			SourceText:    src[i1+k],
			TargetText:    tgt[j1+k],
			ContextBefore: before,
			ContextAfter:  after,
			SourceLine:    i1 + k + 1,
			TargetLine:    j1 + k + 1,
			Similarity:    ratio(src[i1+k], tgt[j1+k]),
		}
		rec.Proof = Proof(rec)
		records = append(records, rec)
		summary.Modified++
	}
	for k := paired; k < srcGap; k++ {
		rec := ChangeRecord{
			Kind:          KindRemoved,
			SourceText:    src[i1+k],
			ContextBefore: before,
			ContextAfter:  after,
			SourceLine:    i1 + k + 1,
		}
		rec.Proof = Proof(rec)
		records = append(records, rec)
		summary.Removed++
	}
	for k := paired; k < tgtGap; k++ {
		rec := ChangeRecord{
			Kind:          KindAdded,
			TargetText:    tgt[j1+k],
			ContextBefore: before,
			ContextAfter:  after,
			TargetLine:    j1 + k + 1,
		}
		rec.Proof = Proof(rec)
		records = append(records, rec)
		summary.Added++
	}
	return records
}

type pair struct {
	i, j int
}

// lcsPairs returns the matched line indices of a longest common subsequence,
// ascending in both coordinates.
func lcsPairs(a, b []string) []pair {
	m, n := len(a), len(b)
	if m == 0 || n == 0 {
		return nil
	}
	table := make([][]int, m+1)
	for i := range table {
		table[i] = make([]int, n+1)
	}
	for i := m - 1; i >= 0; i-- {
		for j := n - 1; j >= 0; j-- {
			if a[i] == b[j] {
				table[i][j] = table[i+1][j+1] + 1
			} else if table[i+1][j] >= table[i][j+1] {
				table[i][j] = table[i+1][j]
			} else {
				table[i][j] = table[i][j+1]
			}
		}
	}
	pairs := make([]pair, 0, table[0][0])
	i, j := 0, 0
	for i < m && j < n {
		switch {
		case a[i] == b[j]:
			pairs = append(pairs, pair{i: i, j: j})
			i++
			j++
		case table[i+1][j] >= table[i][j+1]:
			i++
		default:
			j++
		}
	}
	return pairs
}

// ratio is a normalized edit-distance similarity in [0,1]; 1.0 means the
// spans are identical.
func ratio(a, b string) float64 {
	if a == b {
		return 1
	}
	ra, rb := []rune(a), []rune(b)
	longest := len(ra)
	if len(rb) > longest {
		longest = len(rb)
	}
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein(ra, rb))/float64(longest)
}

func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min3(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

func contextWindow(src []string, start, end int) string {
	if start < 0 {
		start = 0
	}
	if end > len(src) {
		end = len(src)
	}
	if start >= end {
		return ""
	}
	return strings.Join(src[start:end], "\n")
}

func similarityPercentage(unchanged, srcLines, tgtLines int) float64 {
	longest := srcLines
	if tgtLines > longest {
		longest = tgtLines
	}
	if longest == 0 {
		return 100
	}
	pct := float64(unchanged) / float64(longest) * 100
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

func lines(text *document.NormalizedText) []string {
	if text == nil {
		return nil
	}
	return text.Lines
}
