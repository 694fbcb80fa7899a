// Package diff aligns two texts line by line using a longest common
// subsequence, for presenting recipe changes to a reviewer.
package diff

import "strings"

// Op tags a line of a diff.
type Op byte

const (
	Equal  Op = ' '
	Insert Op = '+'
	Delete Op = '-'
)

// Line is one line of a diff.
type Line struct {
	Op   Op
	Text string
}

func (l Line) String() string {
	return string(l.Op) + " " + l.Text
}

// SplitLines splits text on newlines, dropping carriage returns. A trailing
// newline does not produce an empty last line.
func SplitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r", "")
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// Lines returns the line diff turning oldText into newText. Where several
// alignments are equally short, deletions are listed before insertions.
func Lines(oldText, newText string) []Line {
	return Compute(SplitLines(oldText), SplitLines(newText))
}

// Compute diffs two line slices.
func Compute(a, b []string) []Line {
	m, n := len(a), len(b)

	// lcs[i][j] is the LCS length of a[:i] and b[:j]
	lcs := make([][]int, m+1)
	for i := range lcs {
		lcs[i] = make([]int, n+1)
	}
	for i := 1; i <= m; i++ {
		for j := 1; j <= n; j++ {
			if a[i-1] == b[j-1] {
				lcs[i][j] = lcs[i-1][j-1] + 1
			} else {
				lcs[i][j] = max(lcs[i-1][j], lcs[i][j-1])
			}
		}
	}

	out := make([]Line, 0, m+n-lcs[m][n])
	i, j := m, n
	for i > 0 || j > 0 {
		switch {
		case i > 0 && j > 0 && a[i-1] == b[j-1]:
			out = append(out, Line{Equal, a[i-1]})
			i--
			j--
		case j > 0 && (i == 0 || lcs[i][j-1] >= lcs[i-1][j]):
			out = append(out, Line{Insert, b[j-1]})
			j--
		default:
			out = append(out, Line{Delete, a[i-1]})
			i--
		}
	}

	for l, r := 0, len(out)-1; l < r; l, r = l+1, r-1 {
		out[l], out[r] = out[r], out[l]
	}
	return out
}

// Stats counts inserted and deleted lines.
func Stats(lines []Line) (inserted, deleted int) {
	for _, l := range lines {
		switch l.Op {
		case Insert:
			inserted++
		case Delete:
			deleted++
		}
	}
	return inserted, deleted
}

// Changed reports whether the diff contains any insertion or deletion.
func Changed(lines []Line) bool {
	ins, del := Stats(lines)
	return ins+del > 0
}
