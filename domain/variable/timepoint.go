package variable

import (
	"strings"
	"unicode"
)

// TimepointOrder orders timepoint labels: explicitly ranked labels first, the
// rest in natural order, so "week2" sorts before "week10".
type TimepointOrder struct {
	rank map[string]int
}

// NewTimepointOrder builds an ordering from an optional explicit sequence.
func NewTimepointOrder(explicit []string) TimepointOrder {
	rank := make(map[string]int, len(explicit))
	for i, label := range explicit {
		if _, ok := rank[label]; !ok {
			rank[label] = i
		}
	}
	return TimepointOrder{rank: rank}
}

// Less reports whether label a precedes label b.
func (o TimepointOrder) Less(a, b string) bool {
	ra, okA := o.rank[a]
	rb, okB := o.rank[b]
	switch {
	case okA && okB:
		return ra < rb
	case okA:
		return true
	case okB:
		return false
	}
	return naturalLess(a, b)
}

// naturalLess compares strings treating embedded digit runs as numbers.
func naturalLess(a, b string) bool {
	ar, br := []rune(a), []rune(b)
	i, j := 0, 0
	for i < len(ar) && j < len(br) {
		if unicode.IsDigit(ar[i]) && unicode.IsDigit(br[j]) {
			si := i
			for i < len(ar) && unicode.IsDigit(ar[i]) {
				i++
			}
			sj := j
			for j < len(br) && unicode.IsDigit(br[j]) {
				j++
			}
			na := strings.TrimLeft(string(ar[si:i]), "0")
			nb := strings.TrimLeft(string(br[sj:j]), "0")
			if len(na) != len(nb) {
				return len(na) < len(nb)
			}
			if na != nb {
				return na < nb
			}
			continue
		}
		if ar[i] != br[j] {
			return ar[i] < br[j]
		}
		i++
		j++
	}
	if len(ar)-i != len(br)-j {
		return len(ar)-i < len(br)-j
	}
	return a < b
}
