// Package diff implements a line-oriented Myers differ.
//
// The output is not a patch: probing only needs a stable fingerprint of
// WHERE two renderings diverge, so each changed region is reduced to a
// positional descriptor like "-12,3 +12,5" (old start,removed new
// start,inserted; starts are 1-based). Identical inputs produce no
// descriptors, and the same change always produces the same descriptor,
// which is what lets the prober treat hunk strings as set members.
package diff

import (
	"fmt"
	"strings"
)

// maxEdits bounds the Myers search depth. Responses that differ by more
// than this many line edits are collapsed into a single coarse region;
// they are nowhere near "one parameter changed the page" territory anyway.
const maxEdits = 1024

type opKind int

const (
	opEqual opKind = iota
	opDelete
	opInsert
)

// Lines diffs two texts line by line and returns one descriptor per
// changed region.
func Lines(text, other string) []string {
	a := strings.Split(text, "\n")
	b := strings.Split(other, "\n")

	// common prefix/suffix are never part of a region, trim them so the
	// O(ND) search only sees the middle
	pre := 0
	for pre < len(a) && pre < len(b) && a[pre] == b[pre] {
		pre++
	}
	suf := 0
	for suf < len(a)-pre && suf < len(b)-pre && a[len(a)-1-suf] == b[len(b)-1-suf] {
		suf++
	}
	a = a[pre : len(a)-suf]
	b = b[pre : len(b)-suf]

	if len(a) == 0 && len(b) == 0 {
		return nil
	}

	ops, ok := myers(a, b)
	if !ok {
		// one coarse region covering the whole trimmed middle
		ops = make([]opKind, 0, len(a)+len(b))
		for range a {
			ops = append(ops, opDelete)
		}
		for range b {
			ops = append(ops, opInsert)
		}
	}

	return regions(ops, pre)
}

// myers runs the greedy O(ND) shortest-edit-script search and returns the
// edit script as a flat op list. ok is false when the edit distance
// exceeds maxEdits.
func myers(a, b []string) ([]opKind, bool) {
	n, m := len(a), len(b)

	limit := n + m
	if limit > maxEdits {
		limit = maxEdits
	}

	off := limit
	v := make([]int, 2*limit+2)
	var trace [][]int

	found := false
	var depth int

search:
	for d := 0; d <= limit; d++ {
		snapshot := make([]int, len(v))
		copy(snapshot, v)
		trace = append(trace, snapshot)

		for k := -d; k <= d; k += 2 {
			var x int
			if k == -d || (k != d && v[off+k-1] < v[off+k+1]) {
				x = v[off+k+1]
			} else {
				x = v[off+k-1] + 1
			}
			y := x - k

			for x < n && y < m && a[x] == b[y] {
				x++
				y++
			}

			v[off+k] = x

			if x >= n && y >= m {
				found = true
				depth = d
				break search
			}
		}
	}

	if !found {
		return nil, false
	}

	// backtrack from (n, m) through the stored contours
	var rev []opKind
	x, y := n, m
	for d := depth; d > 0; d-- {
		prev := trace[d]
		k := x - y

		var prevK int
		if k == -d || (k != d && prev[off+k-1] < prev[off+k+1]) {
			prevK = k + 1
		} else {
			prevK = k - 1
		}
		prevX := prev[off+prevK]
		prevY := prevX - prevK

		for x > prevX && y > prevY {
			rev = append(rev, opEqual)
			x--
			y--
		}
		if x == prevX {
			rev = append(rev, opInsert)
			y--
		} else {
			rev = append(rev, opDelete)
			x--
		}
	}
	for x > 0 {
		rev = append(rev, opEqual)
		x--
		y--
	}

	ops := make([]opKind, len(rev))
	for i, o := range rev {
		ops[len(rev)-1-i] = o
	}
	return ops, true
}

// regions collapses runs of non-equal ops into positional descriptors.
// offset is the number of trimmed common-prefix lines.
func regions(ops []opKind, offset int) []string {
	var res []string

	aLine, bLine := offset, offset
	i := 0
	for i < len(ops) {
		if ops[i] == opEqual {
			aLine++
			bLine++
			i++
			continue
		}

		removed, inserted := 0, 0
		for i < len(ops) && ops[i] != opEqual {
			switch ops[i] {
			case opDelete:
				removed++
			case opInsert:
				inserted++
			}
			i++
		}

		res = append(res, fmt.Sprintf("-%d,%d +%d,%d", aLine+1, removed, bLine+1, inserted))
		aLine += removed
		bLine += inserted
	}

	return res
}
