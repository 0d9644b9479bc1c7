package pipeline

import "strings"

// DefaultMaxYDiff is the default vertical tolerance between top edges.
const DefaultMaxYDiff = 20

// MergeConfig controls the overlap merge.
type MergeConfig struct {
	Enabled  bool
	MaxYDiff int
}

// Merge joins entries whose rectangles overlap on a shared line.
//
// Every entry is tried as a source, in list order, against every other entry,
// in list order. When other overlaps the source, the source absorbs it: the
// texts are appended space separated, the widths are added and other drops
// out of the result. Heights are never combined. Overlap is tested with the
// widths accumulated so far, so the outcome depends on list order.
//
// An entry that has already been absorbed still acts as a source. What it
// absorbs is attached to the group it was absorbed into, so no text is lost,
// and an absorbed entry is never absorbed a second time.
//
// Entries are told apart by position, not by value: two identical entries on
// the same spot are distinct detections and merge like any other pair.
//
// Merging runs in two passes: the first computes groups without touching the
// entries, the second emits one entry per group in the original order.
// Merge does not modify its input. When merging is disabled the input is
// returned as is.
func Merge(entries []Entry, cfg MergeConfig) []Entry {
	if !cfg.Enabled {
		return entries
	}

	n := len(entries)
	root := make([]int, n)
	width := make([]int, n)
	members := make([][]int, n)
	for i, e := range entries {
		root[i] = i
		width[i] = e.W
		members[i] = []int{i}
	}
	find := func(i int) int {
		for root[i] != i {
			i = root[i]
		}
		return i
	}

	for i := range entries {
		src := find(i)
		for j := range entries {
			if j == i || j == src || root[j] != j {
				continue
			}
			a := entries[i].Rect()
			a.W = width[i]
			b := entries[j].Rect()
			b.W = width[j]
			if !a.Overlaps(b, cfg.MaxYDiff) {
				continue
			}

			width[i] += width[j]
			if src != i {
				width[src] += width[j]
			}
			members[src] = append(members[src], members[j]...)
			members[j] = nil
			root[j] = src
		}
	}

	out := make([]Entry, 0, n)
	for i, e := range entries {
		if root[i] != i {
			continue
		}
		if len(members[i]) > 1 {
			messages := make([]string, len(members[i]))
			translations := make([]string, len(members[i]))
			for k, m := range members[i] {
				messages[k] = entries[m].Message
				translations[k] = entries[m].Translation
			}
			e.Message = strings.Join(messages, " ")
			e.Translation = strings.Join(translations, " ")
		}
		e.W = width[i]
		if e.Message == "" {
			continue
		}
		out = append(out, e)
	}
	return out
}
