package snapshot

import (
	"sort"

	"lexshelf/api/internal/library"
)

// Change describes how one node differs between two snapshots.
type Change struct {
	ID     string       `json:"id"`
	Kind   library.Kind `json:"kind"`
	Name   string       `json:"name"`
	Change string       `json:"change"` // added, removed or modified
}

type nodeState struct {
	kind    library.Kind
	name    string
	content string
	icon    string
	files   int
}

func index(doc library.Document) map[string]nodeState {
	out := make(map[string]nodeState)
	library.New(&doc).Walk(func(n library.Node) bool {
		state := nodeState{kind: n.Kind, name: n.Name(), content: n.Content(), files: len(n.Attachments())}
		if n.Kind == library.KindCategory {
			state.icon = n.Category.Icon
		}
		out[n.ID] = state
		return true
	})
	return out
}

// Diff lists the nodes added, removed or modified going from one tree to the
// other, ordered by id.
func Diff(from, to library.Document) []Change {
	before, after := index(from), index(to)
	changes := make([]Change, 0)
	for id, old := range before {
		cur, ok := after[id]
		switch {
		case !ok:
			changes = append(changes, Change{ID: id, Kind: old.kind, Name: old.name, Change: "removed"})
		case cur != old:
			changes = append(changes, Change{ID: id, Kind: cur.kind, Name: cur.name, Change: "modified"})
		}
	}
	for id, cur := range after {
		if _, ok := before[id]; !ok {
			changes = append(changes, Change{ID: id, Kind: cur.kind, Name: cur.name, Change: "added"})
		}
	}
	sort.SliceStable(changes, func(i, j int) bool {
		return changes[i].ID < changes[j].ID
	})
	return changes
}
