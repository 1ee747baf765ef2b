package zs

import (
	"math"
	"strconv"
	"strings"

	"github.com/hazyhaar/domlocator/dom"
	"golang.org/x/net/html"
)

// listIndex maps a child of a path element to the id of the sibling list it
// belongs to. Ids start at 1.
type listIndex map[*html.Node]int

const listHashes = 4

// groups buckets elements by hash, keeping first-seen order of hashes.
type groups struct {
	keys    []string
	members map[string][]*html.Node
}

func (g *groups) add(key string, n *html.Node) {
	if g.members == nil {
		g.members = make(map[string][]*html.Node)
	}
	if _, ok := g.members[key]; !ok {
		g.keys = append(g.keys, key)
	}
	g.members[key] = append(g.members[key], n)
}

// buildLists finds groups of look-alike children under every path element.
// Children are compared by the tag sequence of their subtree and by several
// buckets of their size and position; each child joins at most one list.
func (s *session) buildLists(root *html.Node, path []*html.Node) listIndex {
	onPath := make(map[*html.Node]bool, len(path))
	for _, n := range path {
		onPath[n] = true
	}
	index := make(listIndex)
	next := 1

	mark := func(g *groups, used map[*html.Node]bool) {
		for _, key := range g.keys {
			var list []*html.Node
			for _, n := range g.members[key] {
				if !used[n] {
					list = append(list, n)
				}
			}
			if len(list) < 2 {
				continue
			}
			for _, n := range list {
				index[n] = next
				used[n] = true
			}
			next++
		}
	}

	var visit func(n *html.Node, hash bool) (int, []string)
	visit = func(n *html.Node, hash bool) (int, []string) {
		consider := onPath[n]
		size := 1
		var maps [listHashes]groups
		var structure []string
		if hash {
			structure = append(structure, dom.NodeName(n))
		}
		for _, c := range dom.Children(n) {
			childSize, hashes := visit(c, consider)
			size += childSize
			if consider {
				for i, h := range hashes {
					if h != "" {
						maps[i].add(h, c)
					}
				}
			}
			if hash {
				structure = append(structure, dom.NodeName(c))
			}
		}
		if consider {
			used := make(map[*html.Node]bool)
			for i := range maps {
				mark(&maps[i], used)
			}
		}
		if !hash {
			return size, nil
		}

		box := s.elementMetrics(n).layout.Box
		name := dom.NodeName(n)
		third := strconv.Itoa(size / 3)
		h, w := jsInt(box.Height), jsInt(box.Width)
		hashes := make([]string, 0, listHashes)
		if len(structure) >= 4 || size >= 10 {
			hashes = append(hashes, strings.Join(structure, ""))
		} else {
			hashes = append(hashes, "")
		}
		hashes = append(hashes, join(name, third, h, w))
		if size <= 5 {
			hashes = append(hashes,
				join(name, third, w, jsInt(box.Left)),
				join(name, third, h, jsInt(box.Top)))
		} else {
			hashes = append(hashes,
				join(name, third, w, jsInt(box.Left), jsInt(2*math.Log(box.Height))),
				join(name, third, h, jsInt(box.Top), jsInt(2*math.Log(box.Width))))
		}
		return size, hashes
	}
	visit(root, false)
	return index
}

func join(name, third string, nums ...int) string {
	var b strings.Builder
	b.WriteString(name)
	b.WriteByte(',')
	b.WriteString(third)
	for _, n := range nums {
		b.WriteByte(',')
		b.WriteString(strconv.Itoa(n))
	}
	return b.String()
}
