package comment

import "github.com/mx-space/mdx-core/internal/models"

func listKey(f Filter) string {
	if f.ArticleUID != "" {
		return "uid:" + f.ArticleUID
	}
	return "path:" + f.ArticlePath
}

// articleKeys returns both list keys a document can be cached under.
func articleKeys(articles []Filter) []string {
	keys := make([]string, 0, 2*len(articles))
	for _, a := range articles {
		if a.ArticleUID != "" {
			keys = append(keys, "uid:"+a.ArticleUID)
		}
		if a.ArticlePath != "" {
			keys = append(keys, "path:"+a.ArticlePath)
		}
	}
	return keys
}

// aggregateVotes sums events per comment, keeping first-seen order.
func aggregateVotes(events []VoteEvent) []VoteDelta {
	index := make(map[int64]int, len(events))
	var out []VoteDelta
	for _, ev := range events {
		i, ok := index[ev.ID]
		if !ok {
			i = len(out)
			index[ev.ID] = i
			out = append(out, VoteDelta{ID: ev.ID})
		}
		if ev.Direction == models.VoteUp {
			out[i].Up++
		} else {
			out[i].Down++
		}
	}
	return out
}

// buildTree nests replies under their parents. Comments whose parent is not
// in items become roots. Input order is kept at every level.
func buildTree(items []View) []*Node {
	nodes := make(map[int64]*Node, len(items))
	for _, v := range items {
		nodes[v.ID] = &Node{View: v, Replies: []*Node{}}
	}
	roots := make([]*Node, 0, len(items))
	for _, v := range items {
		n := nodes[v.ID]
		if v.ParentID != nil && *v.ParentID != v.ID {
			if parent, ok := nodes[*v.ParentID]; ok {
				parent.Replies = append(parent.Replies, n)
				continue
			}
		}
		roots = append(roots, n)
	}
	return roots
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
