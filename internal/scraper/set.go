package scraper

import "github.com/ibeckermayer/xarchive/internal/types"

// postSet keeps posts keyed by id in first-discovery order.
type postSet struct {
	index map[string]struct{}
	posts []types.Post
}

func newPostSet() *postSet {
	return &postSet{index: make(map[string]struct{})}
}

// Has reports whether a post with id was already collected.
func (s *postSet) Has(id string) bool {
	_, ok := s.index[id]
	return ok
}

// Add inserts p unless its id is already present. Returns true on insertion.
func (s *postSet) Add(p types.Post) bool {
	if s.Has(p.ID) {
		return false
	}
	s.index[p.ID] = struct{}{}
	s.posts = append(s.posts, p)
	return true
}

func (s *postSet) Len() int { return len(s.posts) }

// Posts returns a copy of the collected posts in insertion order.
func (s *postSet) Posts() []types.Post {
	out := make([]types.Post, len(s.posts))
	copy(out, s.posts)
	return out
}
