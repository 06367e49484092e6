package simplegit

import (
	"container/heap"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
	"github.com/gobwas/glob"

	"github.com/jmgilman/go/simplegit/internal/handle"
)

// Sort selects the order in which a RevWalk yields commits. Flags combine
// with bitwise or.
type Sort uint

const (
	// SortNone yields commits newest first by committer time, each parent
	// after the first of its children to be visited.
	SortNone Sort = 0
	// SortTopological yields children before their parents.
	SortTopological Sort = 1 << 0
	// SortTime yields newer commits first, by committer time.
	SortTime Sort = 1 << 1
	// SortReverse reverses whatever order the other flags produce.
	SortReverse Sort = 1 << 2
)

type walkState struct {
	mu          sync.Mutex
	pushed      []plumbing.Hash
	hidden      []plumbing.Hash
	sorting     Sort
	firstParent bool

	// order is computed on the first call to Next.
	order   []plumbing.Hash
	pos     int
	walking bool
}

func (s *walkState) reset() {
	s.pushed = nil
	s.hidden = nil
	s.order = nil
	s.pos = 0
	s.walking = false
}

// RevWalk traverses the commit graph. Tips are pushed, boundaries are
// hidden, and commits are produced by Next. Once iteration completes the
// walk resets itself and can be configured again.
type RevWalk struct {
	ref  *handle.Ref[*walkState]
	core *repoCore
	err  error
}

// RevWalk creates a walker over the repository's commits.
func (r *Repository) RevWalk() (*RevWalk, error) {
	var core *repoCore
	ref, err := handle.Derive(r.ref, func(c *repoCore) (*walkState, error) {
		core = c
		return &walkState{}, nil
	})
	if err != nil {
		return nil, classifyError(err)
	}

	w := &RevWalk{ref: ref, core: core}
	handle.Track(w, ref)
	return w, nil
}

func (w *RevWalk) state() (*walkState, error) {
	s, err := w.ref.Get()
	if err != nil {
		return nil, wrapError(err, "revwalk is not available")
	}
	return s, nil
}

// Close drops the walker's hold on the repository.
func (w *RevWalk) Close() error {
	return w.ref.Close()
}

// Push adds a commit to start from. Tags are peeled to the commit they name.
func (w *RevWalk) Push(id plumbing.Hash) error {
	return w.mark(id, false)
}

// Hide excludes a commit and all of its ancestors from the walk.
func (w *RevWalk) Hide(id plumbing.Hash) error {
	return w.mark(id, true)
}

// PushHead pushes the commit HEAD resolves to.
func (w *RevWalk) PushHead() error {
	return w.markRef(plumbing.HEAD.String(), false)
}

// HideHead hides the commit HEAD resolves to.
func (w *RevWalk) HideHead() error {
	return w.markRef(plumbing.HEAD.String(), true)
}

// PushRef pushes the commit a reference resolves to.
func (w *RevWalk) PushRef(name string) error {
	return w.markRef(name, false)
}

// HideRef hides the commit a reference resolves to.
func (w *RevWalk) HideRef(name string) error {
	return w.markRef(name, true)
}

// PushGlob pushes every reference matching pattern. A leading "refs/" is
// implied, as is a trailing "/*" when pattern has no wildcard. References
// that do not point at a commit are skipped.
func (w *RevWalk) PushGlob(pattern string) error {
	return w.markGlob(pattern, false)
}

// HideGlob hides every reference matching pattern, as PushGlob.
func (w *RevWalk) HideGlob(pattern string) error {
	return w.markGlob(pattern, true)
}

// PushRange pushes the right side of "a..b" and hides the left side. An
// empty side means HEAD.
func (w *RevWalk) PushRange(spec string) error {
	if strings.Contains(spec, "...") {
		return invalidInput("symmetric difference %q is not supported", spec)
	}
	left, right, ok := strings.Cut(spec, "..")
	if !ok {
		return invalidInput("invalid revision range %q", spec)
	}
	if left == "" {
		left = plumbing.HEAD.String()
	}
	if right == "" {
		right = plumbing.HEAD.String()
	}

	from, err := w.revision(left)
	if err != nil {
		return err
	}
	to, err := w.revision(right)
	if err != nil {
		return err
	}

	if err := w.mark(from, true); err != nil {
		return err
	}
	return w.mark(to, false)
}

// Reset clears pushed and hidden commits. Sorting and first-parent
// simplification are kept.
func (w *RevWalk) Reset() error {
	s, err := w.state()
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reset()
	w.err = nil
	return nil
}

// SetSorting changes the traversal order. A walk in progress is reset.
func (w *RevWalk) SetSorting(sorting Sort) error {
	s, err := w.state()
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.walking {
		s.reset()
	}
	s.sorting = sorting
	return nil
}

// SimplifyFirstParent restricts the walk to first parents.
func (w *RevWalk) SimplifyFirstParent() error {
	s, err := w.state()
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.firstParent = true
	return nil
}

// Next returns the next commit id. When it returns false, Err reports
// whether the walk failed or simply ran out of commits.
func (w *RevWalk) Next() (plumbing.Hash, bool) {
	s, err := w.state()
	if err != nil {
		w.err = err
		return plumbing.ZeroHash, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.walking {
		w.err = nil
		if len(s.pushed) == 0 {
			return plumbing.ZeroHash, false
		}

		w.core.mu.RLock()
		order, err := walkOrder(w.core.storage, s)
		w.core.mu.RUnlock()
		if err != nil {
			w.err = err
			s.reset()
			return plumbing.ZeroHash, false
		}
		s.order, s.pos, s.walking = order, 0, true
	}

	if s.pos >= len(s.order) {
		s.reset()
		return plumbing.ZeroHash, false
	}

	id := s.order[s.pos]
	s.pos++
	return id, true
}

// Err returns the error that ended the last walk, if any.
func (w *RevWalk) Err() error {
	return w.err
}

func (w *RevWalk) mark(id plumbing.Hash, hide bool) error {
	s, err := w.state()
	if err != nil {
		return err
	}

	w.core.mu.RLock()
	obj, err := peel(w.core.storage, id, plumbing.CommitObject)
	w.core.mu.RUnlock()
	if err != nil {
		return wrapErrorf(err, "object %s is not a commit", id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if hide {
		s.hidden = append(s.hidden, obj.ID())
	} else {
		s.pushed = append(s.pushed, obj.ID())
	}
	return nil
}

func (w *RevWalk) markRef(name string, hide bool) error {
	w.core.mu.RLock()
	ref, err := storer.ResolveReference(w.core.storage, plumbing.ReferenceName(name))
	w.core.mu.RUnlock()
	if err != nil {
		return wrapErrorf(err, "failed to resolve reference %s", name)
	}
	return w.mark(ref.Hash(), hide)
}

func (w *RevWalk) markGlob(pattern string, hide bool) error {
	if !strings.HasPrefix(pattern, "refs/") {
		pattern = "refs/" + pattern
	}
	if !strings.ContainsAny(pattern, "?*[") {
		pattern = strings.TrimSuffix(pattern, "/") + "/*"
	}

	g, err := glob.Compile(pattern)
	if err != nil {
		return invalidInput("invalid reference glob %q: %v", pattern, err)
	}

	w.core.mu.RLock()
	var matched []plumbing.Hash
	iter, err := w.core.storage.IterReferences()
	if err == nil {
		err = iter.ForEach(func(ref *plumbing.Reference) error {
			if !g.Match(ref.Name().String()) {
				return nil
			}
			resolved, err := storer.ResolveReference(w.core.storage, ref.Name())
			if err != nil {
				return nil
			}
			obj, err := peel(w.core.storage, resolved.Hash(), plumbing.CommitObject)
			if err != nil {
				return nil
			}
			matched = append(matched, obj.ID())
			return nil
		})
	}
	w.core.mu.RUnlock()
	if err != nil {
		return wrapError(err, "failed to list references")
	}

	s, err := w.state()
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if hide {
		s.hidden = append(s.hidden, matched...)
	} else {
		s.pushed = append(s.pushed, matched...)
	}
	return nil
}

func (w *RevWalk) revision(rev string) (plumbing.Hash, error) {
	w.core.mu.RLock()
	defer w.core.mu.RUnlock()

	h, err := w.core.repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return plumbing.ZeroHash, wrapErrorf(err, "failed to resolve revision %s", rev)
	}
	return *h, nil
}

// walkNode is a commit as the walker sees it.
type walkNode struct {
	id      plumbing.Hash
	parents []plumbing.Hash
	when    time.Time
	seq     int
}

type walkGraph struct {
	s           storer.EncodedObjectStorer
	firstParent bool
	nodes       map[plumbing.Hash]*walkNode
}

func (g *walkGraph) node(id plumbing.Hash) (*walkNode, error) {
	if n, ok := g.nodes[id]; ok {
		return n, nil
	}

	c, err := object.GetCommit(g.s, id)
	if err != nil {
		return nil, wrapErrorf(err, "failed to load commit %s", id)
	}

	parents := c.ParentHashes
	if g.firstParent && len(parents) > 1 {
		parents = parents[:1]
	}
	n := &walkNode{id: id, parents: parents, when: c.Committer.When}
	g.nodes[id] = n
	return n, nil
}

// preorder visits every commit reachable from tips, skipping those in stop,
// tips first and each commit before its parents.
func (g *walkGraph) preorder(tips []plumbing.Hash, stop map[plumbing.Hash]bool) ([]*walkNode, error) {
	var out []*walkNode
	seen := make(map[plumbing.Hash]bool)

	stack := slices.Clone(tips)
	slices.Reverse(stack)
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[id] || stop[id] {
			continue
		}
		seen[id] = true

		n, err := g.node(id)
		if err != nil {
			return nil, err
		}
		n.seq = len(out)
		out = append(out, n)

		for i := len(n.parents) - 1; i >= 0; i-- {
			if !seen[n.parents[i]] {
				stack = append(stack, n.parents[i])
			}
		}
	}
	return out, nil
}

// dateOrder visits every commit reachable from tips, skipping those in stop,
// popping the newest committer time first. A parent is queued when the first
// of its children is visited.
func (g *walkGraph) dateOrder(tips []plumbing.Hash, stop map[plumbing.Hash]bool) ([]*walkNode, error) {
	queued := make(map[plumbing.Hash]bool)
	ready := &readyQueue{byTime: true}
	enqueue := func(id plumbing.Hash) error {
		if queued[id] || stop[id] {
			return nil
		}
		queued[id] = true

		n, err := g.node(id)
		if err != nil {
			return err
		}
		n.seq = len(queued)
		heap.Push(ready, n)
		return nil
	}

	for _, id := range tips {
		if err := enqueue(id); err != nil {
			return nil, err
		}
	}

	var out []*walkNode
	for ready.Len() > 0 {
		n := heap.Pop(ready).(*walkNode)
		out = append(out, n)
		for _, p := range n.parents {
			if err := enqueue(p); err != nil {
				return nil, err
			}
		}
	}

	// Topological ties fall back to visit order.
	for i, n := range out {
		n.seq = i
	}
	return out, nil
}

func walkOrder(s storer.EncodedObjectStorer, st *walkState) ([]plumbing.Hash, error) {
	g := &walkGraph{s: s, firstParent: st.firstParent, nodes: make(map[plumbing.Hash]*walkNode)}

	hidden := make(map[plumbing.Hash]bool)
	if len(st.hidden) > 0 {
		// Hidden commits cut every path, not just the first-parent chain.
		full := &walkGraph{s: s, nodes: make(map[plumbing.Hash]*walkNode)}
		nodes, err := full.preorder(st.hidden, nil)
		if err != nil {
			return nil, err
		}
		for _, n := range nodes {
			hidden[n.id] = true
		}
	}

	nodes, err := g.dateOrder(st.pushed, hidden)
	if err != nil {
		return nil, err
	}

	switch {
	case st.sorting&SortTopological != 0:
		nodes = topoSort(nodes, st.sorting&SortTime != 0)
	case st.sorting&SortTime != 0:
		slices.SortStableFunc(nodes, func(a, b *walkNode) int {
			return b.when.Compare(a.when)
		})
	}

	out := make([]plumbing.Hash, len(nodes))
	for i, n := range nodes {
		out[i] = n.id
	}
	if st.sorting&SortReverse != 0 {
		slices.Reverse(out)
	}
	return out, nil
}

// topoSort orders nodes so no commit appears before any of its children.
// Among commits that are ready, newer ones go first when byTime is set and
// visit order decides otherwise.
func topoSort(nodes []*walkNode, byTime bool) []*walkNode {
	in := make(map[plumbing.Hash]*walkNode, len(nodes))
	for _, n := range nodes {
		in[n.id] = n
	}

	children := make(map[plumbing.Hash]int, len(nodes))
	for _, n := range nodes {
		for _, p := range n.parents {
			if _, ok := in[p]; ok {
				children[p]++
			}
		}
	}

	ready := &readyQueue{byTime: byTime}
	for _, n := range nodes {
		if children[n.id] == 0 {
			heap.Push(ready, n)
		}
	}

	out := make([]*walkNode, 0, len(nodes))
	for ready.Len() > 0 {
		n := heap.Pop(ready).(*walkNode)
		out = append(out, n)
		for _, p := range n.parents {
			pn, ok := in[p]
			if !ok {
				continue
			}
			children[p]--
			if children[p] == 0 {
				heap.Push(ready, pn)
			}
		}
	}
	return out
}

type readyQueue struct {
	nodes  []*walkNode
	byTime bool
}

func (q *readyQueue) Len() int { return len(q.nodes) }

func (q *readyQueue) Less(i, j int) bool {
	a, b := q.nodes[i], q.nodes[j]
	if q.byTime && !a.when.Equal(b.when) {
		return a.when.After(b.when)
	}
	return a.seq < b.seq
}

func (q *readyQueue) Swap(i, j int) { q.nodes[i], q.nodes[j] = q.nodes[j], q.nodes[i] }

func (q *readyQueue) Push(x any) { q.nodes = append(q.nodes, x.(*walkNode)) }

func (q *readyQueue) Pop() any {
	n := q.nodes[len(q.nodes)-1]
	q.nodes = q.nodes[:len(q.nodes)-1]
	return n
}
