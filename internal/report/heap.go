package report

import "container/heap"

// topFiles keeps the N largest files seen so far. A min-heap of size N
// means each insertion is O(log N) and memory stays bounded no matter
// how many files a run visits.
type topFiles struct {
	limit int
	items fileHeap
}

func newTopFiles(limit int) *topFiles {
	return &topFiles{limit: limit}
}

func (t *topFiles) add(stat FileStat) {
	if t.limit <= 0 {
		return
	}
	if t.items.Len() < t.limit {
		heap.Push(&t.items, stat)
		return
	}
	if stat.Size > t.items[0].Size {
		t.items[0] = stat
		heap.Fix(&t.items, 0)
	}
}

// sorted returns the kept entries, largest first.
func (t *topFiles) sorted() []FileStat {
	out := make([]FileStat, t.items.Len())
	tmp := make(fileHeap, t.items.Len())
	copy(tmp, t.items)
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(&tmp).(FileStat)
	}
	return out
}

type fileHeap []FileStat

func (h fileHeap) Len() int      { return len(h) }
func (h fileHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h fileHeap) Less(i, j int) bool {
	if h[i].Size != h[j].Size {
		return h[i].Size < h[j].Size
	}
	// Deterministic order for equal sizes
	return h[i].Path > h[j].Path
}

func (h *fileHeap) Push(x any) { *h = append(*h, x.(FileStat)) }
func (h *fileHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// topElements keeps the N most complex elements, same shape as topFiles.
type topElements struct {
	limit int
	items elementHeap
}

func newTopElements(limit int) *topElements {
	return &topElements{limit: limit}
}

func (t *topElements) add(stat ElementStat) {
	if t.limit <= 0 {
		return
	}
	if t.items.Len() < t.limit {
		heap.Push(&t.items, stat)
		return
	}
	if stat.Complexity > t.items[0].Complexity {
		t.items[0] = stat
		heap.Fix(&t.items, 0)
	}
}

func (t *topElements) sorted() []ElementStat {
	out := make([]ElementStat, t.items.Len())
	tmp := make(elementHeap, t.items.Len())
	copy(tmp, t.items)
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(&tmp).(ElementStat)
	}
	return out
}

type elementHeap []ElementStat

func (h elementHeap) Len() int      { return len(h) }
func (h elementHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h elementHeap) Less(i, j int) bool {
	if h[i].Complexity != h[j].Complexity {
		return h[i].Complexity < h[j].Complexity
	}
	return h[i].QualifiedName > h[j].QualifiedName
}

func (h *elementHeap) Push(x any) { *h = append(*h, x.(ElementStat)) }
func (h *elementHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
