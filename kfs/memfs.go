package kfs

import (
	"sort"
	"sync"

	"riscvkernel/kdefs"
)

// memNode is the in-memory reference implementation of Node. It is
// enough to exercise every VFS operation the core calls: open-by-
// lookup, readdir for ls/getdents, mkdir/rmdir, unlink, and file
// read/write with growth.
type memNode struct {
	mu       sync.Mutex
	kind     NodeKind
	data     []byte
	children map[string]*memNode
}

// NewMemFS returns the root directory node of a fresh, empty in-memory
// filesystem.
func NewMemFS() Node {
	return &memNode{kind: KindDir, children: map[string]*memNode{}}
}

func (n *memNode) Kind() NodeKind { return n.kind }

func (n *memNode) Size() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return uint64(len(n.data))
}

func (n *memNode) Read(dst []byte, off uint64) (int, kdefs.Err_t) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.kind != KindFile {
		return 0, kdefs.EISDIR
	}
	if off >= uint64(len(n.data)) {
		return 0, 0
	}
	m := copy(dst, n.data[off:])
	return m, 0
}

func (n *memNode) Write(src []byte, off uint64) (int, kdefs.Err_t) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.kind != KindFile {
		return 0, kdefs.EISDIR
	}
	end := off + uint64(len(src))
	if end > uint64(len(n.data)) {
		grown := make([]byte, end)
		copy(grown, n.data)
		n.data = grown
	}
	copy(n.data[off:end], src)
	return len(src), 0
}

func (n *memNode) Lookup(name string) (Node, kdefs.Err_t) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.kind != KindDir {
		return nil, kdefs.ENOTDIR
	}
	c, ok := n.children[name]
	if !ok {
		return nil, kdefs.ENOENT
	}
	return c, 0
}

func (n *memNode) Readdir() ([]DirEnt, kdefs.Err_t) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.kind != KindDir {
		return nil, kdefs.ENOTDIR
	}
	ents := make([]DirEnt, 0, len(n.children))
	for name, c := range n.children {
		ents = append(ents, DirEnt{Name: name, Kind: c.kind})
	}
	sort.Slice(ents, func(i, j int) bool { return ents[i].Name < ents[j].Name })
	return ents, 0
}

func (n *memNode) Mkdir(name string) (Node, kdefs.Err_t) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.kind != KindDir {
		return nil, kdefs.ENOTDIR
	}
	if _, exists := n.children[name]; exists {
		return nil, kdefs.EINVAL
	}
	c := &memNode{kind: KindDir, children: map[string]*memNode{}}
	n.children[name] = c
	return c, 0
}

func (n *memNode) Rmdir(name string) kdefs.Err_t {
	n.mu.Lock()
	defer n.mu.Unlock()
	c, ok := n.children[name]
	if !ok {
		return kdefs.ENOENT
	}
	if c.kind != KindDir {
		return kdefs.ENOTDIR
	}
	if len(c.children) != 0 {
		return kdefs.ENOTEMPTY
	}
	delete(n.children, name)
	return 0
}

func (n *memNode) Unlink(name string) kdefs.Err_t {
	n.mu.Lock()
	defer n.mu.Unlock()
	c, ok := n.children[name]
	if !ok {
		return kdefs.ENOENT
	}
	if c.kind != KindFile {
		return kdefs.EISDIR
	}
	delete(n.children, name)
	return 0
}

func (n *memNode) Create(name string) (Node, kdefs.Err_t) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.kind != KindDir {
		return nil, kdefs.ENOTDIR
	}
	if c, exists := n.children[name]; exists {
		return c, 0
	}
	c := &memNode{kind: KindFile}
	n.children[name] = c
	return c, 0
}
