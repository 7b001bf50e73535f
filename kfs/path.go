package kfs

import (
	"strings"

	"riscvkernel/kdefs"
)

// Resolve walks path component-by-component from root without ever
// touching the on-disk format directly. An absolute path (leading '/')
// starts at root regardless of cwd; all components traverse through
// Node.Lookup only.
func Resolve(root Node, path string) (Node, kdefs.Err_t) {
	cur := root
	for _, part := range strings.Split(strings.Trim(path, "/"), "/") {
		if part == "" || part == "." {
			continue
		}
		next, err := cur.Lookup(part)
		if err != 0 {
			return nil, err
		}
		cur = next
	}
	return cur, 0
}

// ResolveParent splits path into its containing directory and final
// component name, resolving the directory via Resolve. Used by
// create/mkdir/unlink/rmdir, which all operate on (parent, name) pairs.
func ResolveParent(root Node, path string) (Node, string, kdefs.Err_t) {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil, "", kdefs.EINVAL
	}
	idx := strings.LastIndex(trimmed, "/")
	if idx < 0 {
		return root, trimmed, 0
	}
	dir, name := trimmed[:idx], trimmed[idx+1:]
	parent, err := Resolve(root, dir)
	if err != 0 {
		return nil, "", err
	}
	return parent, name, 0
}
