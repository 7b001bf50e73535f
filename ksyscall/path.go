package ksyscall

import "path"

// canonicalize collapses "." and ".." components in an absolute path,
// the way chdir must before storing it as the new cwd.
func canonicalize(p string) string {
	return path.Clean(p)
}
