// Command lint is a dependency-boundary checker: it walks this
// module's package graph with golang.org/x/tools/go/packages and flags
// any kernel-nucleus package that imports something outside the
// standard library and its own declared allowlist. The trap path
// cannot carry a userland dependency tree, and this enforces that at
// build time rather than only by convention.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/mod/modfile"
	"golang.org/x/tools/go/packages"
)

// nucleus lists the packages that form the trap-path core: no argv, no
// network, no filesystem beyond kfs's own VFS abstraction, so none of
// them should ever import anything beyond the standard library and an
// explicitly allowed domain dependency.
var nucleus = map[string][]string{
	"kdefs":    nil,
	"kconfig":  nil,
	"klog":     nil,
	"kmem":     nil,
	"kvm":      nil,
	"ksched":   nil,
	"kproc":    nil,
	"ksignal":  nil,
	"kipc":     nil,
	"kfs":      nil,
	"kelf":     nil,
	"ksyscall": nil,
	"ktrap":    nil,
	// kriscv decodes faulting instructions for panic/signal diagnostics
	// with golang.org/x/arch; this is the one deliberate exception.
	"kriscv": {"golang.org/x/arch"},
}

func main() {
	root := "."
	if len(os.Args) > 1 {
		root = os.Args[1]
	}

	modPath, err := moduleOf(root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "lint: %v\n", err)
		os.Exit(2)
	}

	cfg := &packages.Config{
		Mode: packages.NeedName | packages.NeedImports | packages.NeedDeps,
		Dir:  root,
	}
	pkgs, err := packages.Load(cfg, "./...")
	if err != nil {
		fmt.Fprintf(os.Stderr, "lint: loading packages: %v\n", err)
		os.Exit(2)
	}

	var violations []string
	for _, pkg := range pkgs {
		name := strings.TrimPrefix(pkg.PkgPath, modPath+"/")
		allowed, ok := nucleus[name]
		if !ok {
			continue
		}
		for imp := range pkg.Imports {
			if isStdlib(imp) {
				continue
			}
			if importAllowed(imp, allowed) {
				continue
			}
			violations = append(violations, fmt.Sprintf("%s: disallowed import %q", name, imp))
		}
	}

	if len(violations) == 0 {
		fmt.Println("lint: ok, no kernel-nucleus package imports outside its allowlist")
		return
	}
	sort.Strings(violations)
	for _, v := range violations {
		fmt.Fprintln(os.Stderr, v)
	}
	os.Exit(1)
}

func importAllowed(imp string, allowed []string) bool {
	for _, a := range allowed {
		if imp == a || strings.HasPrefix(imp, a+"/") {
			return true
		}
	}
	return false
}

// isStdlib reports whether imp looks like a standard-library import
// path: the first path component has no dot, the heuristic every real
// third-party module path (a domain name) fails.
func isStdlib(imp string) bool {
	first := imp
	if idx := strings.Index(imp, "/"); idx >= 0 {
		first = imp[:idx]
	}
	return !strings.Contains(first, ".")
}

func moduleOf(root string) (string, error) {
	data, err := os.ReadFile(filepath.Join(root, "go.mod"))
	if err != nil {
		return "", err
	}
	f, err := modfile.Parse("go.mod", data, nil)
	if err != nil {
		return "", err
	}
	if f.Module == nil {
		return "", fmt.Errorf("go.mod has no module directive")
	}
	return f.Module.Mod.Path, nil
}
