// Package resolver implements the module-path resolution contract of
// spec.md §6: a file-path import resolves relative to the importing
// file, a bare package spec resolves under a `packages/` directory
// located by walking up for an `erkao.mod` or `erkao.lock` project
// marker, with `erkao.lock` pinning an exact resolved version per package. The VM
// (package vm) only depends on the Resolver interface below, per
// spec.md's "implemented elsewhere; consumed by the VM" framing —
// package vm never imports anything else from this package.
package resolver

// Resolver turns an import path written at fromPath into a concrete,
// pointer-stable resolved path the VM can use as a modules-map key.
// ok is false when the import cannot be resolved (unknown package,
// missing version, file not found), which the VM turns into an
// ImportError.
type Resolver interface {
	Resolve(fromPath, importPath string) (resolved string, ok bool)
}
