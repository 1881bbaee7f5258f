// Package alias rewrites path-alias module references in compiled output.
//
// The compiler emits alias references such as require("@/lib/db") verbatim.
// After each build the Rewriter walks the whole output tree and replaces every
// reference matching an alias entry with a relative path from the referencing
// file's directory:
//
//	dist/a/b.js: require("@/c/d")  ->  require("../c/d")
//
// References are located by a lexical scan (see Scan) so that string literals,
// comments and regular expressions that merely look like a require call are
// left alone. Rewriting is idempotent: a rewritten reference starts with "."
// and no alias entry may start with "." or "/".
package alias
