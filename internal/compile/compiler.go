package compile

import "context"

// Request is one compiler invocation. Paths are absolute.
type Request struct {
	EntryPoints []string

	// OutDir receives the compiled files.
	OutDir string

	// OutBase, when set, is the directory whose layout is mirrored under
	// OutDir. Without it the compiler derives one from the entry points.
	OutBase string

	// Minify enables whitespace, identifier and syntax minification.
	Minify bool

	// TSConfig is an optional tsconfig file.
	TSConfig string
}

// Response is the outcome of a compiler invocation.
type Response struct {
	Errors   []Problem
	Warnings []Problem

	// Outputs lists the written files, relative to the project root.
	Outputs []string
}

// Compiler compiles each entry point into its own output file without
// bundling.
type Compiler interface {
	Compile(ctx context.Context, req Request) (Response, error)
}
