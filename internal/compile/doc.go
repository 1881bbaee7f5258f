// Package compile turns TypeScript sources into one CommonJS file each and
// repairs alias references in the output.
//
// A Step owns the output directory. CompileAll performs a fresh build of every
// source into OutDir, keeping each file's subdirectory relative to RootDir.
// CompileFile rebuilds one source into its mirrored output directory. After a
// successful compile the alias rewriter runs over the whole output tree; after
// a failed one it does not run.
//
// The compiler itself sits behind the Compiler interface. ESBuild drives
// esbuild in-process through its Go API.
package compile
