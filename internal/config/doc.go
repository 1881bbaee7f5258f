// Package config resolves the tywa compiler configuration.
//
// Resolution layers, lowest priority first:
//
//	┌─────────────────────────────────┐
//	│  4. TYWA_* environment          │  ← Highest priority (.env is loaded first)
//	├─────────────────────────────────┤
//	│  3. Tool options file           │  ← --config PATH or discovered
//	├─────────────────────────────────┤
//	│  2. tsconfig compilerOptions    │  ← outDir, rootDir, paths fallbacks
//	├─────────────────────────────────┤
//	│  1. Built-in defaults           │  ← runtime, timeouts
//	└─────────────────────────────────┘
//
// The result is an immutable Config constructed once per run and handed to
// every component constructor. Directory fields are always relative to the
// project root.
package config
