package loader

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// DefaultLuaTimeout bounds how long a Lua configuration script may run.
const DefaultLuaTimeout = 5 * time.Second

// LuaLoader evaluates an executable configuration script. The script must
// return a table:
//
//	return {
//	  outDir = "dist",
//	  rootDir = "src",
//	  paths = {
//	    { alias = "@/*", targets = { "src/*" } },
//	  },
//	  mainOutputFile = os.getenv("MAIN") or "dist/index.js",
//	}
//
// A keyed paths table ({ ["@/*"] = { "src/*" } }) is accepted too; Lua
// tables are unordered, so its aliases are sorted with a warning.
type LuaLoader struct {
	fs      FileSystem
	path    string
	timeout time.Duration
}

// NewLuaLoader creates a new Lua loader for the given path.
func NewLuaLoader(path string) *LuaLoader {
	return NewLuaLoaderWithFS(DefaultFS(), path)
}

// NewLuaLoaderWithFS creates a Lua loader with a custom file system.
func NewLuaLoaderWithFS(fs FileSystem, path string) *LuaLoader {
	return &LuaLoader{fs: fs, path: path, timeout: DefaultLuaTimeout}
}

// Load evaluates the configured script.
func (l *LuaLoader) Load() (*Document, error) {
	return l.LoadFrom(l.path)
}

// LoadFrom evaluates the script at path.
func (l *LuaLoader) LoadFrom(path string) (*Document, error) {
	data, err := l.fs.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	return l.eval(path, string(data))
}

func (l *LuaLoader) eval(source, script string) (*Document, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	defer L.Close()

	if err := openSafeLibs(L); err != nil {
		return nil, fmt.Errorf("lua runtime: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()
	L.SetContext(ctx)

	if err := L.DoString(script); err != nil {
		return nil, &ParseError{Path: source, Message: err.Error(), Err: err}
	}

	tbl, ok := L.Get(-1).(*lua.LTable)
	if !ok {
		return nil, &FieldError{Path: source, Field: "(return value)", Want: "a table"}
	}
	return decodeLuaTable(source, tbl)
}

// openSafeLibs opens the subset of the standard library a config script
// needs and removes the file-loading builtins.
func openSafeLibs(L *lua.LState) error {
	libs := []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
		{lua.OsLibName, lua.OpenOs},
	}
	for _, lib := range libs {
		if err := L.CallByParam(lua.P{
			Fn:      L.NewFunction(lib.fn),
			NRet:    0,
			Protect: true,
		}, lua.LString(lib.name)); err != nil {
			return err
		}
	}

	for _, name := range []string{"dofile", "loadfile", "load", "loadstring"} {
		L.SetGlobal(name, lua.LNil)
	}
	return nil
}

func decodeLuaTable(source string, t *lua.LTable) (*Document, error) {
	doc := &Document{Source: source, HasOptions: true}

	var err error
	field := func(key string, duration bool) string {
		if err != nil {
			return ""
		}
		switch v := t.RawGetString(key).(type) {
		case *lua.LNilType:
			return ""
		case lua.LString:
			return string(v)
		case lua.LNumber:
			if duration {
				return strconv.FormatInt(int64(v), 10) + "ms"
			}
		}
		err = &FieldError{Path: source, Field: key, Want: "a string"}
		return ""
	}

	doc.OutDir = field("outDir", false)
	doc.RootDir = field("rootDir", false)
	doc.MainOutputFile = field("mainOutputFile", false)
	doc.TSConfig = field("tsconfig", false)
	doc.Runtime = field("runtime", false)
	doc.ShutdownTimeout = field("shutdownTimeout", true)
	doc.Debounce = field("debounce", true)
	doc.LogLevel = field("logLevel", false)
	if err != nil {
		return nil, err
	}

	if v := t.RawGetString("unWatchedDirectories"); v != lua.LNil {
		dirs, ok := luaStrings(v)
		if !ok {
			return nil, &FieldError{Path: source, Field: "unWatchedDirectories", Want: "a list of strings"}
		}
		doc.UnwatchedDirectories = dirs
	}

	if v := t.RawGetString("paths"); v != lua.LNil {
		pt, ok := v.(*lua.LTable)
		if !ok {
			return nil, &FieldError{Path: source, Field: "paths", Want: "a table"}
		}
		paths, sorted, err := luaPaths(source, pt)
		if err != nil {
			return nil, err
		}
		if sorted {
			doc.Warnings = append(doc.Warnings,
				fmt.Sprintf("%s: paths given as a keyed table; aliases are applied in sorted order", source))
		}
		doc.Paths = paths
		doc.HasPaths = true
	}

	return doc, nil
}

func luaPaths(source string, pt *lua.LTable) ([]PathAlias, bool, error) {
	if n := pt.Len(); n > 0 {
		paths := make([]PathAlias, 0, n)
		for i := 1; i <= n; i++ {
			entry, ok := pt.RawGetInt(i).(*lua.LTable)
			if !ok {
				return nil, false, &FieldError{Path: source, Field: fmt.Sprintf("paths[%d]", i), Want: "a table with alias and targets"}
			}
			alias, ok := entry.RawGetString("alias").(lua.LString)
			if !ok || alias == "" {
				return nil, false, &FieldError{Path: source, Field: fmt.Sprintf("paths[%d].alias", i), Want: "a non-empty string"}
			}
			targets, ok := luaStrings(entry.RawGetString("targets"))
			if !ok {
				return nil, false, &FieldError{Path: source, Field: fmt.Sprintf("paths[%d].targets", i), Want: "a string or list of strings"}
			}
			paths = append(paths, PathAlias{Pattern: string(alias), Targets: targets})
		}
		return paths, false, nil
	}

	byPattern := map[string][]string{}
	var err error
	pt.ForEach(func(k, v lua.LValue) {
		if err != nil {
			return
		}
		key, ok := k.(lua.LString)
		if !ok {
			err = &FieldError{Path: source, Field: "paths", Want: "keyed by alias strings"}
			return
		}
		targets, ok := luaStrings(v)
		if !ok {
			err = &FieldError{Path: source, Field: "paths." + string(key), Want: "a string or list of strings"}
			return
		}
		byPattern[string(key)] = targets
	})
	if err != nil {
		return nil, false, err
	}

	keys := make([]string, 0, len(byPattern))
	for k := range byPattern {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	paths := make([]PathAlias, 0, len(keys))
	for _, k := range keys {
		paths = append(paths, PathAlias{Pattern: k, Targets: byPattern[k]})
	}
	return paths, len(paths) > 1, nil
}

func luaStrings(v lua.LValue) ([]string, bool) {
	switch val := v.(type) {
	case lua.LString:
		return []string{string(val)}, true
	case *lua.LTable:
		n := val.Len()
		out := make([]string, 0, n)
		for i := 1; i <= n; i++ {
			s, ok := val.RawGetInt(i).(lua.LString)
			if !ok {
				return nil, false
			}
			out = append(out, string(s))
		}
		return out, true
	default:
		return nil, false
	}
}
