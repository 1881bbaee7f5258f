package compile

import (
	"context"
	"path/filepath"
	"sort"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/tidwall/gjson"
)

// ESBuild compiles with esbuild's Go API.
type ESBuild struct {
	// workDir is the project root; metafile paths are relative to it.
	workDir string
}

// NewESBuild creates a compiler rooted at projectRoot.
func NewESBuild(projectRoot string) *ESBuild {
	return &ESBuild{workDir: projectRoot}
}

// Options translates req into esbuild build options.
func (e *ESBuild) Options(req Request) api.BuildOptions {
	return api.BuildOptions{
		EntryPoints:       req.EntryPoints,
		Outdir:            req.OutDir,
		Outbase:           req.OutBase,
		AbsWorkingDir:     e.workDir,
		Platform:          api.PlatformNode,
		Format:            api.FormatCommonJS,
		Target:            api.ESNext,
		MinifyWhitespace:  req.Minify,
		MinifyIdentifiers: req.Minify,
		MinifySyntax:      req.Minify,
		Bundle:            false,
		Tsconfig:          req.TSConfig,
		Write:             true,
		Metafile:          true,
		LogLevel:          api.LogLevelSilent,
	}
}

// Compile runs one esbuild build. esbuild cannot be interrupted, so ctx is
// only checked before starting.
func (e *ESBuild) Compile(ctx context.Context, req Request) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}

	result := api.Build(e.Options(req))

	resp := Response{
		Errors:   e.problems(result.Errors, SeverityError),
		Warnings: e.problems(result.Warnings, SeverityWarning),
	}
	if len(resp.Errors) == 0 {
		resp.Outputs = MetafileOutputs(result.Metafile)
	}
	return resp, nil
}

func (e *ESBuild) problems(msgs []api.Message, sev Severity) []Problem {
	problems := make([]Problem, 0, len(msgs))
	for _, m := range msgs {
		p := Problem{Severity: sev, Message: m.Text}
		if m.PluginName != "" {
			p.Message = "[" + m.PluginName + "] " + m.Text
		}
		if loc := m.Location; loc != nil {
			p.File = loc.File
			p.Line = loc.Line
			p.Column = loc.Column + 1
		}
		problems = append(problems, p)
	}
	return problems
}

// MetafileOutputs returns the output paths recorded in an esbuild metafile,
// sorted, in OS path form.
func MetafileOutputs(metafile string) []string {
	var outputs []string
	gjson.Get(metafile, "outputs").ForEach(func(key, _ gjson.Result) bool {
		outputs = append(outputs, filepath.FromSlash(key.String()))
		return true
	})
	sort.Strings(outputs)
	return outputs
}
