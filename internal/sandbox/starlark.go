package sandbox

import (
	"errors"
	"strings"

	"go.starlark.net/lib/json"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
	"go.starlark.net/syntax"

	"hyperlearn/internal/domain"
)

var starlarkOptions = &syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
	GlobalReassign:  true,
}

// execStarlark runs one Starlark script. Globals defined by earlier Starlark
// scripts of the same document stay visible to later ones.
func (r *realm) execStarlark(s script) {
	thread := r.starlarkThread()
	predeclared := r.starlarkPredeclared()
	for name, v := range r.globals {
		predeclared[name] = v
	}

	globals, err := starlark.ExecFileOptions(starlarkOptions, thread, s.name, s.source, predeclared)
	for name, v := range globals {
		r.globals[name] = v
	}
	if err == nil || r.stopped() != nil {
		return
	}

	var evalErr *starlark.EvalError
	var syntaxErr syntax.Error
	switch {
	case errors.As(err, &evalErr):
		r.emit(domain.LineFault, "Uncaught Error: "+evalErr.Msg)
	case errors.As(err, &syntaxErr):
		r.emit(domain.LineFault, "Uncaught SyntaxError: "+syntaxErr.Msg)
	default:
		r.emit(domain.LineFault, "Uncaught Error: "+err.Error())
	}
}

func (r *realm) starlarkThread() *starlark.Thread {
	if r.thread != nil {
		return r.thread
	}
	thread := &starlark.Thread{
		Name:  "realm",
		Print: func(_ *starlark.Thread, msg string) { r.emit(domain.LineLog, msg) },
	}
	if r.limits.StarlarkSteps > 0 {
		thread.SetMaxExecutionSteps(r.limits.StarlarkSteps)
	}
	r.attachThread(thread)
	return thread
}

func (r *realm) starlarkPredeclared() starlark.StringDict {
	console := &starlarkstruct.Module{
		Name: "console",
		Members: starlark.StringDict{
			"log":   r.starlarkConsole("log", domain.LineLog),
			"debug": r.starlarkConsole("debug", domain.LineLog),
			"info":  r.starlarkConsole("info", domain.LineInfo),
			"warn":  r.starlarkConsole("warn", domain.LineWarn),
			"error": r.starlarkConsole("error", domain.LineError),
		},
	}
	return starlark.StringDict{
		"console": console,
		"json":    json.Module,
	}
}

func (r *realm) starlarkConsole(name string, kind domain.LineKind) *starlark.Builtin {
	return starlark.NewBuiltin("console."+name, func(thread *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		parts := make([]string, len(args))
		for i, arg := range args {
			parts[i] = formatStarlark(thread, arg)
		}
		r.emit(kind, strings.Join(parts, " "))
		return starlark.None, nil
	})
}

// formatStarlark mirrors the JavaScript console: strings print raw,
// containers print as JSON and other values in their string form.
func formatStarlark(thread *starlark.Thread, v starlark.Value) string {
	switch v := v.(type) {
	case starlark.String:
		return string(v)
	case *starlark.Dict, *starlark.List, starlark.Tuple, *starlarkstruct.Struct:
		encode := json.Module.Members["encode"]
		out, err := starlark.Call(thread, encode, starlark.Tuple{v}, nil)
		if err == nil {
			if s, ok := starlark.AsString(out); ok {
				return s
			}
		}
	}
	return v.String()
}
