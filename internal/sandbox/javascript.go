package sandbox

import (
	"errors"
	"strings"
	"time"

	"github.com/dop251/goja"

	"hyperlearn/internal/domain"
)

type jsRealm struct {
	realm     *realm
	vm        *goja.Runtime
	stringify goja.Callable
	dom       *domShim
	storage   map[string]string
}

func (r *realm) execJavaScript(s script) {
	js := r.javascript()
	_, err := js.vm.RunScript(s.name, s.source)
	js.report(err)
}

// javascript lazily creates the realm's single goja runtime. All JavaScript
// scripts of a document share its globals, as they would in one page.
func (r *realm) javascript() *jsRealm {
	if r.js != nil {
		return r.js
	}
	vm := goja.New()
	js := &jsRealm{realm: r, vm: vm, storage: map[string]string{}}
	js.install()
	r.attachVM(vm)
	r.js = js
	return js
}

func (j *jsRealm) install() {
	vm := j.vm
	if jsonObj := vm.Get("JSON"); jsonObj != nil {
		if fn, ok := goja.AssertFunction(jsonObj.ToObject(vm).Get("stringify")); ok {
			j.stringify = fn
		}
	}

	console := vm.NewObject()
	_ = console.Set("log", j.consoleMethod(domain.LineLog))
	_ = console.Set("debug", j.consoleMethod(domain.LineLog))
	_ = console.Set("info", j.consoleMethod(domain.LineInfo))
	_ = console.Set("warn", j.consoleMethod(domain.LineWarn))
	_ = console.Set("error", j.consoleMethod(domain.LineError))
	_ = vm.Set("console", console)

	_ = vm.Set("window", vm.GlobalObject())
	_ = vm.Set("self", vm.GlobalObject())

	j.dom = newDOMShim(vm, j.realm.doc)
	_ = vm.Set("document", j.dom.document())
	_ = vm.Set("localStorage", j.localStorage())

	_ = vm.Set("setTimeout", j.schedule(false))
	_ = vm.Set("setInterval", j.schedule(true))
	_ = vm.Set("clearTimeout", j.clearTimer)
	_ = vm.Set("clearInterval", j.clearTimer)
}

func (j *jsRealm) consoleMethod(kind domain.LineKind) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		j.realm.emit(kind, j.format(call.Arguments))
		return goja.Undefined()
	}
}

func (j *jsRealm) format(args []goja.Value) string {
	parts := make([]string, len(args))
	for i, arg := range args {
		parts[i] = j.formatValue(arg)
	}
	return strings.Join(parts, " ")
}

// formatValue renders objects as JSON text and everything else in its string
// form. Objects JSON.stringify cannot encode fall back to their string form.
func (j *jsRealm) formatValue(v goja.Value) string {
	switch {
	case v == nil || goja.IsUndefined(v):
		return "undefined"
	case goja.IsNull(v):
		return "null"
	}
	obj, ok := v.(*goja.Object)
	if !ok {
		return v.String()
	}
	if _, callable := goja.AssertFunction(v); callable {
		return obj.String()
	}
	if j.stringify != nil {
		out, err := j.stringify(goja.Undefined(), v)
		if err == nil && out != nil && !goja.IsUndefined(out) {
			return out.String()
		}
	}
	return safeString(obj)
}

func safeString(v goja.Value) (s string) {
	defer func() {
		if recover() != nil {
			s = "[object]"
		}
	}()
	return v.String()
}

// report turns an uncaught error into a fault line. Interrupts are not
// reported here; the realm reports why it stopped.
func (j *jsRealm) report(err error) {
	if err == nil {
		return
	}
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		return
	}
	var exc *goja.Exception
	if errors.As(err, &exc) {
		j.realm.emit(domain.LineFault, "Uncaught "+j.describe(exc))
		return
	}
	j.realm.emit(domain.LineFault, "Uncaught "+err.Error())
}

func (j *jsRealm) describe(exc *goja.Exception) string {
	v := exc.Value()
	if v == nil {
		return exc.Error()
	}
	if obj, ok := v.(*goja.Object); ok && obj.ClassName() == "Error" {
		return safeString(obj)
	}
	return j.formatValue(v)
}

func (j *jsRealm) schedule(repeat bool) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		fn, ok := goja.AssertFunction(call.Argument(0))
		if !ok {
			return j.vm.ToValue(0)
		}
		delay := timerDelay(call.Argument(1).ToInteger())
		var args []goja.Value
		if len(call.Arguments) > 2 {
			args = append(args, call.Arguments[2:]...)
		}
		id := j.realm.timers.add(delay, repeat, func() {
			_, err := fn(goja.Undefined(), args...)
			j.report(err)
		})
		return j.vm.ToValue(id)
	}
}

// maxTimerDelay caps timer delays in milliseconds.
const maxTimerDelay = 1<<31 - 1

func timerDelay(ms int64) time.Duration {
	switch {
	case ms < 0:
		ms = 0
	case ms > maxTimerDelay:
		ms = maxTimerDelay
	}
	return time.Duration(ms) * time.Millisecond
}

func (j *jsRealm) clearTimer(call goja.FunctionCall) goja.Value {
	j.realm.timers.cancel(call.Argument(0).ToInteger())
	return goja.Undefined()
}

// localStorage is private to the realm and discarded with it.
func (j *jsRealm) localStorage() *goja.Object {
	vm := j.vm
	obj := vm.NewObject()
	_ = obj.Set("getItem", func(call goja.FunctionCall) goja.Value {
		v, ok := j.storage[call.Argument(0).String()]
		if !ok {
			return goja.Null()
		}
		return vm.ToValue(v)
	})
	_ = obj.Set("setItem", func(call goja.FunctionCall) goja.Value {
		j.storage[call.Argument(0).String()] = call.Argument(1).String()
		return goja.Undefined()
	})
	_ = obj.Set("removeItem", func(call goja.FunctionCall) goja.Value {
		delete(j.storage, call.Argument(0).String())
		return goja.Undefined()
	})
	_ = obj.Set("clear", func(goja.FunctionCall) goja.Value {
		clear(j.storage)
		return goja.Undefined()
	})
	return obj
}
