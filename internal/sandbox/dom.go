package sandbox

import (
	"strings"

	"github.com/dop251/goja"
	"golang.org/x/net/html"
)

// domShim exposes a small subset of the DOM over the realm's parsed
// document. Wrappers are cached so the same node is always the same object.
type domShim struct {
	vm    *goja.Runtime
	doc   *document
	cache map[*html.Node]*goja.Object
	nodes map[*goja.Object]*html.Node
}

func newDOMShim(vm *goja.Runtime, doc *document) *domShim {
	return &domShim{
		vm:    vm,
		doc:   doc,
		cache: map[*html.Node]*goja.Object{},
		nodes: map[*goja.Object]*html.Node{},
	}
}

func (d *domShim) document() *goja.Object {
	obj := d.vm.NewObject()
	_ = obj.Set("getElementById", func(call goja.FunctionCall) goja.Value {
		id := call.Argument(0).String()
		return d.locked(func() goja.Value {
			return d.wrap(find(d.doc.root, func(n *html.Node) bool { return attr(n, "id") == id }))
		})
	})
	_ = obj.Set("querySelector", func(call goja.FunctionCall) goja.Value {
		sel := call.Argument(0).String()
		return d.locked(func() goja.Value { return d.wrap(querySelector(d.doc.root, sel)) })
	})
	_ = obj.Set("createElement", func(call goja.FunctionCall) goja.Value {
		return d.wrap(newElement(call.Argument(0).String()))
	})
	_ = obj.Set("addEventListener", noop)
	d.accessor(obj, "body", func() goja.Value {
		return d.locked(func() goja.Value { return d.wrap(d.doc.body()) })
	}, nil)
	d.accessor(obj, "title", func() goja.Value {
		return d.locked(func() goja.Value {
			t := d.doc.title()
			if t == nil {
				return d.vm.ToValue("")
			}
			return d.vm.ToValue(strings.TrimSpace(textOf(t)))
		})
	}, func(v goja.Value) {
		d.doc.mu.Lock()
		defer d.doc.mu.Unlock()
		if t := d.doc.title(); t != nil {
			setText(t, v.String())
		}
	})
	return obj
}

func noop(goja.FunctionCall) goja.Value { return goja.Undefined() }

func (d *domShim) locked(fn func() goja.Value) goja.Value {
	d.doc.mu.Lock()
	defer d.doc.mu.Unlock()
	return fn()
}

func (d *domShim) mutate(fn func()) {
	d.doc.mu.Lock()
	defer d.doc.mu.Unlock()
	fn()
}

func (d *domShim) accessor(obj *goja.Object, name string, get func() goja.Value, set func(goja.Value)) {
	getter := d.vm.ToValue(func(goja.FunctionCall) goja.Value { return get() })
	var setter goja.Value
	if set != nil {
		setter = d.vm.ToValue(func(call goja.FunctionCall) goja.Value {
			set(call.Argument(0))
			return goja.Undefined()
		})
	}
	_ = obj.DefineAccessorProperty(name, getter, setter, goja.FLAG_TRUE, goja.FLAG_TRUE)
}

// wrap must be called with the document lock held or on a detached node.
func (d *domShim) wrap(n *html.Node) goja.Value {
	if n == nil {
		return goja.Null()
	}
	if obj, ok := d.cache[n]; ok {
		return obj
	}
	obj := d.vm.NewObject()
	d.cache[n] = obj
	d.nodes[obj] = n

	d.accessor(obj, "id", func() goja.Value {
		return d.locked(func() goja.Value { return d.vm.ToValue(attr(n, "id")) })
	}, func(v goja.Value) {
		d.mutate(func() { setAttr(n, "id", v.String()) })
	})
	d.accessor(obj, "className", func() goja.Value {
		return d.locked(func() goja.Value { return d.vm.ToValue(attr(n, "class")) })
	}, func(v goja.Value) {
		d.mutate(func() { setAttr(n, "class", v.String()) })
	})
	d.accessor(obj, "tagName", func() goja.Value {
		return d.vm.ToValue(strings.ToUpper(n.Data))
	}, nil)

	text := func() goja.Value {
		return d.locked(func() goja.Value { return d.vm.ToValue(textOf(n)) })
	}
	setTextValue := func(v goja.Value) {
		d.mutate(func() { setText(n, v.String()) })
	}
	d.accessor(obj, "textContent", text, setTextValue)
	d.accessor(obj, "innerText", text, setTextValue)

	d.accessor(obj, "innerHTML", func() goja.Value {
		return d.locked(func() goja.Value { return d.vm.ToValue(innerHTML(n)) })
	}, func(v goja.Value) {
		var err error
		d.mutate(func() { err = setInnerHTML(n, v.String()) })
		if err != nil {
			panic(d.vm.NewTypeError("innerHTML: %v", err))
		}
	})

	_ = obj.Set("getAttribute", func(call goja.FunctionCall) goja.Value {
		key := strings.ToLower(call.Argument(0).String())
		return d.locked(func() goja.Value {
			if !hasAttr(n, key) {
				return goja.Null()
			}
			return d.vm.ToValue(attr(n, key))
		})
	})
	_ = obj.Set("setAttribute", func(call goja.FunctionCall) goja.Value {
		key := strings.ToLower(call.Argument(0).String())
		val := call.Argument(1).String()
		d.mutate(func() { setAttr(n, key, val) })
		return goja.Undefined()
	})
	_ = obj.Set("appendChild", func(call goja.FunctionCall) goja.Value {
		arg, _ := call.Argument(0).(*goja.Object)
		child, ok := d.nodes[arg]
		if arg == nil || !ok {
			panic(d.vm.NewTypeError("appendChild: argument is not an element"))
		}
		if isAncestor(child, n) {
			panic(d.vm.NewTypeError("appendChild: the new child is an ancestor of the parent"))
		}
		d.mutate(func() {
			if child.Parent != nil {
				child.Parent.RemoveChild(child)
			}
			n.AppendChild(child)
		})
		return arg
	})
	_ = obj.Set("addEventListener", noop)
	_ = obj.Set("style", d.vm.NewObject())
	return obj
}

func isAncestor(candidate, n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p == candidate {
			return true
		}
	}
	return false
}
