package sandbox

import (
	"bytes"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

type language int

const (
	langJavaScript language = iota
	langStarlark
)

type script struct {
	name     string
	lang     language
	source   string
	external string
}

// document is the markup side of a realm. Scripts may mutate the tree while
// the host renders it, so every tree access goes through mu.
type document struct {
	mu      sync.Mutex
	root    *html.Node
	scripts []script
}

func parseDocument(src string) (*document, error) {
	root, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	d := &document{root: root}
	d.scripts = collectScripts(root)
	return d, nil
}

func collectScripts(root *html.Node) []script {
	var out []script
	walk(root, func(n *html.Node) bool {
		if n.Type != html.ElementNode || n.DataAtom != atom.Script {
			return true
		}
		lang, ok := scriptLanguage(attr(n, "type"))
		if !ok {
			return false
		}
		out = append(out, script{
			name:     fmt.Sprintf("script-%d", len(out)+1),
			lang:     lang,
			source:   textOf(n),
			external: strings.TrimSpace(attr(n, "src")),
		})
		return false
	})
	return out
}

// scriptLanguage maps a script type attribute to a language; data blocks and
// unknown types are skipped the way browsers skip them.
func scriptLanguage(typ string) (language, bool) {
	typ = strings.ToLower(strings.TrimSpace(typ))
	if i := strings.IndexByte(typ, ';'); i >= 0 {
		typ = strings.TrimSpace(typ[:i])
	}
	switch typ {
	case "", "text/javascript", "application/javascript", "text/ecmascript",
		"application/ecmascript", "module":
		return langJavaScript, true
	case "text/x-starlark", "text/starlark", "application/x-starlark":
		return langStarlark, true
	default:
		return 0, false
	}
}

// walk visits n and its descendants depth-first; visit returns false to skip children.
func walk(n *html.Node, visit func(*html.Node) bool) {
	if !visit(n) {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, visit)
	}
}

func find(n *html.Node, match func(*html.Node) bool) *html.Node {
	var found *html.Node
	walk(n, func(c *html.Node) bool {
		if found != nil {
			return false
		}
		if c.Type == html.ElementNode && match(c) {
			found = c
			return false
		}
		return true
	})
	return found
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return true
		}
	}
	return false
}

func setAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Namespace == "" && n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func textOf(n *html.Node) string {
	var b strings.Builder
	walk(n, func(c *html.Node) bool {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
		return true
	})
	return b.String()
}

func removeChildren(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
}

func setText(n *html.Node, text string) {
	removeChildren(n)
	if text != "" {
		n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	}
}

func innerHTML(n *html.Node) string {
	var buf bytes.Buffer
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		_ = html.Render(&buf, c)
	}
	return buf.String()
}

func setInnerHTML(n *html.Node, markup string) error {
	nodes, err := html.ParseFragment(strings.NewReader(markup), n)
	if err != nil {
		return err
	}
	removeChildren(n)
	for _, c := range nodes {
		n.AppendChild(c)
	}
	return nil
}

func newElement(tag string) *html.Node {
	tag = strings.ToLower(strings.TrimSpace(tag))
	return &html.Node{Type: html.ElementNode, Data: tag, DataAtom: atom.Lookup([]byte(tag))}
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

// querySelector supports the selector forms beginner exercises use:
// "#id", ".class", "tag" and "tag.class".
func querySelector(root *html.Node, selector string) *html.Node {
	selector = strings.TrimSpace(selector)
	switch {
	case selector == "":
		return nil
	case strings.HasPrefix(selector, "#"):
		id := selector[1:]
		return find(root, func(n *html.Node) bool { return attr(n, "id") == id })
	}

	tag, class, _ := strings.Cut(selector, ".")
	tag = strings.ToLower(tag)
	return find(root, func(n *html.Node) bool {
		if tag != "" && n.Data != tag {
			return false
		}
		return class == "" || hasClass(n, class)
	})
}

func (d *document) body() *html.Node {
	return find(d.root, func(n *html.Node) bool { return n.DataAtom == atom.Body })
}

func (d *document) title() *html.Node {
	return find(d.root, func(n *html.Node) bool { return n.DataAtom == atom.Title })
}

func (d *document) render() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	var buf bytes.Buffer
	if err := html.Render(&buf, d.root); err != nil {
		return ""
	}
	return buf.String()
}
