// Package xmlnode exposes a parsed XML document as a generic element tree.
package xmlnode

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Node is the read-only view of an XML element the MPD builder walks.
type Node interface {
	// Name is the element's local name.
	Name() string
	// Attr looks an attribute up by local name, ignoring its namespace.
	Attr(name string) (string, bool)
	// Children are the child elements in document order.
	Children() []Node
	// Text is the concatenated character data of the element and its descendants.
	Text() string
	// Namespace resolves an in-scope prefix. The empty prefix is the default namespace.
	Namespace(prefix string) (string, bool)
}

var ErrEmptyDocument = errors.New("document has no root element")

type Element struct {
	name       string
	attrs      []xml.Attr
	children   []*Element
	text       strings.Builder
	namespaces map[string]string
}

func (e *Element) Name() string {
	return e.name
}

func (e *Element) Attr(name string) (string, bool) {
	for _, a := range e.attrs {
		if a.Name.Local == name && a.Name.Space != "xmlns" {
			return a.Value, true
		}
	}

	return "", false
}

func (e *Element) Children() []Node {
	out := make([]Node, len(e.children))
	for i, c := range e.children {
		out[i] = c
	}

	return out
}

func (e *Element) Text() string {
	var sb strings.Builder
	e.collectText(&sb)

	return sb.String()
}

func (e *Element) collectText(sb *strings.Builder) {
	sb.WriteString(e.text.String())
	for _, c := range e.children {
		c.collectText(sb)
	}
}

func (e *Element) Namespace(prefix string) (string, bool) {
	uri, ok := e.namespaces[prefix]
	return uri, ok
}

// Parse decodes data into an element tree and returns its root.
func Parse(data []byte) (*Element, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = true

	var (
		root  *Element
		stack []*Element
	)
	for {
		tok, err := dec.RawToken()
		if nil != err {
			if errors.Is(err, io.EOF) {
				break
			}

			return nil, fmt.Errorf("decode xml token: %v", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			var parentNS map[string]string
			if len(stack) > 0 {
				parentNS = stack[len(stack)-1].namespaces
			}
			el := &Element{
				name:       t.Name.Local,
				attrs:      t.Copy().Attr,
				children:   nil,
				text:       strings.Builder{},
				namespaces: scopeNamespaces(parentNS, t.Attr),
			}

			if len(stack) == 0 {
				if nil != root {
					return nil, errors.New("document has more than one root element")
				}
				root = el
			} else {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, el)
			}
			stack = append(stack, el)
		case xml.EndElement:
			if len(stack) == 0 {
				return nil, fmt.Errorf("unexpected end element %s", t.Name.Local)
			}
			if top := stack[len(stack)-1]; top.name != t.Name.Local {
				return nil, fmt.Errorf("element %s closed by %s", top.name, t.Name.Local)
			}
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text.Write(t)
			}
		}
	}

	if len(stack) != 0 {
		return nil, fmt.Errorf("unclosed element %s", stack[len(stack)-1].name)
	}

	if nil == root {
		return nil, ErrEmptyDocument
	}

	return root, nil
}

func scopeNamespaces(parent map[string]string, attrs []xml.Attr) map[string]string {
	ns := make(map[string]string, len(parent)+2)
	for k, v := range parent {
		ns[k] = v
	}

	for _, a := range attrs {
		switch {
		case a.Name.Space == "" && a.Name.Local == "xmlns":
			ns[""] = a.Value
		case a.Name.Space == "xmlns":
			ns[a.Name.Local] = a.Value
		}
	}

	return ns
}
