// Package htmlgen writes the renderer HTML page: the entry point's template with
// deferred script tags for the emitted bundle appended to the head.
package htmlgen

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	ferrors "git.home.luguber.info/inful/forgepack/internal/foundation/errors"
)

var errNoHead = errors.New("document has no head element")

// Render reads templatePath, injects one script tag per entry of scripts and writes
// the result to outPath. Scripts already referenced by the template are not added
// twice.
func Render(templatePath, outPath string, scripts []string) error {
	src, err := os.ReadFile(templatePath)
	if err != nil {
		return ferrors.FileSystemError("cannot read HTML template").
			WithCause(err).
			WithContext("path", templatePath).
			Build()
	}
	out, err := Inject(src, scripts)
	if err != nil {
		return ferrors.CompileError("cannot parse HTML template").
			WithCause(err).
			WithContext("path", templatePath).
			Build()
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o750); err != nil {
		return ferrors.FileSystemError("cannot create output directory").
			WithCause(err).
			WithContext("path", outPath).
			Build()
	}
	if err := os.WriteFile(outPath, out, 0o600); err != nil {
		return ferrors.FileSystemError("cannot write HTML page").
			WithCause(err).
			WithContext("path", outPath).
			Build()
	}
	return nil
}

// Inject returns the document src with deferred script tags for scripts appended to <head>.
func Inject(src []byte, scripts []string) ([]byte, error) {
	doc, err := html.Parse(bytes.NewReader(src))
	if err != nil {
		return nil, err
	}

	existing := map[string]bool{}
	var head *html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Head:
				if head == nil {
					head = n
				}
			case atom.Script:
				for _, a := range n.Attr {
					if a.Key == "src" {
						existing[a.Val] = true
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	// html.Parse synthesizes html/head/body for any input.
	if head == nil {
		return nil, errNoHead
	}

	for _, s := range scripts {
		if s == "" || existing[s] {
			continue
		}
		existing[s] = true
		head.AppendChild(&html.Node{
			Type:     html.ElementNode,
			Data:     "script",
			DataAtom: atom.Script,
			Attr:     []html.Attribute{{Key: "defer"}, {Key: "src", Val: s}},
		})
	}

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
