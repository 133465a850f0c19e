package analyzer

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
)

// Class prefixes of common CSS frameworks; classes starting with them are not counted as custom.
var frameworkClassPrefixes = []string{"btn", "col", "row", "container", "nav", "card"}

type markerSet struct {
	name    string
	markers []string
}

var (
	frameworkMarkers = []markerSet{
		{"React", []string{"react", "jsx"}},
		{"Vue", []string{"vue", "v-"}},
		{"Angular", []string{"angular", "ng-"}},
		{"Svelte", []string{"svelte"}},
	}
	libraryMarkers = []markerSet{
		{"Bootstrap", []string{"bootstrap"}},
		{"Tailwind", []string{"tailwind"}},
		{"Bulma", []string{"bulma"}},
		{"Materialize", []string{"materialize"}},
		{"jQuery", []string{"jquery"}},
		{"Charting/Data Viz", []string{"d3", "chart"}},
		{"Three.js", []string{"three"}},
		{"Socket.io", []string{"socket.io"}},
	}
)

// markup is the static breakdown of one HTML document.
type markup struct {
	Title         string
	Elements      int
	Forms         int
	Buttons       int
	Inputs        int
	Scripts       int
	IDs           int
	CustomClasses map[string]struct{}
	CSS           []string
	CSSExternal   int
	JS            []string
	JSExternal    int
	Links         []string
	HasStyle      bool
	BodyHTML      string
	text          strings.Builder
}

func (m *markup) Text() string {
	return strings.Join(strings.Fields(m.text.String()), " ")
}

func (m *markup) CSSSource() string {
	return strings.Join(m.CSS, "\n")
}

func (m *markup) JSSource() string {
	return strings.Join(m.JS, "\n")
}

func parseMarkup(source string) (*markup, error) {
	doc, err := html.Parse(strings.NewReader(source))
	if err != nil {
		return nil, err
	}

	m := &markup{CustomClasses: map[string]struct{}{}}
	var body *html.Node

	var walk func(n *html.Node, inScriptOrStyle bool)
	walk = func(n *html.Node, inScriptOrStyle bool) {
		switch n.Type {
		case html.TextNode:
			if !inScriptOrStyle {
				m.text.WriteString(n.Data)
				m.text.WriteByte(' ')
			}
		case html.ElementNode:
			m.Elements++
			m.inspectAttributes(n)

			switch n.Data {
			case "body":
				if body == nil {
					body = n
				}
			case "title":
				if m.Title == "" {
					m.Title = strings.TrimSpace(textContent(n))
				}
			case "form":
				m.Forms++
			case "button":
				m.Buttons++
			case "input":
				m.Inputs++
			case "a":
				if href, ok := attr(n, "href"); ok && href != "" {
					m.Links = append(m.Links, href)
				}
			case "link":
				if rel, ok := attr(n, "rel"); ok && hasToken(rel, "stylesheet") {
					m.CSSExternal++
				}
			case "style":
				m.HasStyle = true
				m.CSS = append(m.CSS, textContent(n))
			case "script":
				m.Scripts++
				if src, ok := attr(n, "src"); ok && src != "" {
					m.JSExternal++
				} else if code := textContent(n); code != "" {
					m.JS = append(m.JS, code)
				}
			}
		}

		childInScript := inScriptOrStyle || (n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style"))
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, childInScript)
		}
	}
	walk(doc, false)

	root := body
	if root == nil {
		root = doc
	}
	var buf bytes.Buffer
	if err := html.Render(&buf, root); err == nil {
		m.BodyHTML = buf.String()
	}

	return m, nil
}

func (m *markup) inspectAttributes(n *html.Node) {
	for _, a := range n.Attr {
		key := strings.ToLower(a.Key)
		switch {
		case key == "style":
			m.HasStyle = true
			m.CSS = append(m.CSS, a.Val)
		case key == "id":
			m.IDs++
		case key == "class":
			for _, class := range strings.Fields(a.Val) {
				if !hasAnyPrefix(class, frameworkClassPrefixes) {
					m.CustomClasses[class] = struct{}{}
				}
			}
		case strings.HasPrefix(key, "on"):
			m.JS = append(m.JS, a.Val)
		}
	}
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val, true
		}
	}
	return "", false
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var collect func(*html.Node)
	collect = func(node *html.Node) {
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)
	return sb.String()
}

func hasToken(value, token string) bool {
	for _, field := range strings.Fields(strings.ToLower(value)) {
		if field == token {
			return true
		}
	}
	return false
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func countNonEmptyLines(s string) int {
	count := 0
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) != "" {
			count++
		}
	}
	return count
}

func detectMarkers(lowerSource string, sets []markerSet) []string {
	found := []string{}
	for _, set := range sets {
		for _, marker := range set.markers {
			if strings.Contains(lowerSource, marker) {
				found = append(found, set.name)
				break
			}
		}
	}
	return found
}

func detectJSFeatures(js, page string) []string {
	features := []string{}
	if strings.Contains(js, "fetch(") || strings.Contains(js, "axios") || strings.Contains(js, "XMLHttpRequest") {
		features = append(features, "API calls")
	}
	if strings.Contains(js, "localStorage") || strings.Contains(js, "sessionStorage") {
		features = append(features, "Local storage")
	}
	if strings.Contains(js, "addEventListener") || strings.Contains(strings.ToLower(page), "onclick") {
		features = append(features, "Event handling")
	}
	if strings.Contains(js, "class ") && strings.Contains(js, "constructor") {
		features = append(features, "ES6 classes")
	}
	if strings.Contains(js, "async ") || strings.Contains(js, "await ") || strings.Contains(js, "Promise") {
		features = append(features, "Async/Promises")
	}
	return features
}
