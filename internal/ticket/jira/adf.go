package jira

import (
	"strings"

	"github.com/linnemanlabs/soarbridge/internal/triage"
)

// node is an Atlassian Document Format node. Only the handful of node types
// case documents need are produced.
type node struct {
	Type    string         `json:"type"`
	Version int            `json:"version,omitempty"`
	Attrs   map[string]any `json:"attrs,omitempty"`
	Content []node         `json:"content,omitempty"`
	Text    string         `json:"text,omitempty"`
}

// toADF renders d as an ADF document: a level-3 heading per section, then a
// paragraph (lines joined with hard breaks) or a code block.
func toADF(d triage.Document) node {
	doc := node{Type: "doc", Version: 1, Content: []node{}}
	for _, s := range d {
		if s.Heading != "" {
			doc.Content = append(doc.Content, node{
				Type:    "heading",
				Attrs:   map[string]any{"level": 3},
				Content: []node{{Type: "text", Text: s.Heading}},
			})
		}
		if s.Body == "" {
			continue
		}
		if s.Code {
			doc.Content = append(doc.Content, node{
				Type:    "codeBlock",
				Content: []node{{Type: "text", Text: s.Body}},
			})
			continue
		}
		doc.Content = append(doc.Content, paragraph(s.Body))
	}
	return doc
}

func paragraph(body string) node {
	p := node{Type: "paragraph"}
	for i, line := range strings.Split(body, "\n") {
		if i > 0 {
			p.Content = append(p.Content, node{Type: "hardBreak"})
		}
		if line != "" {
			p.Content = append(p.Content, node{Type: "text", Text: line})
		}
	}
	return p
}
