// CLAUDE:SUMMARY Extracts SEO-relevant metadata (title, meta tags, headings, counts) from archived HTML.
// Package meta extracts a fixed metadata record from an HTML document.
//
// The record carries the fields SEO change analysis compares between two
// captures: title, meta description/keywords/robots, canonical link, Open
// Graph tags, headings, and link/image/word counts.
package meta

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Record is the extracted metadata for one document.
type Record struct {
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	Keywords      string   `json:"keywords"`
	Robots        string   `json:"robots"`
	Canonical     string   `json:"canonical"`
	Lang          string   `json:"lang"`
	OGTitle       string   `json:"og_title"`
	OGDescription string   `json:"og_description"`
	OGImage       string   `json:"og_image"`
	H1            []string `json:"h1"`
	H2Count       int      `json:"h2_count"`
	H3Count       int      `json:"h3_count"`
	LinkCount     int      `json:"link_count"`
	ImageCount    int      `json:"image_count"`
	WordCount     int      `json:"word_count"`
}

// Parse extracts a Record from raw HTML.
func Parse(raw []byte) (*Record, error) {
	doc, err := html.Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("meta: parse html: %w", err)
	}

	rec := &Record{}
	var body *html.Node

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Html:
				if lang := attr(n, "lang"); lang != "" {
					rec.Lang = lang
				}
			case atom.Title:
				if rec.Title == "" {
					rec.Title = strings.TrimSpace(collectText(n))
				}
			case atom.Meta:
				readMeta(n, rec)
			case atom.Link:
				if strings.EqualFold(attr(n, "rel"), "canonical") && rec.Canonical == "" {
					rec.Canonical = attr(n, "href")
				}
			case atom.H1:
				if t := strings.TrimSpace(collectText(n)); t != "" {
					rec.H1 = append(rec.H1, t)
				}
			case atom.H2:
				rec.H2Count++
			case atom.H3:
				rec.H3Count++
			case atom.A:
				if attr(n, "href") != "" {
					rec.LinkCount++
				}
			case atom.Img:
				rec.ImageCount++
			case atom.Body:
				body = n
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if body != nil {
		rec.WordCount = len(strings.Fields(collectText(body)))
	}
	return rec, nil
}

// Text returns the document's visible text, whitespace-normalized. Script and
// style contents are skipped.
func Text(raw []byte) (string, error) {
	doc, err := html.Parse(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("meta: parse html: %w", err)
	}
	return strings.TrimSpace(collectText(doc)), nil
}

func readMeta(n *html.Node, rec *Record) {
	name := strings.ToLower(attr(n, "name"))
	property := strings.ToLower(attr(n, "property"))
	content := attr(n, "content")
	if content == "" {
		return
	}
	switch {
	case name == "description" && rec.Description == "":
		rec.Description = content
	case name == "keywords" && rec.Keywords == "":
		rec.Keywords = content
	case name == "robots" && rec.Robots == "":
		rec.Robots = content
	case property == "og:title" && rec.OGTitle == "":
		rec.OGTitle = content
	case property == "og:description" && rec.OGDescription == "":
		rec.OGDescription = content
	case property == "og:image" && rec.OGImage == "":
		rec.OGImage = content
	}
}

// collectText concatenates text nodes under n, skipping script/style, with
// single-space separation.
func collectText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript:
				return
			}
		}
		if n.Type == html.TextNode {
			trimmed := strings.TrimSpace(n.Data)
			if trimmed != "" {
				if sb.Len() > 0 {
					sb.WriteByte(' ')
				}
				sb.WriteString(trimmed)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}
