// Package transport obtains rendered documents either directly through the
// automated browser or through a rotating list of public relay endpoints.
package transport

import (
	"fmt"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/PuerkitoBio/goquery"
)

// Document is a loaded page, whichever path produced it.
type Document struct {
	URL   string
	Title string
	HTML  string
	// Via names the relay that served the page; empty for direct loads.
	Via string
}

func (d *Document) Parse() (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(d.HTML))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", d.URL, err)
	}

	return doc, nil
}

// Text returns the visible body text of the document.
func (d *Document) Text() string {
	doc, err := d.Parse()
	if err != nil {
		return ""
	}

	doc.Find("script, style, noscript").Remove()
	return strings.Join(strings.Fields(doc.Find("body").Text()), " ")
}

func titleOf(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}

	return strings.TrimSpace(doc.Find("title").First().Text())
}

type Policy string

const (
	Direct  Policy = "direct"
	Relayed Policy = "relayed"
)

func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case Direct, "":
		return Direct, nil
	case Relayed:
		return Relayed, nil
	default:
		return "", fmt.Errorf("unknown transport policy %q (want direct or relayed)", s)
	}
}

// Relay is a public fetch-through endpoint. Template carries {url} for the
// query-escaped target or {raw} for the target verbatim.
type Relay struct {
	Name     string `yaml:"name"`
	Template string `yaml:"template"`
}

func (r Relay) Expand(target string) string {
	out := strings.ReplaceAll(r.Template, "{url}", url.QueryEscape(target))
	return strings.ReplaceAll(out, "{raw}", target)
}

// DefaultRelays are public CORS relays; override them in configuration.
func DefaultRelays() []Relay {
	return []Relay{
		{Name: "allorigins", Template: "https://api.allorigins.win/raw?url={url}"},
		{Name: "corsproxy", Template: "https://corsproxy.io/?url={url}"},
		{Name: "codetabs", Template: "https://api.codetabs.com/v1/proxy?quest={raw}"},
	}
}

// State remembers the last relay that worked. It is shared by every
// selector built on it; concurrent updates may overwrite each other.
type State struct {
	idx atomic.Int64
}

func (s *State) Load() int   { return int(s.idx.Load()) }
func (s *State) Store(i int) { s.idx.Store(int64(i)) }

// Shared is the process-wide relay state.
var Shared = &State{}
