package generic

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/brogergvhs/mangasrc/internal/extract"
	"github.com/brogergvhs/mangasrc/internal/providers"
	"github.com/brogergvhs/mangasrc/internal/transport"
)

type Pagination string

const (
	PageNone     Pagination = "none"
	PageNumbered Pagination = "numbered"
	PageReveal   Pagination = "reveal"
	PageScroll   Pagination = "scroll"
)

// ListingSpec describes the search/browse listing of a site. URL templates
// accept {base}, {query}, {page}, {genres}, {type}, {status} and {sort}.
type ListingSpec struct {
	URL        string           `yaml:"url"`
	BrowseURL  string           `yaml:"browse_url"`
	Pagination Pagination       `yaml:"pagination"`
	Cards      extract.CardSpec `yaml:"cards"`
	// NextSelector marks a "next page" control; its presence sets HasMore.
	NextSelector string   `yaml:"next_selector"`
	LoadMore     []string `yaml:"load_more"`
}

// ChapterSpec describes the chapter list. URL defaults to the work URL.
type ChapterSpec struct {
	URL             string     `yaml:"url"`
	Selector        string     `yaml:"selector"`
	Pagination      Pagination `yaml:"pagination"`
	ItemSelector    string     `yaml:"item_selector"`
	RevealSelectors []string   `yaml:"reveal_selectors"`
}

// ReaderSpec describes a chapter reading page. Sites that obfuscate asset
// URLs publish encoded tokens either in TokenAttr attributes or in an
// inline script array named TokenVar.
type ReaderSpec struct {
	URL         string   `yaml:"url"`
	Container   string   `yaml:"container"`
	AllowExt    []string `yaml:"allow_ext"`
	TokenAttr   string   `yaml:"token_attr"`
	TokenVar    string   `yaml:"token_var"`
	AssetBase   string   `yaml:"asset_base"`
	KeyPatterns []string `yaml:"key_patterns"`
	// KeyVar names an inline script variable holding the page key. It is
	// tried before KeyPatterns.
	KeyVar string `yaml:"key_var"`
	// Keys are known fallback cipher keys, newest first.
	Keys []string `yaml:"keys"`
}

func (r ReaderSpec) Obfuscated() bool {
	return r.TokenAttr != "" || r.TokenVar != ""
}

// SiteProfile is everything that differs between two sites.
type SiteProfile struct {
	Name      string            `yaml:"name"`
	BaseURL   string            `yaml:"base_url"`
	Transport transport.Policy  `yaml:"transport"`
	Search    ListingSpec       `yaml:"search"`
	WorkURL   string            `yaml:"work_url"`
	Details   extract.Selectors `yaml:"details"`
	Chapters  ChapterSpec       `yaml:"chapters"`
	Reader    ReaderSpec        `yaml:"reader"`
}

func (p SiteProfile) Validate() error {
	switch {
	case strings.TrimSpace(p.Name) == "":
		return fmt.Errorf("profile: missing name")
	case p.BaseURL == "":
		return fmt.Errorf("profile %s: missing base_url", p.Name)
	case p.WorkURL == "":
		return fmt.Errorf("profile %s: missing work_url", p.Name)
	}

	if _, err := transport.ParsePolicy(string(p.Transport)); err != nil {
		return fmt.Errorf("profile %s: %w", p.Name, err)
	}

	for _, pg := range []Pagination{p.Search.Pagination, p.Chapters.Pagination} {
		switch pg {
		case "", PageNone, PageNumbered, PageReveal, PageScroll:
		default:
			return fmt.Errorf("profile %s: unknown pagination %q", p.Name, pg)
		}
	}

	return nil
}

func (p SiteProfile) expand(tpl string, vars map[string]string) string {
	pairs := []string{"{base}", strings.TrimRight(p.BaseURL, "/")}
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}

	return strings.NewReplacer(pairs...).Replace(tpl)
}

func (p SiteProfile) searchURL(q providers.SearchQuery, page int) string {
	tpl := p.Search.URL
	if strings.TrimSpace(q.Text) == "" && p.Search.BrowseURL != "" {
		tpl = p.Search.BrowseURL
	}

	return p.expand(tpl, map[string]string{
		"query":  url.QueryEscape(strings.TrimSpace(q.Text)),
		"page":   strconv.Itoa(page),
		"genres": url.QueryEscape(strings.Join(q.Genres, ",")),
		"type":   url.QueryEscape(q.Type),
		"status": url.QueryEscape(q.Status),
		"sort":   url.QueryEscape(q.Sort),
	})
}

func (p SiteProfile) workURL(slug string) string {
	return p.expand(p.WorkURL, map[string]string{"slug": url.PathEscape(slug)})
}

func (p SiteProfile) chaptersURL(slug string) string {
	if p.Chapters.URL == "" {
		return p.workURL(slug)
	}

	return p.expand(p.Chapters.URL, map[string]string{"slug": url.PathEscape(slug)})
}

func (p SiteProfile) readerURL(slug, chapter string) string {
	if p.Reader.URL == "" || slug == "" || chapter == "" {
		return ""
	}

	return p.expand(p.Reader.URL, map[string]string{
		"slug":    url.PathEscape(slug),
		"chapter": url.PathEscape(chapter),
	})
}

// DefaultProfiles are shipped examples of the three listing styles. Their
// hosts are placeholders; real sites are configured per profile file.
func DefaultProfiles() []SiteProfile {
	return []SiteProfile{
		{
			Name:      "lector",
			BaseURL:   "https://lector.example",
			Transport: transport.Relayed,
			Search: ListingSpec{
				URL:          "{base}/library?title={query}&genders={genres}&type={type}&status={status}&order_item={sort}&page={page}",
				Pagination:   PageNumbered,
				Cards:        extract.CardSpec{Item: ".element", Title: ".thumbnail-title h4", SlugPattern: `/library/[^/]+/\d+/([^/]+)`},
				NextSelector: `a[rel="next"], .pagination .page-item:last-child:not(.disabled) a`,
			},
			WorkURL: "{base}/library/manga/{slug}",
			Details: extract.Selectors{
				Title:     []string{"h1.element-title", "h2.element-subtitle"},
				Cover:     []string{".book-thumbnail"},
				Synopsis:  []string{"p.element-description"},
				Status:    []string{".book-status"},
				Genres:    []string{"h6 a.badge"},
				AltTitles: []string{".element-alternative-title"},
			},
			Chapters: ChapterSpec{Selector: "#chapters li.upload-link a", Pagination: PageNone},
		},
		{
			Name:      "visor",
			BaseURL:   "https://visor.example",
			Transport: transport.Direct,
			Search: ListingSpec{
				URL:        "{base}/series?search={query}&genre={genres}&status={status}&sort={sort}",
				BrowseURL:  "{base}/series?sort={sort}",
				Pagination: PageReveal,
				Cards:      extract.CardSpec{Item: "a.series-card", Title: ".series-title", SlugPattern: `/series/([^/]+)`},
				LoadMore:   []string{"button.load-more"},
			},
			WorkURL: "{base}/series/{slug}",
			Details: extract.Selectors{
				Title:             []string{"h1"},
				Synopsis:          []string{"#synopsis .full"},
				SynopsisTruncated: []string{"#synopsis .preview"},
				Status:            []string{".status-badge"},
				Genres:            []string{".genre-list a"},
			},
			Chapters: ChapterSpec{
				Selector:        ".chapter-list a[href]",
				Pagination:      PageReveal,
				ItemSelector:    ".chapter-list a[href]",
				RevealSelectors: []string{"button.show-more-chapters", "[data-action='load-chapters']"},
			},
			Reader: ReaderSpec{
				URL:       "{base}/series/{slug}/chapter-{chapter}",
				TokenAttr: "data-enc",
				AssetBase: "https://cdn.visor.example",
				Keys:      []string{"v3-k9zq", "v2-hx71", "v1-a0b2"},
			},
		},
		{
			Name:      "scrolls",
			BaseURL:   "https://scrolls.example",
			Transport: transport.Direct,
			Search: ListingSpec{
				URL:        "{base}/search?q={query}&genres={genres}&type={type}",
				Pagination: PageScroll,
				Cards:      extract.CardSpec{Item: "article.comic", Link: "a.comic-link", Title: ".comic-name"},
				LoadMore:   []string{"button.more"},
			},
			WorkURL:  "{base}/comic/{slug}",
			Chapters: ChapterSpec{Selector: "ul.episodes a", Pagination: PageScroll},
			Reader:   ReaderSpec{URL: "{base}/comic/{slug}/{chapter}", Container: ".reader"},
		},
	}
}
