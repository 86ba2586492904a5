package chapters

import (
	"encoding/xml"
	"strings"

	"github.com/brogergvhs/mangasrc/internal/providers"
)

// ComicInfoName is the metadata entry comic readers look for in a CBZ.
const ComicInfoName = "ComicInfo.xml"

type comicInfo struct {
	XMLName   xml.Name `xml:"ComicInfo"`
	Title     string   `xml:"Title,omitempty"`
	Series    string   `xml:"Series,omitempty"`
	Number    string   `xml:"Number,omitempty"`
	Summary   string   `xml:"Summary,omitempty"`
	Writer    string   `xml:"Writer,omitempty"`
	Genre     string   `xml:"Genre,omitempty"`
	PageCount int      `xml:"PageCount,omitempty"`
	Web       string   `xml:"Web,omitempty"`
}

// ComicInfo renders the archive metadata of a chapter. Placeholder values
// are left out.
func ComicInfo(c Chapter, d providers.WorkDetails, pages int) ([]byte, error) {
	keep := func(s string) string {
		if s == providers.Unknown {
			return ""
		}
		return s
	}

	series := keep(d.Title)
	if series == "" {
		series = c.Work
	}

	ci := comicInfo{
		Title:     c.DisplayTitle,
		Series:    series,
		Number:    c.Key.Label,
		Summary:   keep(d.Synopsis),
		Writer:    keep(d.Author),
		Genre:     strings.Join(d.Genres, ", "),
		PageCount: pages,
		Web:       c.ReadURL,
	}

	out, err := xml.MarshalIndent(ci, "", "  ")
	if err != nil {
		return nil, err
	}

	return append([]byte(xml.Header), out...), nil
}
