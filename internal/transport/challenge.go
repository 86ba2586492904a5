package transport

import "strings"

var (
	challengeTitles = []string{
		"just a moment",
		"attention required",
		"checking your browser",
		"ddos-guard",
		"please wait",
		"verifying you are human",
		"un momento",
	}
	blockMarkers = []string{
		"access denied",
		"error 1020",
		"error 1015",
		"sorry, you have been blocked",
	}
)

// Blocked reports whether a page carries the signature of an anti-bot
// interstitial or block page. It does not judge how much content the page
// has; short but genuine pages pass.
func Blocked(title, text, html string) bool {
	lt := strings.ToLower(title)
	for _, m := range challengeTitles {
		if strings.Contains(lt, m) {
			return true
		}
	}

	if strings.Contains(html, "cf-error") || strings.Contains(html, "cf-browser-verification") {
		return true
	}

	body := strings.ToLower(strings.TrimSpace(text))
	if len(body) < 2000 {
		for _, m := range blockMarkers {
			if strings.Contains(body, m) {
				return true
			}
		}
	}

	return false
}
