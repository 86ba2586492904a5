// Package generic implements a providers.Source for HTML comic sites
// described by a SiteProfile. Pages are fetched through the transport
// selector, paginated on the live tab when the profile asks for it, and
// reduced to catalog entries, details, chapters and page assets by the
// extract heuristics.
package generic
