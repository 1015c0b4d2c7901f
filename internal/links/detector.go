// Package links builds document links and detects meeting URLs in agenda items.
package links

import (
	"regexp"

	"github.com/pkg/browser"
)

// DocumentURL joins the storage base URL and a document reference.
// The result is a plain concatenation and is not validated.
// An empty reference yields an empty string.
func DocumentURL(base, ref string) string {
	if ref == "" {
		return ""
	}
	return base + ref
}

// Link is a meeting link found in an agenda item.
type Link struct {
	URL     string `json:"url"`
	Service string `json:"service"`
}

type service struct {
	name string
	re   *regexp.Regexp
}

// Known video meeting services, checked before any generic URL.
var services = []service{
	{"Zoom", regexp.MustCompile(`https?://[\w.-]*zoom\.us/j/[\w?=&-]+`)},
	{"Teams", regexp.MustCompile(`https?://teams\.microsoft\.com/l/meetup-join/[\w%/-]+`)},
	{"Meet", regexp.MustCompile(`https?://meet\.google\.com/[\w-]+`)},
	{"Webex", regexp.MustCompile(`https?://[\w.-]*\.webex\.com/[\w./-]+`)},
}

var genericURL = regexp.MustCompile(`https?://[^\s<>"]+`)

// Detect finds a meeting link in the location, then the description.
// A known service anywhere in a field wins over a generic URL in that field.
// The zero Link is returned when nothing is found.
func Detect(location, description string) Link {
	for _, text := range []string{location, description} {
		if link, ok := detectIn(text); ok {
			return link
		}
	}
	return Link{}
}

func detectIn(text string) (Link, bool) {
	if text == "" {
		return Link{}, false
	}
	for _, s := range services {
		if match := s.re.FindString(text); match != "" {
			return Link{URL: match, Service: s.name}, true
		}
	}
	if match := genericURL.FindString(text); match != "" {
		return Link{URL: match, Service: "Meeting"}, true
	}
	return Link{}, false
}

// Service returns the name of the meeting service for a URL.
func Service(url string) string {
	for _, s := range services {
		if s.re.MatchString(url) {
			return s.name
		}
	}
	return "Meeting"
}

// Open opens a URL in the default browser.
func Open(url string) error {
	return browser.OpenURL(url)
}
