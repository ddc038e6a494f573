package domain

import (
	"net/url"
	"path"
)

// fallbackName is used when the URL path carries no usable basename,
// e.g. "https://example.com/" or an unparseable URL.
const fallbackName = "download"

// OutputName derives the local file name from the URL path basename.
// Query strings and fragments are never part of the name.
func OutputName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fallbackName
	}

	name := path.Base(u.Path)
	switch name {
	case "", ".", "..", "/":
		return fallbackName
	}
	return name
}
