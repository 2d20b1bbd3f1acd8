// Package urlutil resolves BaseURL chains and expands segment URL templates.
package urlutil

import (
	"fmt"
	"net/url"
)

// Base is an accumulated base URL. The query of the most recently joined
// BaseURL is kept apart from the path and reattached to resolved references.
type Base struct {
	url   *url.URL
	query string
}

// NewBase starts a chain at the manifest location. An empty location yields
// a base that leaves relative references relative.
func NewBase(location string) (Base, error) {
	if location == "" {
		return Base{url: nil, query: ""}, nil
	}

	u, err := url.Parse(location)
	if nil != err {
		return Base{}, fmt.Errorf("parse manifest location: %v", err)
	}

	return Base{url: u, query: ""}, nil
}

// Join resolves ref against b. The result carries ref's query separately,
// replacing any query carried so far.
func (b Base) Join(ref string) (Base, error) {
	u, err := b.resolve(ref)
	if nil != err {
		return Base{}, err
	}

	query := u.RawQuery
	u.RawQuery = ""
	u.ForceQuery = false

	return Base{url: u, query: query}, nil
}

// Resolve returns the absolute URI of ref with the carried query attached.
func (b Base) Resolve(ref string) (string, error) {
	u, err := b.resolve(ref)
	if nil != err {
		return "", err
	}
	if b.query != "" {
		u.RawQuery = b.query
	}

	return u.String(), nil
}

func (b Base) Query() string {
	return b.query
}

func (b Base) String() string {
	if nil == b.url {
		return ""
	}

	return b.url.String()
}

func (b Base) resolve(ref string) (*url.URL, error) {
	r, err := url.Parse(ref)
	if nil != err {
		return nil, fmt.Errorf("parse url reference %q: %v", ref, err)
	}
	if nil == b.url {
		return r, nil
	}

	return b.url.ResolveReference(r), nil
}
