package index

import (
	"fmt"
	"regexp"
)

var identifierRE = regexp.MustCompile(`^(?:(?P<index>https?://[^/]+/pypi)/)?(?P<name>[-A-Za-z0-9._]+)(?:/(?P<version>[-A-Za-z0-9._+!]+))?$`)

// Identifier is a parsed package argument.
type Identifier struct {
	// IndexURL is the index base URL, DefaultIndexURL unless the argument named one.
	IndexURL string
	Name     string
	// Version is optional.
	Version string
}

// InvalidIdentifierError is returned for arguments that are neither a
// package name nor an index URL.
type InvalidIdentifierError struct {
	Input string
}

func (e *InvalidIdentifierError) Error() string {
	return fmt.Sprintf("invalid name or URL: %q", e.Input)
}

// ParseIdentifier parses "name", "name/version" or
// "http(s)://host/pypi/name[/version]". defaultIndex is used when the
// argument carries no index URL; empty means DefaultIndexURL.
func ParseIdentifier(input, defaultIndex string) (Identifier, error) {
	m := identifierRE.FindStringSubmatch(input)
	if m == nil {
		return Identifier{}, &InvalidIdentifierError{Input: input}
	}

	id := Identifier{
		IndexURL: m[identifierRE.SubexpIndex("index")],
		Name:     m[identifierRE.SubexpIndex("name")],
		Version:  m[identifierRE.SubexpIndex("version")],
	}
	if id.IndexURL == "" {
		id.IndexURL = defaultIndex
	}
	if id.IndexURL == "" {
		id.IndexURL = DefaultIndexURL
	}
	return id, nil
}
