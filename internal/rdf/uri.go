package rdf

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	resourcePrefix = "urn:semdesk:res:"
	graphPrefix    = "urn:semdesk:graph:"
)

// NewResourceURI mints a fresh resource identifier.
func NewResourceURI() Term {
	return URI(resourcePrefix + uuid.NewString())
}

// NewGraphURI mints a fresh named-graph identifier.
func NewGraphURI() Term {
	return URI(graphPrefix + uuid.NewString())
}

// IsResourceURI reports whether uri was minted by NewResourceURI.
func IsResourceURI(uri string) bool {
	return strings.HasPrefix(uri, resourcePrefix)
}

// FileURL converts an absolute filesystem path into a file:// URL term.
func FileURL(path string) Term {
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(filepath.Clean(path))}
	return URI(u.String())
}

// PathFromURL converts a file:// URL back into a filesystem path.
func PathFromURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", raw, err)
	}
	if u.Scheme != "file" {
		return "", fmt.Errorf("not a file url: %q", raw)
	}
	if u.Path == "" {
		return "", fmt.Errorf("file url has no path: %q", raw)
	}
	return filepath.FromSlash(u.Path), nil
}

// DateTime returns an xsd:dateTime literal in UTC, second precision.
func DateTime(t time.Time) Term {
	return TypedLiteral(t.UTC().Truncate(time.Second).Format(time.RFC3339), XSDDateTime)
}

// ParseDateTime reads an xsd:dateTime literal written by DateTime.
func ParseDateTime(t Term) (time.Time, error) {
	if t.Kind != KindLiteral {
		return time.Time{}, fmt.Errorf("not a literal: %s", t)
	}
	return time.Parse(time.RFC3339, t.Value)
}

// Long returns an xsd:long literal.
func Long(n int64) Term {
	return TypedLiteral(fmt.Sprintf("%d", n), XSDLong)
}
