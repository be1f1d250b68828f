package jsonapi

import (
	"fmt"
	"net/url"
	"strings"
)

type TrailingSlash struct {
	Resource   bool
	Collection bool
}

/*
URLBuilder
Composes collection and resource URLs. APIURL's own trailing slashes are
ignored, so the result never contains a double slash.

    builder := URLBuilder{
        APIURL:        "http://localhost:8888/api/",
        TrailingSlash: TrailingSlash{Collection: true},
        Pluralize:     true,
        Registry:      registry,
    }
    builder.CollectionURL("application")     // .../api/applications/
    builder.ResourceURL("application", "3")  // .../api/applications/3
*/
type URLBuilder struct {
	APIURL        string
	TrailingSlash TrailingSlash
	Pluralize     bool
	Registry      *Registry
}

func (b URLBuilder) CollectionURL(Type string) (string, error) {
	segment, err := b.segment(Type)
	if err != nil {
		return "", err
	}
	return b.join(b.TrailingSlash.Collection, segment), nil
}

func (b URLBuilder) ResourceURL(Type, Id string) (string, error) {
	if Id == "" {
		return "", &FieldError{Type: Type, Field: "id", Reason: "is empty"}
	}
	if isDotSegment(Id) {
		return "", &FieldError{
			Type: Type, Field: "id", Reason: fmt.Sprintf("cannot be '%s'", Id),
		}
	}
	segment, err := b.segment(Type)
	if err != nil {
		return "", err
	}
	return b.join(b.TrailingSlash.Resource, segment, url.PathEscape(Id)), nil
}

// Resolve a (possibly relative) reference, like a Location header, against
// the URL a request was sent to
func (b URLBuilder) Resolve(base, reference string) (string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	referenceURL, err := url.Parse(reference)
	if err != nil {
		return "", err
	}
	return baseURL.ResolveReference(referenceURL).String(), nil
}

func (b URLBuilder) segment(Type string) (string, error) {
	if b.Registry == nil {
		return "", &UnknownTypeError{Type: Type}
	}
	schema, err := b.Registry.Lookup(Type)
	if err != nil {
		return "", err
	}
	if schema.Path != "" {
		return schema.Path, nil
	}
	if b.Pluralize {
		return Pluralize(Type), nil
	}
	return Type, nil
}

func (b URLBuilder) join(trailingSlash bool, segments ...string) string {
	result := strings.TrimRight(b.APIURL, "/") + "/" +
		strings.Join(segments, "/")
	if trailingSlash {
		result += "/"
	}
	return result
}

/*
Pluralize
English suffix rule, nothing more:

- "s", "x", "z", "ch" or "sh" endings get "es" (class -> classes)

- a consonant followed by "y" becomes "ies" (policy -> policies)

- everything else gets "s" (application -> applications)

Irregular plurals (person -> people) need an explicit Schema.Path.
*/
func Pluralize(word string) string {
	switch {
	case word == "":
		return word
	case strings.HasSuffix(word, "s"),
		strings.HasSuffix(word, "x"),
		strings.HasSuffix(word, "z"),
		strings.HasSuffix(word, "ch"),
		strings.HasSuffix(word, "sh"):
		return word + "es"
	case strings.HasSuffix(word, "y") && len(word) > 1 &&
		!strings.ContainsRune("aeiou", rune(word[len(word)-2])):
		return word[:len(word)-1] + "ies"
	default:
		return word + "s"
	}
}

// "." and ".." survive path escaping and would point at another resource
func isDotSegment(segment string) bool {
	return segment == "." || segment == ".."
}
