package jsonapi

import (
	"encoding/json"
)

const ContentType = "application/vnd.api+json"

type Links struct {
	Self    string `json:"self,omitempty"`
	Related string `json:"related,omitempty"`
}

type PaginationLinks struct {
	Self     string `json:"self,omitempty"`
	Previous string `json:"prev,omitempty"`
	Next     string `json:"next,omitempty"`
}

type JSONAPIObject struct {
	Version string `json:"version,omitempty"`
}

/*
Document
The top-level {json:api} envelope. Data is kept raw because it can be a
resource object, an array of resource objects or null; the Serializer is
responsible for interpreting it.
*/
type Document struct {
	Data     json.RawMessage        `json:"data,omitempty"`
	Included []PayloadResource      `json:"included,omitempty"`
	Links    *PaginationLinks       `json:"links,omitempty"`
	Meta     map[string]interface{} `json:"meta,omitempty"`
	Errors   []ErrorItem            `json:"errors,omitempty"`
	JSONAPI  *JSONAPIObject         `json:"jsonapi,omitempty"`
}

type PayloadResource struct {
	Type          string                         `json:"type"`
	Id            string                         `json:"id,omitempty"`
	Attributes    map[string]interface{}         `json:"attributes,omitempty"`
	Relationships map[string]PayloadRelationship `json:"relationships,omitempty"`
	Links         *Links                         `json:"links,omitempty"`
	Meta          map[string]interface{}         `json:"meta,omitempty"`
}

// Data is null, a ResourceIdentifier or a list of them
type PayloadRelationship struct {
	Data  json.RawMessage `json:"data,omitempty"`
	Links *Links          `json:"links,omitempty"`
}

type ResourceIdentifier struct {
	Type string `json:"type,omitempty"`
	Id   string `json:"id,omitempty"`
}
