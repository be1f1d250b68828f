package jsonapi

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/blang/semver"
	"github.com/tidwall/gjson"
)

// Serializer converts between records and documents using the schemas of
// a Registry
type Serializer struct {
	Registry *Registry
}

/*
Payload
Result of Deserialize. Plural tells whether 'data' was an array; a null
'data' gives an empty, non-plural payload.
*/
type Payload struct {
	Document Document
	Records  []*Record
	Plural   bool
}

/*
Serialize
Wrap a record in a {json:api} document. Every attribute and relationship of
the record must be declared by its type's schema. The 'id' member is omitted
when the record has no Id (create requests).
*/
func (s Serializer) Serialize(record *Record) (*Document, error) {
	resource, err := s.toPayload(record)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(resource)
	if err != nil {
		return nil, err
	}
	return &Document{Data: data}, nil
}

func (s Serializer) toPayload(record *Record) (PayloadResource, error) {
	result := PayloadResource{Type: record.Type, Id: record.Id}
	schema, err := s.lookup(record.Type)
	if err != nil {
		return result, err
	}

	if len(record.Attributes) > 0 {
		result.Attributes = make(map[string]interface{}, len(record.Attributes))
	}
	for key, value := range record.Attributes {
		if _, exists := schema.Attributes[key]; !exists {
			return result, &FieldError{
				Type: record.Type, Field: key, Reason: "is not declared",
			}
		}
		result.Attributes[key] = value
	}

	if len(record.Relationships) > 0 {
		result.Relationships = make(
			map[string]PayloadRelationship, len(record.Relationships),
		)
	}
	for key, relation := range record.Relationships {
		definition, exists := schema.Relationships[key]
		if !exists {
			return result, &FieldError{
				Type: record.Type, Field: key, Reason: "is not declared",
			}
		}
		data, err := relationData(record.Type, key, definition, relation)
		if err != nil {
			return result, err
		}
		result.Relationships[key] = PayloadRelationship{Data: data}
	}

	return result, nil
}

func relationData(
	Type, field string, definition RelationshipDef, relation Relation,
) (json.RawMessage, error) {
	if relation.Cardinality != 0 &&
		relation.Cardinality != definition.Cardinality {
		return nil, &FieldError{
			Type:  Type,
			Field: field,
			Reason: fmt.Sprintf(
				"must be %s, not %s", definition.Cardinality,
				relation.Cardinality,
			),
		}
	}
	for _, identifier := range relation.Data {
		if identifier.Type != definition.Type || identifier.Id == "" {
			return nil, &FieldError{
				Type:  Type,
				Field: field,
				Reason: fmt.Sprintf(
					"must reference %s records by id, got %s '%s'",
					definition.Type, identifier.Type, identifier.Id,
				),
			}
		}
	}

	if definition.Cardinality == SINGULAR {
		switch len(relation.Data) {
		case 0:
			return json.RawMessage("null"), nil
		case 1:
			return json.Marshal(relation.Data[0])
		default:
			return nil, &FieldError{
				Type:   Type,
				Field:  field,
				Reason: "is to-one but references more than one record",
			}
		}
	}
	data := relation.Data
	if data == nil {
		data = []ResourceIdentifier{}
	}
	return json.Marshal(data)
}

/*
Deserialize
Parse a response body. 'data' holding an object yields one record, an array
yields the records in the order the server sent them.
*/
func (s Serializer) Deserialize(body []byte) (*Payload, error) {
	if !gjson.ValidBytes(body) {
		return nil, &MalformedDocumentError{Reason: "body is not valid JSON"}
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return nil, &MalformedDocumentError{
			Pointer: "/", Reason: "document must be an object",
		}
	}
	data := root.Get("data")
	if !data.Exists() {
		return nil, &MalformedDocumentError{
			Pointer: "/data", Reason: "document has no primary data",
		}
	}

	var payload Payload
	err := json.Unmarshal(body, &payload.Document)
	if err != nil {
		return nil, &MalformedDocumentError{Reason: "cannot decode", Err: err}
	}
	err = checkVersion(payload.Document.JSONAPI)
	if err != nil {
		return nil, err
	}

	switch {
	case data.IsArray():
		payload.Plural = true
		items := data.Array()
		payload.Records = make([]*Record, 0, len(items))
		for i, item := range items {
			record, err := s.toRecord(item, fmt.Sprintf("/data/%d", i))
			if err != nil {
				return nil, err
			}
			payload.Records = append(payload.Records, record)
		}
	case data.IsObject():
		record, err := s.toRecord(data, "/data")
		if err != nil {
			return nil, err
		}
		payload.Records = []*Record{record}
	case data.Type == gjson.Null:
		payload.Records = []*Record{}
	default:
		return nil, &MalformedDocumentError{
			Pointer: "/data",
			Reason:  "primary data must be an object, an array or null",
		}
	}
	return &payload, nil
}

func (s Serializer) toRecord(item gjson.Result, pointer string) (*Record, error) {
	if !item.IsObject() {
		return nil, &MalformedDocumentError{
			Pointer: pointer, Reason: "resource object must be an object",
		}
	}
	var resource PayloadResource
	err := json.Unmarshal([]byte(item.Raw), &resource)
	if err != nil {
		return nil, &MalformedDocumentError{
			Pointer: pointer, Reason: "cannot decode resource object", Err: err,
		}
	}
	if resource.Type == "" {
		return nil, &MalformedDocumentError{
			Pointer: pointer + "/type", Reason: "resource object has no type",
		}
	}
	schema, err := s.lookup(resource.Type)
	if err != nil {
		return nil, err
	}

	record := &Record{
		Type:          resource.Type,
		Id:            resource.Id,
		Attributes:    make(map[string]interface{}, len(schema.Attributes)),
		Relationships: make(map[string]Relation, len(resource.Relationships)),
		Meta:          resource.Meta,
	}
	if resource.Links != nil {
		record.Links = *resource.Links
	}
	for key, value := range resource.Attributes {
		record.Attributes[key] = value
	}
	for key, value := range schema.Attributes {
		if _, exists := record.Attributes[key]; !exists {
			record.Attributes[key] = value
		}
	}

	// Sorted so that errors are reported deterministically
	keys := make([]string, 0, len(resource.Relationships))
	for key := range resource.Relationships {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		relation, err := toRelation(
			resource.Relationships[key],
			schema.Relationships[key],
			fmt.Sprintf("%s/relationships/%s", pointer, key),
		)
		if err != nil {
			return nil, err
		}
		record.Relationships[key] = relation
	}

	return record, nil
}

func toRelation(
	in PayloadRelationship, definition RelationshipDef, pointer string,
) (Relation, error) {
	var out Relation
	if in.Links != nil {
		out.Links = *in.Links
	}
	if len(in.Data) == 0 {
		// Links-only relationship; the shape comes from the schema
		out.Cardinality = definition.Cardinality
		if out.Cardinality == 0 {
			out.Cardinality = SINGULAR
		}
		return out, nil
	}

	data := gjson.ParseBytes(in.Data)
	switch {
	case data.Type == gjson.Null:
		out.Cardinality = SINGULAR
	case data.IsObject():
		out.Cardinality = SINGULAR
		var identifier ResourceIdentifier
		err := json.Unmarshal(in.Data, &identifier)
		if err != nil || identifier.Type == "" || identifier.Id == "" {
			return out, &MalformedDocumentError{
				Pointer: pointer + "/data",
				Reason:  "resource identifier needs a type and an id",
				Err:     err,
			}
		}
		out.Data = []ResourceIdentifier{identifier}
	case data.IsArray():
		out.Cardinality = PLURAL
		err := json.Unmarshal(in.Data, &out.Data)
		if err != nil {
			return out, &MalformedDocumentError{
				Pointer: pointer + "/data",
				Reason:  "cannot decode resource identifiers",
				Err:     err,
			}
		}
		for i, identifier := range out.Data {
			if identifier.Type == "" || identifier.Id == "" {
				return out, &MalformedDocumentError{
					Pointer: fmt.Sprintf("%s/data/%d", pointer, i),
					Reason:  "resource identifier needs a type and an id",
				}
			}
		}
	default:
		return out, &MalformedDocumentError{
			Pointer: pointer + "/data",
			Reason:  "relationship data must be an object, an array or null",
		}
	}

	if definition.Cardinality != 0 && definition.Cardinality != out.Cardinality {
		return out, &MalformedDocumentError{
			Pointer: pointer,
			Reason: fmt.Sprintf(
				"expected %s relationship, got %s",
				definition.Cardinality, out.Cardinality,
			),
		}
	}
	return out, nil
}

func (s Serializer) lookup(Type string) (Schema, error) {
	if s.Registry == nil {
		return Schema{}, &UnknownTypeError{Type: Type}
	}
	return s.Registry.Lookup(Type)
}

func checkVersion(object *JSONAPIObject) error {
	if object == nil || object.Version == "" {
		return nil
	}
	version, err := semver.ParseTolerant(object.Version)
	if err != nil {
		return &MalformedDocumentError{
			Pointer: "/jsonapi/version",
			Reason:  fmt.Sprintf("invalid version '%s'", object.Version),
			Err:     err,
		}
	}
	if version.Major != 1 {
		return &MalformedDocumentError{
			Pointer: "/jsonapi/version",
			Reason:  fmt.Sprintf("unsupported version %s", version),
		}
	}
	return nil
}
