package jsonapi

import (
	"encoding/json"
)

/*
Record
In-memory form of one resource. Relationships reference other resources by
type and id only; the client never owns or caches the related records.
*/
type Record struct {
	Type          string
	Id            string
	Attributes    map[string]interface{}
	Relationships map[string]Relation
	Links         Links
	Meta          map[string]interface{}
}

type Relation struct {
	Cardinality Cardinality
	Data        []ResourceIdentifier
	Links       Links
}

func NewRecord(Type string, attributes map[string]interface{}) *Record {
	record := &Record{
		Type:          Type,
		Attributes:    make(map[string]interface{}, len(attributes)),
		Relationships: make(map[string]Relation),
	}
	for key, value := range attributes {
		record.Attributes[key] = value
	}
	return record
}

// Copy returns a record that shares nothing mutable with 'r'
func (r *Record) Copy() *Record {
	result := &Record{
		Type:          r.Type,
		Id:            r.Id,
		Attributes:    make(map[string]interface{}, len(r.Attributes)),
		Relationships: make(map[string]Relation, len(r.Relationships)),
		Links:         r.Links,
	}
	for key, value := range r.Attributes {
		result.Attributes[key] = copyValue(value)
	}
	for key, relation := range r.Relationships {
		data := make([]ResourceIdentifier, len(relation.Data))
		copy(data, relation.Data)
		relation.Data = data
		result.Relationships[key] = relation
	}
	if r.Meta != nil {
		result.Meta = copyValue(r.Meta).(map[string]interface{})
	}
	return result
}

// Identifier returns the (type, id) pair other records use to refer to 'r'
func (r *Record) Identifier() ResourceIdentifier {
	return ResourceIdentifier{Type: r.Type, Id: r.Id}
}

/*
SetRelated Set a to-one relationship. Passing nil clears it (it will be sent
as null).

    application := ...
    policy := ...
    application.SetRelated("policy", policy)
    api.Update(ctx, application, "policy")
*/
func (r *Record) SetRelated(field string, related *Record) {
	if r.Relationships == nil {
		r.Relationships = make(map[string]Relation)
	}
	relation := Relation{Cardinality: SINGULAR}
	if existing, exists := r.Relationships[field]; exists {
		relation.Links = existing.Links
	}
	if related != nil {
		relation.Data = []ResourceIdentifier{related.Identifier()}
	}
	r.Relationships[field] = relation
}

// AddRelated appends to a to-many relationship, creating it if needed
func (r *Record) AddRelated(field string, related ...*Record) {
	if r.Relationships == nil {
		r.Relationships = make(map[string]Relation)
	}
	relation, exists := r.Relationships[field]
	if !exists {
		relation = Relation{Cardinality: PLURAL}
	}
	if relation.Data == nil {
		relation.Data = make([]ResourceIdentifier, 0, len(related))
	}
	for _, item := range related {
		relation.Data = append(relation.Data, item.Identifier())
	}
	r.Relationships[field] = relation
}

/*
MapAttributes Map a record's attributes to a struct. Usage:

    type ApplicationAttributes struct {
        Name string `json:"name"`
    }

    application, _ := api.Find(ctx, "application", "1").Await(ctx)
    var attributes ApplicationAttributes
    application.MapAttributes(&attributes)
    fmt.Println(attributes.Name)
*/
func (r *Record) MapAttributes(result interface{}) error {
	data, err := json.Marshal(r.Attributes)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, result)
}

// UnmapAttributes Unmap a struct to a record's attributes (possibly before
// calling 'Update')
func (r *Record) UnmapAttributes(source interface{}) error {
	data, err := json.Marshal(source)
	if err != nil {
		return err
	}
	if r.Attributes == nil {
		r.Attributes = make(map[string]interface{})
	}
	return json.Unmarshal(data, &r.Attributes)
}
