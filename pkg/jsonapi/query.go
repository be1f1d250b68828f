package jsonapi

import (
	"fmt"
	"net/url"
	"strings"
)

type Query struct {
	Filters  map[string]string
	Includes []string
	Sort     []string
	// Sparse fieldsets, type -> field names
	Fields map[string][]string
	Extras map[string]string
}

/*
Encode
Converts a Query object to a string that's ready to be used as GET variables
for {json:api} requests. Filter keys are split on "__", so "age__gt" becomes
"filter[age][gt]".
*/
func (q Query) Encode() string {
	result := make(url.Values)
	if q.Filters != nil {
		for key, value := range q.Filters {
			finalKey := "filter"
			for _, part := range strings.Split(key, "__") {
				finalKey = finalKey + fmt.Sprintf("[%s]", part)
			}
			result.Add(finalKey, value)
		}
	}
	if len(q.Includes) > 0 {
		result.Add("include", strings.Join(q.Includes, ","))
	}
	if len(q.Sort) > 0 {
		result.Add("sort", strings.Join(q.Sort, ","))
	}
	for Type, fields := range q.Fields {
		result.Add(fmt.Sprintf("fields[%s]", Type), strings.Join(fields, ","))
	}
	if q.Extras != nil {
		for key, value := range q.Extras {
			result.Add(key, value)
		}
	}
	return result.Encode()
}
