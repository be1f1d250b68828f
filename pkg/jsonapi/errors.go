package jsonapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

var ErrClientClosed = errors.New("jsonapi client is closed")

/*
Error type for {json:api} error responses that are not covered by a more
specific type (*NotFoundError, *RetryError, *RedirectError).

You can inspect the contents of the error response with errors.As.
Example:

	    _, err := api.Create(ctx, "projects", attributes).Await(ctx)
	    var e *jsonapi.Error
	    if errors.As(err, &e) {
			// "Smartly" inspect the contents of the error
			for _, errorItem := range e.Errors {
				if errorItem.Status == "409" {
					fmt.Println("Something conflicted")
				}
			}
	    } else if err != nil {
	        fmt.Printf("%s\n", err)
	    }
*/
type Error struct {
	StatusCode int
	Method     string
	URL        string
	Errors     []ErrorItem `json:"errors"`
}

type ErrorItem struct {
	Status string `json:"status,omitempty"`
	Code   string `json:"code,omitempty"`
	Title  string `json:"title,omitempty"`
	Detail string `json:"detail,omitempty"`
	Source struct {
		Pointer   string `json:"pointer,omitempty"`
		Parameter string `json:"parameter,omitempty"`
	} `json:"source,omitempty"`
}

func (e *Error) Error() string {
	// 400:
	result := make([]string, 0, len(e.Errors)+1)
	result = append(result, fmt.Sprint(e.StatusCode))
	for _, errorItem := range e.Errors {
		result = append(result, errorItem.String())
	}
	return strings.Join(result, ", ")
}

func (item ErrorItem) String() string {
	code := item.Code
	if code == "" {
		code = item.Title
	}
	if item.Detail == "" {
		return code
	}
	return fmt.Sprintf("%s: %s", code, item.Detail)
}

type NotFoundError struct {
	Type       string
	Id         string
	StatusCode int
	Errors     []ErrorItem
}

func (e *NotFoundError) Error() string {
	var result string
	if e.Id == "" {
		result = fmt.Sprintf("%s not found", e.Type)
	} else {
		result = fmt.Sprintf("%s '%s' not found", e.Type, e.Id)
	}
	if e.StatusCode != 0 {
		result = fmt.Sprintf("%s (%d)", result, e.StatusCode)
	}
	return result
}

type UnknownTypeError struct {
	Type string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("resource type '%s' is not defined", e.Type)
}

type DuplicateSchemaError struct {
	Type string
}

func (e *DuplicateSchemaError) Error() string {
	return fmt.Sprintf("resource type '%s' is already defined", e.Type)
}

type SchemaError struct {
	Type   string
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("invalid schema for '%s': %s", e.Type, e.Reason)
}

// FieldError is returned when a record does not match its schema
type FieldError struct {
	Type   string
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("field %s of %s %s", e.Field, e.Type, e.Reason)
}

/*
MalformedDocumentError
The body is not a {json:api} document we can work with. Pointer is a JSON
pointer to the offending member, when there is one. When the document was a
response, Type, Id and StatusCode describe the request it answered.
*/
type MalformedDocumentError struct {
	Type       string
	Id         string
	StatusCode int
	Pointer    string
	Reason     string
	Err        error
}

func (e *MalformedDocumentError) Error() string {
	result := "malformed document"
	if e.Type != "" {
		if e.Id == "" {
			result = fmt.Sprintf("%s for %s", result, e.Type)
		} else {
			result = fmt.Sprintf("%s for %s '%s'", result, e.Type, e.Id)
		}
	}
	if e.StatusCode != 0 {
		result = fmt.Sprintf("%s (%d)", result, e.StatusCode)
	}
	if e.Pointer != "" {
		result = fmt.Sprintf("%s at '%s'", result, e.Pointer)
	}
	result = fmt.Sprintf("%s: %s", result, e.Reason)
	if e.Err != nil {
		result = fmt.Sprintf("%s: %s", result, e.Err)
	}
	return result
}

func (e *MalformedDocumentError) Unwrap() error {
	return e.Err
}

// TransportError means no HTTP response was obtained
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

type RedirectError struct {
	Location string
}

func (m *RedirectError) Error() string {
	return "jsonapi does not handle redirects. You can access the Location " +
		"header with " +
		"`var e *jsonapi.RedirectError; errors.As(err, &e); e.Location`"
}

/*
RetryError
The server asked us to try again later. Nothing is retried automatically;
RetryAfter (seconds) is there for callers that want to.
*/
type RetryError struct {
	StatusCode int
	RetryAfter int
	Errors     []ErrorItem
}

func (err *RetryError) Error() string {
	return fmt.Sprintf(
		"Response error code %d, retry after %d", err.StatusCode, err.RetryAfter,
	)
}

func parseErrorItems(body []byte) []ErrorItem {
	var errorResponse struct {
		Errors []ErrorItem `json:"errors"`
	}

	// Intentionally ignore parse errors
	_ = json.Unmarshal(body, &errorResponse)

	return errorResponse.Errors
}

func parseErrorResponse(statusCode int, body []byte) *Error {
	if statusCode < 400 {
		return nil
	}
	return &Error{StatusCode: statusCode, Errors: parseErrorItems(body)}
}

func parseRetryResponse(response *Response) *RetryError {
	if response.StatusCode != 429 &&
		response.StatusCode != 502 &&
		response.StatusCode != 503 &&
		response.StatusCode != 504 {
		return nil
	}
	items := parseErrorItems(response.Body)
	if response.StatusCode == 502 ||
		response.StatusCode == 503 ||
		response.StatusCode == 504 {
		return &RetryError{response.StatusCode, 10, items}
	}
	retryAfter, err := strconv.Atoi(response.Header.Get("Retry-After"))
	if err != nil {
		return &RetryError{response.StatusCode, 1, items}
	}
	return &RetryError{response.StatusCode, retryAfter, items}
}

// checkResponse maps a non-2xx response to the matching error type
func checkResponse(response *Response, method, url, Type, Id string) error {
	statusCode := response.StatusCode
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}
	if statusCode >= 300 && statusCode < 400 {
		return &RedirectError{Location: response.Header.Get("Location")}
	}
	if statusCode == http.StatusNotFound {
		return &NotFoundError{
			Type:       Type,
			Id:         Id,
			StatusCode: statusCode,
			Errors:     parseErrorItems(response.Body),
		}
	}
	if retryError := parseRetryResponse(response); retryError != nil {
		return retryError
	}
	errorResponse := parseErrorResponse(statusCode, response.Body)
	if errorResponse == nil {
		// 1xx responses end up here
		errorResponse = &Error{StatusCode: statusCode}
	}
	errorResponse.Method = method
	errorResponse.URL = url
	return errorResponse
}
