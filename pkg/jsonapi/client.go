package jsonapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/transifex/jsonapi-client/pkg/worker_pool"
)

const DefaultMaxInFlight = 4

type Config struct {
	// Base URL of the API, eg "http://localhost:8888/api". Required.
	APIURL        string
	TrailingSlash TrailingSlash
	// Derive collection paths with Pluralize when a schema has no Path
	Pluralize bool

	Token   string
	Headers map[string]string

	HTTPClient *http.Client
	Logger     *slog.Logger
	// Number of requests that can be in flight at the same time
	MaxInFlight int
}

/*
Client
Schema registry, URL builder, serializer and request executor of one API.
Several clients can coexist; they share nothing.

Every operation returns immediately with a *Future. The calls run on a
bounded set of workers, so two operations issued without waiting for each
other may complete in any order.
*/
type Client struct {
	registry   *Registry
	urls       URLBuilder
	serializer Serializer
	connection *Connection
	pool       *worker_pool.Pool
	logger     *slog.Logger
}

func NewClient(config Config) (*Client, error) {
	if config.APIURL == "" {
		return nil, fmt.Errorf("jsonapi: APIURL is required")
	}
	parsed, err := url.Parse(config.APIURL)
	if err != nil {
		return nil, fmt.Errorf("jsonapi: invalid APIURL: %w", err)
	}
	if !parsed.IsAbs() || parsed.Host == "" {
		return nil, fmt.Errorf(
			"jsonapi: APIURL '%s' must be an absolute URL", config.APIURL,
		)
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = defaultHTTPClient
	}
	maxInFlight := config.MaxInFlight
	if maxInFlight <= 0 {
		maxInFlight = DefaultMaxInFlight
	}

	registry := NewRegistry()
	client := &Client{
		registry: registry,
		urls: URLBuilder{
			APIURL:        config.APIURL,
			TrailingSlash: config.TrailingSlash,
			Pluralize:     config.Pluralize,
			Registry:      registry,
		},
		serializer: Serializer{Registry: registry},
		connection: &Connection{
			Client:  httpClient,
			Token:   config.Token,
			Headers: config.Headers,
			Logger:  logger,
		},
		pool:   worker_pool.New(maxInFlight),
		logger: logger,
	}
	client.pool.Start()
	return client, nil
}

// Define registers a resource type. Types cannot be redefined.
func (c *Client) Define(Type string, schema Schema) error {
	err := c.registry.Define(Type, schema)
	if err != nil {
		return err
	}
	c.logger.Debug("defined resource type", "type", Type)
	return nil
}

func (c *Client) Registry() *Registry {
	return c.registry
}

func (c *Client) URLs() URLBuilder {
	return c.urls
}

func (c *Client) Serializer() Serializer {
	return c.serializer
}

// Close stops accepting operations. Operations already issued still
// complete.
func (c *Client) Close() {
	c.pool.Stop()
}

func dispatch[T any](c *Client, call func() (T, error)) *Future[T] {
	future := newFuture[T]()
	err := c.pool.Add(worker_pool.TaskFunc(func() {
		future.markSent()
		value, err := call()
		if err != nil {
			future.reject(err)
			return
		}
		future.resolve(value)
	}))
	if err != nil {
		future.reject(ErrClientClosed)
	}
	return future
}

/*
Create
POST a new record of type 'Type' to its collection. The future resolves with
the record as the server stored it, including the id it assigned.
*/
func (c *Client) Create(
	ctx context.Context, Type string, attributes map[string]interface{},
) *Future[*Record] {
	return c.CreateRecord(ctx, NewRecord(Type, attributes))
}

// CreateRecord is Create for records that also carry relationships or a
// client-generated id
func (c *Client) CreateRecord(ctx context.Context, record *Record) *Future[*Record] {
	record = record.Copy()
	return dispatch(c, func() (*Record, error) {
		return c.create(ctx, record)
	})
}

func (c *Client) create(ctx context.Context, record *Record) (*Record, error) {
	document, err := c.serializer.Serialize(record)
	if err != nil {
		return nil, err
	}
	url, err := c.urls.CollectionURL(record.Type)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(document)
	if err != nil {
		return nil, err
	}

	response, err := c.connection.request(ctx, "POST", url, body)
	if err != nil {
		return nil, err
	}
	err = checkResponse(response, "POST", url, record.Type, record.Id)
	if err != nil {
		return nil, err
	}

	// Without a client-generated id, only the server can tell us the id
	if response.StatusCode == http.StatusNoContent && record.Id != "" {
		return record, nil
	}
	if len(bytes.TrimSpace(response.Body)) == 0 {
		// Some servers only answer with "201 Created" and a Location
		location := response.Header.Get("Location")
		if location == "" {
			return nil, &MalformedDocumentError{
				Type:       record.Type,
				Id:         record.Id,
				StatusCode: response.StatusCode,
				Reason: fmt.Sprintf(
					"response to POST %s has neither a body nor a Location",
					url,
				),
			}
		}
		location, err = c.urls.Resolve(url, location)
		if err != nil {
			return nil, &MalformedDocumentError{
				Type:       record.Type,
				Id:         record.Id,
				StatusCode: response.StatusCode,
				Reason:     "invalid Location header",
				Err:        err,
			}
		}
		return c.get(ctx, location, record.Type, "")
	}
	return c.decodeOne(response, record.Type, record.Id)
}

// Find GETs a single record; a missing one fails with *NotFoundError
func (c *Client) Find(ctx context.Context, Type, Id string) *Future[*Record] {
	return dispatch(c, func() (*Record, error) {
		url, err := c.urls.ResourceURL(Type, Id)
		if err != nil {
			return nil, err
		}
		return c.get(ctx, url, Type, Id)
	})
}

func (c *Client) get(ctx context.Context, url, Type, Id string) (*Record, error) {
	response, err := c.connection.request(ctx, "GET", url, nil)
	if err != nil {
		return nil, err
	}
	err = checkResponse(response, "GET", url, Type, Id)
	if err != nil {
		return nil, err
	}
	return c.decodeOne(response, Type, Id)
}

// FindAll GETs the collection of 'Type'. The records keep the server's
// order; an empty collection gives an empty slice.
func (c *Client) FindAll(ctx context.Context, Type string) *Future[[]*Record] {
	return c.FindAllWhere(ctx, Type, Query{})
}

/*
FindAllWhere
FindAll with a query string:

    query := jsonapi.Query{
        Filters: map[string]string{"name": "Mayavi"},
        Sort:    []string{"-name"},
    }
    applications, err := api.FindAllWhere(ctx, "application", query).Await(ctx)
*/
func (c *Client) FindAllWhere(
	ctx context.Context, Type string, query Query,
) *Future[[]*Record] {
	return dispatch(c, func() ([]*Record, error) {
		url, err := c.urls.CollectionURL(Type)
		if err != nil {
			return nil, err
		}
		if encoded := query.Encode(); encoded != "" {
			url = url + "?" + encoded
		}
		response, err := c.connection.request(ctx, "GET", url, nil)
		if err != nil {
			return nil, err
		}
		err = checkResponse(response, "GET", url, Type, "")
		if err != nil {
			return nil, err
		}

		records, err := c.decodeMany(response.Body, Type)
		if err != nil {
			return nil, withResponse(err, Type, "", response.StatusCode)
		}
		return records, nil
	})
}

/*
Update
PATCH a record. The attributes and relationships that will be sent are the
ones in the 'fields' argument; if it is empty, everything is sent.
*/
func (c *Client) Update(
	ctx context.Context, record *Record, fields ...string,
) *Future[*Record] {
	partial, err := selectFields(record, fields)
	if err != nil {
		return Rejected[*Record](err)
	}
	// The caller may keep changing 'record' while the call runs
	snapshot := record.Copy()
	return dispatch(c, func() (*Record, error) {
		url, err := c.urls.ResourceURL(partial.Type, partial.Id)
		if err != nil {
			return nil, err
		}
		document, err := c.serializer.Serialize(partial)
		if err != nil {
			return nil, err
		}
		body, err := json.Marshal(document)
		if err != nil {
			return nil, err
		}

		response, err := c.connection.request(ctx, "PATCH", url, body)
		if err != nil {
			return nil, err
		}
		err = checkResponse(response, "PATCH", url, partial.Type, partial.Id)
		if err != nil {
			return nil, err
		}
		if response.StatusCode == http.StatusNoContent ||
			len(bytes.TrimSpace(response.Body)) == 0 {
			return snapshot, nil
		}
		return c.decodeOne(response, partial.Type, partial.Id)
	})
}

// Destroy DELETEs a record; a missing one fails with *NotFoundError
func (c *Client) Destroy(ctx context.Context, Type, Id string) *Future[struct{}] {
	return dispatch(c, func() (struct{}, error) {
		url, err := c.urls.ResourceURL(Type, Id)
		if err != nil {
			return struct{}{}, err
		}
		response, err := c.connection.request(ctx, "DELETE", url, nil)
		if err != nil {
			return struct{}{}, err
		}
		return struct{}{}, checkResponse(response, "DELETE", url, Type, Id)
	})
}

func (c *Client) decodeOne(response *Response, Type, Id string) (*Record, error) {
	record, err := c.decodeRecord(response.Body, Type, Id)
	if err != nil {
		return nil, withResponse(err, Type, Id, response.StatusCode)
	}
	return record, nil
}

func (c *Client) decodeRecord(body []byte, Type, Id string) (*Record, error) {
	payload, err := c.serializer.Deserialize(body)
	if err != nil {
		return nil, err
	}
	if payload.Plural {
		return nil, &MalformedDocumentError{
			Pointer: "/data", Reason: "expected a single resource object",
		}
	}
	if len(payload.Records) == 0 {
		return nil, &NotFoundError{Type: Type, Id: Id}
	}
	record := payload.Records[0]
	err = checkRecord(record, Type, "/data")
	if err != nil {
		return nil, err
	}
	if Id != "" && record.Id != Id {
		return nil, &MalformedDocumentError{
			Pointer: "/data/id",
			Reason:  fmt.Sprintf("expected id '%s', got '%s'", Id, record.Id),
		}
	}
	return record, nil
}

func (c *Client) decodeMany(body []byte, Type string) ([]*Record, error) {
	payload, err := c.serializer.Deserialize(body)
	if err != nil {
		return nil, err
	}
	if !payload.Plural {
		return nil, &MalformedDocumentError{
			Pointer: "/data",
			Reason:  "expected an array of resource objects",
		}
	}
	for i, record := range payload.Records {
		err := checkRecord(record, Type, fmt.Sprintf("/data/%d", i))
		if err != nil {
			return nil, err
		}
	}
	return payload.Records, nil
}

// withResponse adds the requested resource and the status code to errors
// raised while decoding a response body
func withResponse(err error, Type, Id string, statusCode int) error {
	var notFound *NotFoundError
	if errors.As(err, &notFound) && notFound.StatusCode == 0 {
		notFound.StatusCode = statusCode
	}
	var malformed *MalformedDocumentError
	if errors.As(err, &malformed) {
		if malformed.Type == "" {
			malformed.Type = Type
		}
		if malformed.Id == "" {
			malformed.Id = Id
		}
		if malformed.StatusCode == 0 {
			malformed.StatusCode = statusCode
		}
	}
	return err
}

// Records in responses must have an id and the type that was asked for
func checkRecord(record *Record, Type, pointer string) error {
	if record.Id == "" {
		return &MalformedDocumentError{
			Pointer: pointer + "/id", Reason: "resource object has no id",
		}
	}
	if record.Type != Type {
		return &MalformedDocumentError{
			Pointer: pointer + "/type",
			Reason: fmt.Sprintf(
				"expected type '%s', got '%s'", Type, record.Type,
			),
		}
	}
	return nil
}

func selectFields(record *Record, fields []string) (*Record, error) {
	if record.Id == "" {
		return nil, &FieldError{Type: record.Type, Field: "id", Reason: "is empty"}
	}
	if len(fields) == 0 {
		return record.Copy(), nil
	}
	full := record.Copy()
	result := &Record{
		Type:          full.Type,
		Id:            full.Id,
		Attributes:    make(map[string]interface{}),
		Relationships: make(map[string]Relation),
	}
	for _, field := range fields {
		attribute, attributeExists := full.Attributes[field]
		relation, relationExists := full.Relationships[field]
		if attributeExists {
			result.Attributes[field] = attribute
		} else if relationExists {
			result.Relationships[field] = relation
		} else {
			return nil, &FieldError{
				Type: record.Type, Field: field, Reason: "is not set",
			}
		}
	}
	return result, nil
}
