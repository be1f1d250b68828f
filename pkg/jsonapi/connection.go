package jsonapi

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/hashicorp/go-cleanhttp"
)

var defaultHTTPClient = cleanhttp.DefaultPooledClient()

type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

/*
Connection
Performs single HTTP exchanges. It knows nothing about schemas; status codes
are interpreted by the Client.
*/
type Connection struct {
	Client  *http.Client
	Token   string
	Headers map[string]string
	Logger  *slog.Logger

	// Used for testing
	RequestMethod func(method, url string, payload []byte) (*Response, error)
}

func (c *Connection) request(
	ctx context.Context,
	method,
	url string,
	payload []byte,
) (*Response, error) {
	requestId := uuid.NewString()
	logger := c.logger().With(
		"request_id", requestId, "method", method, "url", url,
	)
	logger.Debug("dispatch", "bytes", len(payload))

	var response *Response
	var err error
	if c.RequestMethod != nil {
		response, err = c.RequestMethod(method, url, payload)
	} else {
		response, err = c.do(ctx, method, url, payload, requestId)
	}
	if err != nil {
		logger.Debug("failed", "error", err)
		return nil, err
	}
	if response.Header == nil {
		response.Header = make(http.Header)
	}

	logger.Debug("response", "status", response.StatusCode,
		"bytes", len(response.Body))
	return response, nil
}

func (c *Connection) do(
	ctx context.Context,
	method,
	url string,
	payload []byte,
	requestId string,
) (*Response, error) {
	client := c.Client
	if client == nil {
		client = defaultHTTPClient
	}
	if client.CheckRedirect == nil {
		// Copy so that the caller's client is left alone
		copied := *client
		copied.CheckRedirect = func(
			req *http.Request, via []*http.Request,
		) error {
			return &RedirectError{Location: req.URL.String()}
		}
		client = &copied
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	requestObj, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, &TransportError{Method: method, URL: url, Err: err}
	}

	if payload != nil {
		requestObj.Header.Set("Content-Type", ContentType)
	}
	requestObj.Header.Set("Accept", ContentType)
	if c.Token != "" {
		requestObj.Header.Set("Authorization", "Bearer "+c.Token)
	}
	requestObj.Header.Set("X-Request-Id", requestId)
	for header, value := range c.Headers {
		requestObj.Header.Set(header, value)
	}

	response, err := client.Do(requestObj)
	if err != nil {
		var redirectError *RedirectError
		if errors.As(err, &redirectError) {
			return nil, redirectError
		}
		return nil, &TransportError{Method: method, URL: url, Err: err}
	}
	defer response.Body.Close()

	responseBody, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, &TransportError{Method: method, URL: url, Err: err}
	}

	return &Response{
		StatusCode: response.StatusCode,
		Header:     response.Header,
		Body:       responseBody,
	}, nil
}

func (c *Connection) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return c.Logger
}
