package jsonapi

import (
	"fmt"
	"net/http"
	"sync"
)

type CapturedRequest struct {
	Method  string
	Payload []byte
}

type MockResponse struct {
	Status  int
	Text    string
	Headers map[string]string
}

type MockRequest struct {
	Response MockResponse
	Request  CapturedRequest
}

type MockEndpoint struct {
	Requests []MockRequest
	Count    int
}

// MockData maps full URLs to the responses they give, in order
type MockData map[string]*MockEndpoint

func (mockData MockData) Get(url string) *MockRequest {
	endpoint, exists := mockData[url]
	if !exists {
		return nil
	}
	if endpoint.Count >= len(endpoint.Requests) {
		return nil
	}
	endpoint.Count++
	return &endpoint.Requests[endpoint.Count-1]
}

func GetTestConnection(mockData MockData) *Connection {
	var mu sync.Mutex
	return &Connection{
		RequestMethod: func(
			method, url string, payload []byte,
		) (*Response, error) {
			mu.Lock()
			defer mu.Unlock()
			mockRequest := mockData.Get(url)
			if mockRequest == nil {
				return nil, &TransportError{
					Method: method,
					URL:    url,
					Err:    fmt.Errorf("%s not found", url),
				}
			}
			mockRequest.Request.Method = method
			mockRequest.Request.Payload = payload

			status := mockRequest.Response.Status
			if status == 0 {
				status = http.StatusOK
			}
			header := make(http.Header)
			for key, value := range mockRequest.Response.Headers {
				header.Set(key, value)
			}
			return &Response{
				StatusCode: status,
				Header:     header,
				Body:       []byte(mockRequest.Response.Text),
			}, nil
		},
	}
}

// GetTestClient returns a client whose requests are answered from
// 'mockData' instead of the network
func GetTestClient(config Config, mockData MockData) (*Client, error) {
	if config.APIURL == "" {
		config.APIURL = "http://jsonapi.test/api"
	}
	client, err := NewClient(config)
	if err != nil {
		return nil, err
	}
	connection := GetTestConnection(mockData)
	connection.Logger = client.logger
	client.connection = connection
	return client, nil
}
