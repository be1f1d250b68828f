package jsonapi

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

const (
	collectionURL = "http://jsonapi.test/api/applications/"
	resourceURL   = "http://jsonapi.test/api/applications/0"
)

func getTestApplicationClient(t *testing.T, mockData MockData) *Client {
	client, err := GetTestClient(Config{
		TrailingSlash: TrailingSlash{Collection: true},
		Pluralize:     true,
	}, mockData)
	require.NoError(t, err)
	t.Cleanup(client.Close)
	require.NoError(t, client.Define("application", Schema{
		Attributes: map[string]interface{}{"name": "", "stars": 0.0},
		Relationships: map[string]RelationshipDef{
			"owner": {Type: "user", Cardinality: SINGULAR},
		},
	}))
	require.NoError(t, client.Define("user", Schema{}))
	return client
}

func TestNewClientValidation(t *testing.T) {
	for _, apiURL := range []string{"", "/api", "localhost:8888", "http://"} {
		_, err := NewClient(Config{APIURL: apiURL})
		assert.Error(t, err, apiURL)
	}
}

func TestCreate(t *testing.T) {
	mockData := MockData{
		collectionURL: &MockEndpoint{Requests: []MockRequest{{
			Response: MockResponse{
				Status: 201,
				Text: `{"data": {"type": "application",
				                 "id": "0",
				                 "attributes": {"name": "Mayavi"}}}`,
			},
		}}},
	}
	client := getTestApplicationClient(t, mockData)
	ctx := context.Background()

	future := client.Create(ctx, "application",
		map[string]interface{}{"name": "Mayavi"})
	application, err := future.Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, Succeeded, future.State())

	testCases := []struct {
		name     string
		getter   func() interface{}
		expected interface{}
	}{
		{"type", func() interface{} { return application.Type }, "application"},
		{"id", func() interface{} { return application.Id }, "0"},
		{"name",
			func() interface{} { return application.Attributes["name"] },
			"Mayavi"},
		{"default",
			func() interface{} { return application.Attributes["stars"] },
			0.0},
	}
	for _, testCase := range testCases {
		value := testCase.getter()
		if value != testCase.expected {
			t.Errorf("Application's %s was '%v', expected %v",
				testCase.name, value, testCase.expected)
		}
	}

	request := mockData[collectionURL].Requests[0].Request
	assert.Equal(t, "POST", request.Method)
	expectedPayload := `{"data": {"type": "application",
	                              "attributes": {"name": "Mayavi"}}}`
	equal, err := jsonEqual(request.Payload, []byte(expectedPayload))
	require.NoError(t, err)
	assert.True(t, equal, "got %s", request.Payload)
}

func TestCreateFollowsLocation(t *testing.T) {
	mockData := MockData{
		collectionURL: &MockEndpoint{Requests: []MockRequest{{
			Response: MockResponse{
				Status:  201,
				Headers: map[string]string{"Location": "/api/applications/0/"},
			},
		}}},
		"http://jsonapi.test/api/applications/0/": &MockEndpoint{
			Requests: []MockRequest{{Response: MockResponse{
				Text: `{"data": {"type": "application", "id": "0",
				                 "attributes": {"name": "Mayavi"}}}`,
			}}},
		},
	}
	client := getTestApplicationClient(t, mockData)
	ctx := context.Background()

	application, err := client.Create(ctx, "application",
		map[string]interface{}{"name": "Mayavi"}).Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, "0", application.Id)
	assert.Equal(t, "Mayavi", application.Attributes["name"])
	assert.Equal(t, "GET", mockData["http://jsonapi.test/api/applications/0/"].
		Requests[0].Request.Method)
}

func TestCreateWithoutBodyOrLocation(t *testing.T) {
	mockData := MockData{
		collectionURL: &MockEndpoint{Requests: []MockRequest{{
			Response: MockResponse{Status: 201},
		}}},
	}
	client := getTestApplicationClient(t, mockData)
	ctx := context.Background()

	_, err := client.Create(ctx, "application", nil).Await(ctx)
	var malformed *MalformedDocumentError
	require.True(t, errors.As(err, &malformed), "got %v", err)
	assert.Equal(t, "application", malformed.Type)
	assert.Equal(t, 201, malformed.StatusCode)
}

func TestCreateNoContent(t *testing.T) {
	mockData := MockData{
		collectionURL: &MockEndpoint{Requests: []MockRequest{{
			Response: MockResponse{Status: 204},
		}}},
	}
	client := getTestApplicationClient(t, mockData)
	ctx := context.Background()

	record := NewRecord("application", map[string]interface{}{"name": "Mayavi"})
	record.Id = "a1b2"
	result, err := client.CreateRecord(ctx, record).Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a1b2", result.Id)
	assert.Equal(t, "Mayavi", result.Attributes["name"])
	assert.Equal(t, "a1b2", gjson.GetBytes(
		mockData[collectionURL].Requests[0].Request.Payload, "data.id",
	).String())

	// The caller's record is not shared with the future
	assert.NotSame(t, record, result)
}

func TestCreateNoContentWithoutId(t *testing.T) {
	mockData := MockData{
		collectionURL: &MockEndpoint{Requests: []MockRequest{
			{Response: MockResponse{Status: 204}},
			{Response: MockResponse{
				Status:  204,
				Headers: map[string]string{"Location": "/api/applications/4/"},
			}},
		}},
		"http://jsonapi.test/api/applications/4/": &MockEndpoint{
			Requests: []MockRequest{{Response: MockResponse{
				Text: `{"data": {"type": "application", "id": "4",
				                 "attributes": {"name": "Mayavi"}}}`,
			}}},
		},
	}
	client := getTestApplicationClient(t, mockData)
	ctx := context.Background()
	attributes := map[string]interface{}{"name": "Mayavi"}

	// Nothing tells us the id the server assigned
	_, err := client.Create(ctx, "application", attributes).Await(ctx)
	var malformed *MalformedDocumentError
	require.True(t, errors.As(err, &malformed), "got %v", err)
	assert.Equal(t, "application", malformed.Type)
	assert.Equal(t, 204, malformed.StatusCode)

	application, err := client.Create(ctx, "application", attributes).Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, "4", application.Id)
}

func TestCreateValidationError(t *testing.T) {
	mockData := MockData{}
	client := getTestApplicationClient(t, mockData)
	ctx := context.Background()

	_, err := client.Create(ctx, "application",
		map[string]interface{}{"color": "red"}).Await(ctx)
	var fieldError *FieldError
	require.True(t, errors.As(err, &fieldError), "got %v", err)
	assert.Equal(t, "color", fieldError.Field)

	_, err = client.Create(ctx, "secret", nil).Await(ctx)
	var unknown *UnknownTypeError
	assert.True(t, errors.As(err, &unknown), "got %v", err)
}

func TestCreateConflict(t *testing.T) {
	mockData := MockData{
		collectionURL: &MockEndpoint{Requests: []MockRequest{{
			Response: MockResponse{
				Status: 409,
				Text: `{"errors": [{"status": "409",
				                   "title": "Invalid type",
				                   "detail": "expected 'application'"}]}`,
			},
		}}},
	}
	client := getTestApplicationClient(t, mockData)
	ctx := context.Background()

	future := client.Create(ctx, "application", nil)
	_, err := future.Await(ctx)
	var e *Error
	require.True(t, errors.As(err, &e), "got %v", err)
	assert.Equal(t, 409, e.StatusCode)
	assert.Equal(t, "POST", e.Method)
	assert.Equal(t, collectionURL, e.URL)
	assert.Equal(t, "Invalid type", e.Errors[0].Title)
	assert.Equal(t, Failed, future.State())
}

func TestFind(t *testing.T) {
	mockData := MockData{
		resourceURL: &MockEndpoint{Requests: []MockRequest{{
			Response: MockResponse{
				Text: `{"data": {"type": "application", "id": "0",
				                 "attributes": {"name": "Mayavi"},
				                 "relationships": {"owner": {
				                     "data": {"type": "user", "id": "3"}}}}}`,
			},
		}}},
	}
	client := getTestApplicationClient(t, mockData)
	ctx := context.Background()

	application, err := client.Find(ctx, "application", "0").Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Mayavi", application.Attributes["name"])
	assert.Equal(t, []ResourceIdentifier{{Type: "user", Id: "3"}},
		application.Relationships["owner"].Data)
	request := mockData[resourceURL].Requests[0].Request
	assert.Equal(t, "GET", request.Method)
	assert.Nil(t, request.Payload)
}

func TestFindNotFound(t *testing.T) {
	mockData := MockData{
		resourceURL: &MockEndpoint{Requests: []MockRequest{
			{Response: MockResponse{
				Status: 404,
				Text: `{"errors": [{"status": "404",
				                   "title": "Object not found"}]}`,
			}},
			{Response: MockResponse{Text: `{"data": null}`}},
		}},
	}
	client := getTestApplicationClient(t, mockData)
	ctx := context.Background()

	for _, expectedStatus := range []int{404, 200} {
		_, err := client.Find(ctx, "application", "0").Await(ctx)
		var notFound *NotFoundError
		require.True(t, errors.As(err, &notFound), "got %v", err)
		assert.Equal(t, "application", notFound.Type)
		assert.Equal(t, "0", notFound.Id)
		assert.Equal(t, expectedStatus, notFound.StatusCode)
	}
}

func TestFindMalformedResponses(t *testing.T) {
	testCases := []struct {
		name string
		text string
	}{
		{"collection", `{"data": []}`},
		{"scalar data", `{"data": 5}`},
		{"no id", `{"data": {"type": "application"}}`},
		{"other id", `{"data": {"type": "application", "id": "1"}}`},
		{"other type", `{"data": {"type": "user", "id": "0"}}`},
		{"not json", `<html></html>`},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			mockData := MockData{
				resourceURL: &MockEndpoint{Requests: []MockRequest{{
					Response: MockResponse{Text: testCase.text},
				}}},
			}
			client := getTestApplicationClient(t, mockData)
			ctx := context.Background()

			_, err := client.Find(ctx, "application", "0").Await(ctx)
			var malformed *MalformedDocumentError
			require.True(t, errors.As(err, &malformed), "got %v", err)
			assert.Equal(t, "application", malformed.Type)
			assert.Equal(t, "0", malformed.Id)
			assert.Equal(t, 200, malformed.StatusCode)
			assert.Contains(t, err.Error(), "application '0' (200)")
		})
	}
}

func TestFindTransportError(t *testing.T) {
	client := getTestApplicationClient(t, MockData{})
	ctx := context.Background()

	_, err := client.Find(ctx, "application", "0").Await(ctx)
	var transportError *TransportError
	assert.True(t, errors.As(err, &transportError), "got %v", err)

	_, err = client.Find(ctx, "application", "").Await(ctx)
	var fieldError *FieldError
	assert.True(t, errors.As(err, &fieldError), "got %v", err)
}

func TestFindAll(t *testing.T) {
	mockData := MockData{
		collectionURL: &MockEndpoint{Requests: []MockRequest{
			{Response: MockResponse{
				Text: `{"data": [
				    {"type": "application", "id": "1", "attributes": {"name": "B"}},
				    {"type": "application", "id": "0", "attributes": {"name": "A"}}
				]}`,
			}},
			{Response: MockResponse{Text: `{"data": []}`}},
			{Response: MockResponse{
				Text: `{"data": {"type": "application", "id": "0"}}`,
			}},
		}},
	}
	client := getTestApplicationClient(t, mockData)
	ctx := context.Background()

	applications, err := client.FindAll(ctx, "application").Await(ctx)
	require.NoError(t, err)
	require.Len(t, applications, 2)
	assert.Equal(t, "1", applications[0].Id)
	assert.Equal(t, "B", applications[0].Attributes["name"])
	assert.Equal(t, "0", applications[1].Id)

	applications, err = client.FindAll(ctx, "application").Await(ctx)
	require.NoError(t, err)
	assert.NotNil(t, applications)
	assert.Empty(t, applications)

	_, err = client.FindAll(ctx, "application").Await(ctx)
	var malformed *MalformedDocumentError
	require.True(t, errors.As(err, &malformed), "got %v", err)
	assert.Equal(t, "application", malformed.Type)
	assert.Equal(t, 200, malformed.StatusCode)
}

func TestFindAllWhere(t *testing.T) {
	url := collectionURL + "?filter%5Bname%5D=Mayavi"
	mockData := MockData{
		url: &MockEndpoint{Requests: []MockRequest{{
			Response: MockResponse{Text: `{"data": [
			    {"type": "application", "id": "0", "attributes": {"name": "Mayavi"}}
			]}`},
		}}},
	}
	client := getTestApplicationClient(t, mockData)
	ctx := context.Background()

	applications, err := client.FindAllWhere(ctx, "application", Query{
		Filters: map[string]string{"name": "Mayavi"},
	}).Await(ctx)
	require.NoError(t, err)
	require.Len(t, applications, 1)
	assert.Equal(t, 1, mockData[url].Count)
}

func TestUpdate(t *testing.T) {
	mockData := MockData{
		resourceURL: &MockEndpoint{Requests: []MockRequest{
			{Response: MockResponse{
				Text: `{"data": {"type": "application", "id": "0",
				                 "attributes": {"name": "Tesla", "stars": 5}}}`,
			}},
			{Response: MockResponse{Status: 204}},
		}},
	}
	client := getTestApplicationClient(t, mockData)
	ctx := context.Background()

	record := &Record{
		Type:       "application",
		Id:         "0",
		Attributes: map[string]interface{}{"name": "Tesla", "stars": 3.0},
	}
	record.SetRelated("owner", &Record{Type: "user", Id: "3"})

	updated, err := client.Update(ctx, record, "name").Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5.0, updated.Attributes["stars"])

	request := mockData[resourceURL].Requests[0].Request
	assert.Equal(t, "PATCH", request.Method)
	expectedPayload := `{"data": {"type": "application", "id": "0",
	                              "attributes": {"name": "Tesla"}}}`
	equal, err := jsonEqual(request.Payload, []byte(expectedPayload))
	require.NoError(t, err)
	assert.True(t, equal, "got %s", request.Payload)

	// Everything is sent when no fields are given; 204 keeps the local copy
	updated, err = client.Update(ctx, record).Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3.0, updated.Attributes["stars"])
	payload := mockData[resourceURL].Requests[1].Request.Payload
	assert.Equal(t, 3.0, gjson.GetBytes(payload, "data.attributes.stars").Float())
	assert.Equal(t, "3",
		gjson.GetBytes(payload, "data.relationships.owner.data.id").String())
}

func TestUpdateKeepsOwnCopy(t *testing.T) {
	mockData := MockData{
		resourceURL: &MockEndpoint{Requests: []MockRequest{
			{Response: MockResponse{Status: 204}},
		}},
	}
	client := getTestApplicationClient(t, mockData)
	ctx := context.Background()

	record := &Record{
		Type:       "application",
		Id:         "0",
		Attributes: map[string]interface{}{"name": "Tesla"},
	}
	future := client.Update(ctx, record)
	// Run with -race: the call must not read 'record' after Update returns
	for i := 0; i < 100; i++ {
		record.Attributes["name"] = i
	}

	updated, err := future.Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Tesla", updated.Attributes["name"])
	assert.NotSame(t, record, updated)
}

func TestUpdateInvalid(t *testing.T) {
	client := getTestApplicationClient(t, MockData{})
	ctx := context.Background()

	future := client.Update(ctx, &Record{Type: "application"})
	_, err := future.Await(ctx)
	var fieldError *FieldError
	require.True(t, errors.As(err, &fieldError), "got %v", err)
	assert.Equal(t, "id", fieldError.Field)
	assert.Equal(t, Failed, future.State())

	_, err = client.Update(ctx, &Record{Type: "application", Id: "0"},
		"name").Await(ctx)
	require.True(t, errors.As(err, &fieldError), "got %v", err)
	assert.Equal(t, "name", fieldError.Field)
}

func TestDestroy(t *testing.T) {
	mockData := MockData{
		resourceURL: &MockEndpoint{Requests: []MockRequest{
			{Response: MockResponse{
				Text: `{"meta": {"message": "Object successfully deleted"}}`,
			}},
			{Response: MockResponse{Status: 404}},
		}},
	}
	client := getTestApplicationClient(t, mockData)
	ctx := context.Background()

	_, err := client.Destroy(ctx, "application", "0").Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, "DELETE", mockData[resourceURL].Requests[0].Request.Method)

	_, err = client.Destroy(ctx, "application", "0").Await(ctx)
	var notFound *NotFoundError
	assert.True(t, errors.As(err, &notFound), "got %v", err)
}

func TestClose(t *testing.T) {
	client := getTestApplicationClient(t, MockData{})
	client.Close()

	future := client.Find(context.Background(), "application", "0")
	_, err := future.Await(context.Background())
	assert.ErrorIs(t, err, ErrClientClosed)
	assert.Equal(t, Failed, future.State())
}

func TestMaxInFlight(t *testing.T) {
	var inFlight, maxSeen atomic.Int32
	release := make(chan struct{})
	client, err := NewClient(Config{
		APIURL:      "http://jsonapi.test/api",
		MaxInFlight: 2,
	})
	require.NoError(t, err)
	defer client.Close()
	require.NoError(t, client.Define("application", Schema{}))

	var mu sync.Mutex
	client.connection = &Connection{RequestMethod: func(
		method, url string, payload []byte,
	) (*Response, error) {
		current := inFlight.Add(1)
		mu.Lock()
		if current > maxSeen.Load() {
			maxSeen.Store(current)
		}
		mu.Unlock()
		<-release
		inFlight.Add(-1)
		return &Response{
			StatusCode: 200,
			Body:       []byte(`{"data": {"type": "application", "id": "0"}}`),
		}, nil
	}}

	ctx := context.Background()
	futures := make([]*Future[*Record], 5)
	for i := range futures {
		futures[i] = client.Find(ctx, "application", "0")
	}

	// Issuing never blocks; only two calls are picked up
	assert.Eventually(t, func() bool {
		return inFlight.Load() == 2
	}, time.Second, time.Millisecond)
	idle := 0
	for _, future := range futures {
		if future.State() == Idle {
			idle++
		}
	}
	assert.Equal(t, 3, idle)

	close(release)
	for _, future := range futures {
		_, err := future.Await(ctx)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(2), maxSeen.Load())
}
