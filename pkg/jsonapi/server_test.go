package jsonapi_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/transifex/jsonapi-client/pkg/jsonapi"
	"github.com/transifex/jsonapi-client/pkg/jsonapi/jsonapitest"
)

func getServerClient(t *testing.T) (*jsonapi.Client, *jsonapitest.Server) {
	server := jsonapitest.NewServer("/api", nil)
	server.Route("applications", "application")
	server.Route("users", "user")
	ts := httptest.NewServer(server)
	t.Cleanup(ts.Close)

	client, err := jsonapi.NewClient(jsonapi.Config{
		APIURL:        ts.URL + "/api",
		TrailingSlash: jsonapi.TrailingSlash{Collection: true},
		Pluralize:     true,
		HTTPClient:    ts.Client(),
	})
	require.NoError(t, err)
	t.Cleanup(client.Close)

	require.NoError(t, client.Define("application", jsonapi.Schema{
		Attributes: map[string]interface{}{"name": ""},
		Relationships: map[string]jsonapi.RelationshipDef{
			"owner": {Type: "user", Cardinality: jsonapi.SINGULAR},
		},
	}))
	require.NoError(t, client.Define("user", jsonapi.Schema{
		Attributes: map[string]interface{}{"username": ""},
	}))
	return client, server
}

func TestServerCreateAndFind(t *testing.T) {
	client, server := getServerClient(t)
	ctx := context.Background()

	application, err := client.Create(ctx, "application",
		map[string]interface{}{"name": "Mayavi"}).Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, "0", application.Id)
	assert.Equal(t, "application", application.Type)
	assert.Equal(t, "Mayavi", application.Attributes["name"])
	assert.Equal(t, "/api/applications/0/", application.Links.Self)
	assert.Equal(t, 1, server.Len("applications"))

	found, err := client.Find(ctx, "application", "0").Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Mayavi", found.Attributes["name"])
}

func TestServerConcurrentCreates(t *testing.T) {
	client, _ := getServerClient(t)
	ctx := context.Background()

	names := []string{"Mayavi", "Tesla", "Curie", "Noether", "Hopper"}
	futures := make([]*jsonapi.Future[*jsonapi.Record], len(names))
	for i, name := range names {
		futures[i] = client.Create(ctx, "application",
			map[string]interface{}{"name": name})
	}
	ids := make(map[string]bool)
	for _, future := range futures {
		application, err := future.Await(ctx)
		require.NoError(t, err)
		ids[application.Id] = true
	}
	assert.Len(t, ids, len(names))

	applications, err := client.FindAll(ctx, "application").Await(ctx)
	require.NoError(t, err)
	var found []string
	for _, application := range applications {
		found = append(found, application.Attributes["name"].(string))
	}
	sort.Strings(found)
	expected := append([]string(nil), names...)
	sort.Strings(expected)
	assert.Equal(t, expected, found)
}

func TestServerEmptyCollection(t *testing.T) {
	client, _ := getServerClient(t)
	ctx := context.Background()

	applications, err := client.FindAll(ctx, "application").Await(ctx)
	require.NoError(t, err)
	assert.NotNil(t, applications)
	assert.Empty(t, applications)
}

func TestServerDestroyThenFind(t *testing.T) {
	client, server := getServerClient(t)
	ctx := context.Background()

	application, err := client.Create(ctx, "application",
		map[string]interface{}{"name": "Mayavi"}).Await(ctx)
	require.NoError(t, err)

	found := jsonapi.Then(
		client.Destroy(ctx, "application", application.Id),
		func(struct{}) *jsonapi.Future[*jsonapi.Record] {
			return client.Find(ctx, "application", application.Id)
		},
	)
	_, err = found.Await(ctx)
	var notFound *jsonapi.NotFoundError
	require.True(t, errors.As(err, &notFound), "got %v", err)
	assert.Equal(t, 404, notFound.StatusCode)
	assert.Equal(t, "Object not found", notFound.Errors[0].Title)
	assert.Equal(t, 0, server.Len("applications"))
}

func TestServerUpdateRelationship(t *testing.T) {
	client, _ := getServerClient(t)
	ctx := context.Background()

	user, err := client.Create(ctx, "user",
		map[string]interface{}{"username": "ada"}).Await(ctx)
	require.NoError(t, err)
	application, err := client.Create(ctx, "application",
		map[string]interface{}{"name": "Mayavi"}).Await(ctx)
	require.NoError(t, err)

	application.Attributes["name"] = "Mayavi 2"
	application.SetRelated("owner", user)
	updated, err := client.Update(ctx, application, "name", "owner").Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Mayavi 2", updated.Attributes["name"])
	assert.Equal(t, []jsonapi.ResourceIdentifier{user.Identifier()},
		updated.Relationships["owner"].Data)

	found, err := client.Find(ctx, "application", application.Id).Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Mayavi 2", found.Attributes["name"])
	assert.Equal(t, user.Id, found.Relationships["owner"].Data[0].Id)
}

func TestServerCreateWithClientId(t *testing.T) {
	client, _ := getServerClient(t)
	ctx := context.Background()

	record := jsonapi.NewRecord("application", map[string]interface{}{"name": "X"})
	record.Id = "custom"
	created, err := client.CreateRecord(ctx, record).Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, "custom", created.Id)

	_, err = client.CreateRecord(ctx, record).Await(ctx)
	var e *jsonapi.Error
	require.True(t, errors.As(err, &e), "got %v", err)
	assert.Equal(t, 409, e.StatusCode)
	assert.Equal(t, "Object already present", e.Errors[0].Title)
}

func TestSeparateClients(t *testing.T) {
	first, _ := getServerClient(t)
	second, _ := getServerClient(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, client := range []*jsonapi.Client{first, second} {
		wg.Add(1)
		go func(client *jsonapi.Client) {
			defer wg.Done()
			_, err := client.Create(ctx, "application",
				map[string]interface{}{"name": "Mayavi"}).Await(ctx)
			assert.NoError(t, err)
		}(client)
	}
	wg.Wait()

	for _, client := range []*jsonapi.Client{first, second} {
		applications, err := client.FindAll(ctx, "application").Await(ctx)
		require.NoError(t, err)
		assert.Len(t, applications, 1)
	}
	assert.NoError(t, second.Define("policy", jsonapi.Schema{}))
	assert.NotContains(t, first.Registry().Types(), "policy")
}
