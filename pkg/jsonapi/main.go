/*
Package jsonapi
Client for {json:api} APIs with caller-defined resource schemas.

Usage:

    import "github.com/transifex/jsonapi-client/pkg/jsonapi"

    api, err := jsonapi.NewClient(jsonapi.Config{
        APIURL:        "http://localhost:8888/api",
        TrailingSlash: jsonapi.TrailingSlash{Collection: true},
        Pluralize:     true,
    })
    if err != nil { ... }
    defer api.Close()

    // Resource types must be defined before they are used
    err = api.Define("application", jsonapi.Schema{
        Attributes: map[string]interface{}{"name": ""},
    })

    // Every operation returns a *Future; nothing blocks until Await
    created, err := api.Create(ctx, "application", map[string]interface{}{
        "name": "Mayavi",
    }).Await(ctx)
    fmt.Println(created.Id, created.Attributes["name"])

    // POST http://localhost:8888/api/applications/ was sent above, now
    // GET the whole collection
    applications, err := api.FindAll(ctx, "application").Await(ctx)
    for _, application := range applications {
        fmt.Println(application.Attributes["name"])
    }

    // Chain operations so that the second only starts after the first
    // succeeded
    deleted := jsonapi.Then(
        api.Destroy(ctx, "application", created.Id),
        func(struct{}) *jsonapi.Future[*jsonapi.Record] {
            return api.Find(ctx, "application", created.Id)
        },
    )
    _, err = deleted.Await(ctx)
    var notFound *jsonapi.NotFoundError
    if errors.As(err, &notFound) {
        fmt.Println("gone")
    }

Collection path segments are derived from the type name: either the
schema's explicit Path, the type name itself, or, when Config.Pluralize is
set, the type name with the suffix rule implemented by Pluralize.
*/
package jsonapi
