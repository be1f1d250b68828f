package exampleapp

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/transifex/jsonapi-client/pkg/jsonapi"
)

// Resource types passed on the command line get an open schema: every
// attribute the server sends is kept
func defineOpen(api *jsonapi.Client, Type string, schema jsonapi.Schema) error {
	err := api.Define(Type, schema)
	var duplicate *jsonapi.DuplicateSchemaError
	if err != nil && !errors.As(err, &duplicate) {
		return err
	}
	return nil
}

type GetArguments struct {
	Type   string
	Id     string
	Schema jsonapi.Schema
}

func GetCommand(
	ctx context.Context, api *jsonapi.Client, args GetArguments, out io.Writer,
) error {
	err := defineOpen(api, args.Type, args.Schema)
	if err != nil {
		return err
	}
	record, err := api.Find(ctx, args.Type, args.Id).Await(ctx)
	if err != nil {
		return err
	}
	return printRecordJSON(out, record)
}

type ListArguments struct {
	Type    string
	Schema  jsonapi.Schema
	Filters map[string]string
	Sort    []string
}

func ListCommand(
	ctx context.Context, api *jsonapi.Client, args ListArguments, out io.Writer,
) error {
	err := defineOpen(api, args.Type, args.Schema)
	if err != nil {
		return err
	}
	query := jsonapi.Query{Filters: args.Filters, Sort: args.Sort}
	records, err := api.FindAllWhere(ctx, args.Type, query).Await(ctx)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintf(out, "No %s records\n", args.Type)
		return nil
	}
	for _, record := range records {
		printRecordLine(out, record)
	}
	return nil
}

type DeleteArguments struct {
	Type   string
	Ids    []string
	Schema jsonapi.Schema
}

func DeleteCommand(
	ctx context.Context, api *jsonapi.Client, args DeleteArguments, out io.Writer,
) error {
	err := defineOpen(api, args.Type, args.Schema)
	if err != nil {
		return err
	}
	futures := make([]*jsonapi.Future[struct{}], len(args.Ids))
	for i, Id := range args.Ids {
		futures[i] = api.Destroy(ctx, args.Type, Id)
	}
	var errs []error
	for i, future := range futures {
		_, err := future.Await(ctx)
		if err != nil {
			fmt.Fprintf(out, "%s %s: %s\n", args.Type, idColor(args.Ids[i]),
				ErrorString(err))
			errs = append(errs, err)
			continue
		}
		fmt.Fprintf(out, "%s %s: %s\n", args.Type, idColor(args.Ids[i]),
			successColor("deleted"))
	}
	return errors.Join(errs...)
}
