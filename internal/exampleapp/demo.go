package exampleapp

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/transifex/jsonapi-client/pkg/jsonapi"
)

type DemoArguments struct {
	Type   string
	Schema jsonapi.Schema
	Names  []string
	// Destroy the created records afterwards and make sure they are gone
	Cleanup bool
}

/*
DemoCommand
Creates one record per name concurrently, lists the collection and,
optionally, deletes what it created:

	$ jsonapi-example demo --cleanup Mayavi Tesla
	application 0: created
	application 1: created
	application 0 name=Mayavi
	application 1 name=Tesla
	application 0: deleted
	application 1: deleted
*/
func DemoCommand(
	ctx context.Context, api *jsonapi.Client, args DemoArguments, out io.Writer,
) error {
	if len(args.Names) == 0 {
		return errors.New("nothing to create")
	}
	err := api.Define(args.Type, args.Schema)
	if err != nil {
		var duplicate *jsonapi.DuplicateSchemaError
		if !errors.As(err, &duplicate) {
			return err
		}
	}

	futures := make([]*jsonapi.Future[*jsonapi.Record], len(args.Names))
	for i, name := range args.Names {
		futures[i] = api.Create(
			ctx, args.Type, map[string]interface{}{"name": name},
		)
	}

	created, err := awaitAll(ctx, futures, func(i int, record *jsonapi.Record) string {
		return fmt.Sprintf("%s %s: %s", record.Type, idColor(record.Id),
			successColor("created"))
	}, args.Names, out)
	if err != nil {
		return err
	}

	records, err := api.FindAll(ctx, args.Type).Await(ctx)
	if err != nil {
		return err
	}
	for _, record := range records {
		printRecordLine(out, record)
	}

	if !args.Cleanup {
		return nil
	}
	checks := make([]*jsonapi.Future[*jsonapi.Record], len(created))
	for i, record := range created {
		record := record
		destroyed := api.Destroy(ctx, record.Type, record.Id)
		checks[i] = jsonapi.Then(destroyed, func(struct{}) *jsonapi.Future[*jsonapi.Record] {
			return api.Find(ctx, record.Type, record.Id)
		})
	}
	labels := make([]string, len(created))
	for i, record := range created {
		labels[i] = record.Id
	}
	_, err = awaitAll(ctx, checks, nil, labels, out)
	return err
}

// awaitAll waits for every future and reports each one on its own line as it
// completes. When 'describe' is nil the futures are expected to fail with
// *jsonapi.NotFoundError.
func awaitAll(
	ctx context.Context,
	futures []*jsonapi.Future[*jsonapi.Record],
	describe func(int, *jsonapi.Record) string,
	labels []string,
	out io.Writer,
) ([]*jsonapi.Record, error) {
	type result struct {
		i      int
		record *jsonapi.Record
		err    error
	}

	display := newProgress(out, len(futures))
	results := make(chan result)
	for i, future := range futures {
		go func(i int, future *jsonapi.Future[*jsonapi.Record]) {
			record, err := future.Await(ctx)
			results <- result{i, record, err}
		}(i, future)
	}

	records := make([]*jsonapi.Record, len(futures))
	var errs []error
	for range futures {
		current := <-results
		if describe == nil {
			var notFound *jsonapi.NotFoundError
			if errors.As(current.err, &notFound) {
				display.send(current.i, fmt.Sprintf("%s %s: %s",
					notFound.Type, idColor(notFound.Id), successColor("deleted")))
				continue
			}
			if current.err == nil {
				current.err = fmt.Errorf(
					"'%s' can still be found after it was deleted",
					labels[current.i],
				)
			}
		}
		if current.err != nil {
			display.send(current.i, fmt.Sprintf("%s: %s",
				labels[current.i], ErrorString(current.err)))
			errs = append(errs, current.err)
			continue
		}
		records[current.i] = current.record
		display.send(current.i, describe(current.i, current.record))
	}
	display.stop()
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return records, nil
}
