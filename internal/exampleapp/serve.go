package exampleapp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/transifex/jsonapi-client/pkg/jsonapi/jsonapitest"
)

type ServeArguments struct {
	Address  string
	BasePath string
	// "<path>:<type>" pairs, eg "applications:application"
	Routes []string
}

func parseRoutes(routes []string) ([][2]string, error) {
	var result [][2]string
	for _, route := range routes {
		path, Type, found := strings.Cut(route, ":")
		if !found || path == "" || Type == "" {
			return nil, fmt.Errorf(
				"invalid route '%s', expected '<path>:<type>'", route,
			)
		}
		result = append(result, [2]string{path, Type})
	}
	return result, nil
}

func NewServer(args ServeArguments, logger *slog.Logger) (*jsonapitest.Server, error) {
	routes, err := parseRoutes(args.Routes)
	if err != nil {
		return nil, err
	}
	server := jsonapitest.NewServer(args.BasePath, logger)
	for _, route := range routes {
		server.Route(route[0], route[1])
	}
	return server, nil
}

// ServeCommand runs an in-memory server until 'ctx' is cancelled
func ServeCommand(
	ctx context.Context, args ServeArguments, logger *slog.Logger,
) error {
	handler, err := NewServer(args, logger)
	if err != nil {
		return err
	}
	listener, err := net.Listen("tcp", args.Address)
	if err != nil {
		return err
	}
	server := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	logger.Info("serving", "address", listener.Addr().String(),
		"base_path", args.BasePath)

	errChannel := make(chan error, 1)
	go func() {
		errChannel <- server.Serve(listener)
	}()

	select {
	case err := <-errChannel:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := server.Shutdown(shutdownCtx)
		if serveErr := <-errChannel; !errors.Is(serveErr, http.ErrServerClosed) {
			return serveErr
		}
		return err
	}
}
