package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/transifex/jsonapi-client/internal/config"
	"github.com/transifex/jsonapi-client/internal/exampleapp"
	"github.com/transifex/jsonapi-client/pkg/jsonapi"
	"github.com/urfave/cli/v2"
)

const version = "0.1.0"

// loadAPI merges the configuration file with the command line flags; flags
// win
func loadAPI(c *cli.Context) (*config.Config, config.API, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, config.API{}, err
	}
	var api config.API
	if found := cfg.FindAPI(c.String("api")); found != nil {
		api = *found
	} else {
		api = config.API{Name: c.String("api"), Paths: map[string]string{}}
		if api.Name == "" {
			api.Name = config.DefaultAPI
		}
	}
	if c.IsSet("api-url") || api.URL == "" {
		api.URL = c.String("api-url")
	}
	if c.IsSet("token") {
		api.Token = c.String("token")
	}
	if c.IsSet("cacert") {
		api.CACert = c.String("cacert")
	}
	if api.URL == "" {
		return nil, config.API{}, fmt.Errorf(
			"no API URL; use --api-url or add 'api_url' to section '%s' of %s",
			api.Name, cfg.Path,
		)
	}
	return cfg, api, nil
}

func getClient(c *cli.Context) (*jsonapi.Client, config.API, error) {
	_, api, err := loadAPI(c)
	if err != nil {
		return nil, api, err
	}
	httpClient, err := exampleapp.GetClient(api.CACert)
	if err != nil {
		return nil, api, err
	}
	clientConfig := api.ClientConfig()
	clientConfig.HTTPClient = httpClient
	clientConfig.Logger = exampleapp.NewLogger(c.Bool("verbose"))
	clientConfig.Headers = map[string]string{"User-Agent": "jsonapi-example/" + version}
	client, err := jsonapi.NewClient(clientConfig)
	return client, api, err
}

func parseFilters(filters []string) (map[string]string, error) {
	result := make(map[string]string)
	for _, filter := range filters {
		key, value, found := strings.Cut(filter, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid filter '%s', expected 'key=value'", filter)
		}
		result[key] = value
	}
	return result, nil
}

func main() {
	errorColor := color.New(color.FgRed).SprintfFunc()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Load configuration from `FILE`",
			EnvVars: []string{"JSONAPI_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "api",
			Aliases: []string{"a"},
			Usage:   "Configuration section to use",
			Value:   config.DefaultAPI,
		},
		&cli.StringFlag{
			Name:    "api-url",
			Aliases: []string{"u"},
			Usage:   "Base URL of the API, eg http://localhost:8888/api",
			EnvVars: []string{"JSONAPI_URL"},
		},
		&cli.StringFlag{
			Name:    "token",
			Aliases: []string{"t"},
			Usage:   "The api token to use",
			EnvVars: []string{"JSONAPI_TOKEN"},
		},
		&cli.StringFlag{
			Name:    "cacert",
			Usage:   "Path to CA certificate bundle file",
			EnvVars: []string{"JSONAPI_CACERT"},
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "Log every request",
		},
	}

	app := &cli.App{
		Name:                   "jsonapi-example",
		Usage:                  "Talk to a {json:api} server",
		Version:                version,
		UseShortOptionHandling: true,
		Flags:                  flags,
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Run an in-memory {json:api} server",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "address",
						Usage: "Address to listen on",
						Value: "localhost:8888",
					},
					&cli.StringFlag{
						Name:  "base-path",
						Usage: "Path prefix of every route",
						Value: "/api",
					},
					&cli.StringSliceFlag{
						Name:  "route",
						Usage: "Collection to serve, as `PATH:TYPE`",
						Value: cli.NewStringSlice("applications:application"),
					},
				},
				Action: func(c *cli.Context) error {
					err := exampleapp.ServeCommand(ctx, exampleapp.ServeArguments{
						Address:  c.String("address"),
						BasePath: c.String("base-path"),
						Routes:   c.StringSlice("route"),
					}, exampleapp.NewLogger(c.Bool("verbose")))
					if err != nil {
						return cli.Exit(errorColor("%s", err), 1)
					}
					return nil
				},
			},
			{
				Name:      "demo",
				Usage:     "Create records, list them and optionally delete them",
				ArgsUsage: "[name...]",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "type",
						Usage: "Resource type of the created records",
						Value: "application",
					},
					&cli.BoolFlag{
						Name:  "cleanup",
						Usage: "Delete the created records afterwards",
					},
				},
				Action: func(c *cli.Context) error {
					api, apiConfig, err := getClient(c)
					if err != nil {
						return cli.Exit(errorColor("%s", err), 1)
					}
					defer api.Close()

					names := c.Args().Slice()
					if len(names) == 0 {
						if !exampleapp.IsInteractive() {
							return cli.Exit(errorColor("Please provide at least one name"), 1)
						}
						names, err = exampleapp.PromptNames("Mayavi")
						if err != nil {
							return cli.Exit(errorColor("%s", err), 1)
						}
					}

					Type := c.String("type")
					schema := apiConfig.Schema(Type, jsonapi.Schema{
						Attributes: map[string]interface{}{"name": ""},
					})
					err = exampleapp.DemoCommand(ctx, api, exampleapp.DemoArguments{
						Type:    Type,
						Schema:  schema,
						Names:   names,
						Cleanup: c.Bool("cleanup"),
					}, os.Stdout)
					if err != nil {
						return cli.Exit(errorColor("%s", err), 1)
					}
					return nil
				},
			},
			{
				Name:      "get",
				Usage:     "Print one record as JSON",
				ArgsUsage: "<type> <id>",
				Action: func(c *cli.Context) error {
					if c.NArg() != 2 {
						return cli.Exit(errorColor("Please provide a type and an id"), 1)
					}
					api, apiConfig, err := getClient(c)
					if err != nil {
						return cli.Exit(errorColor("%s", err), 1)
					}
					defer api.Close()

					Type := c.Args().Get(0)
					err = exampleapp.GetCommand(ctx, api, exampleapp.GetArguments{
						Type:   Type,
						Id:     c.Args().Get(1),
						Schema: apiConfig.Schema(Type, jsonapi.Schema{}),
					}, os.Stdout)
					if err != nil {
						return cli.Exit(errorColor("%s", err), 1)
					}
					return nil
				},
			},
			{
				Name:      "list",
				Usage:     "List the records of a collection",
				ArgsUsage: "<type>",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:  "filter",
						Usage: "Filter as `KEY=VALUE`; use '__' for nested keys",
					},
					&cli.StringSliceFlag{
						Name:  "sort",
						Usage: "Sort by `FIELD`; prefix with '-' to reverse",
					},
				},
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return cli.Exit(errorColor("Please provide one type"), 1)
					}
					filters, err := parseFilters(c.StringSlice("filter"))
					if err != nil {
						return cli.Exit(errorColor("%s", err), 1)
					}
					api, apiConfig, err := getClient(c)
					if err != nil {
						return cli.Exit(errorColor("%s", err), 1)
					}
					defer api.Close()

					Type := c.Args().Get(0)
					err = exampleapp.ListCommand(ctx, api, exampleapp.ListArguments{
						Type:    Type,
						Schema:  apiConfig.Schema(Type, jsonapi.Schema{}),
						Filters: filters,
						Sort:    c.StringSlice("sort"),
					}, os.Stdout)
					if err != nil {
						return cli.Exit(errorColor("%s", err), 1)
					}
					return nil
				},
			},
			{
				Name:      "delete",
				Usage:     "Delete records",
				ArgsUsage: "<type> <id>...",
				Action: func(c *cli.Context) error {
					if c.NArg() < 2 {
						return cli.Exit(errorColor("Please provide a type and at least one id"), 1)
					}
					api, apiConfig, err := getClient(c)
					if err != nil {
						return cli.Exit(errorColor("%s", err), 1)
					}
					defer api.Close()

					Type := c.Args().Get(0)
					err = exampleapp.DeleteCommand(ctx, api, exampleapp.DeleteArguments{
						Type:   Type,
						Ids:    c.Args().Slice()[1:],
						Schema: apiConfig.Schema(Type, jsonapi.Schema{}),
					}, os.Stdout)
					if err != nil {
						return cli.Exit(errorColor("%s", err), 1)
					}
					return nil
				},
			},
			{
				Name:  "configure",
				Usage: "Save the API settings given as flags to the configuration file",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "trailing-slash-resource"},
					&cli.BoolFlag{Name: "trailing-slash-collection"},
					&cli.BoolFlag{
						Name:  "pluralize",
						Usage: "Derive collection paths by pluralizing type names",
					},
					&cli.StringSliceFlag{
						Name:  "path",
						Usage: "Collection path of a type, as `TYPE:PATH`",
					},
				},
				Action: func(c *cli.Context) error {
					cfg, api, err := loadAPI(c)
					if err != nil {
						return cli.Exit(errorColor("%s", err), 1)
					}
					if c.IsSet("trailing-slash-resource") {
						api.TrailingSlashResource = c.Bool("trailing-slash-resource")
					}
					if c.IsSet("trailing-slash-collection") {
						api.TrailingSlashCollection = c.Bool("trailing-slash-collection")
					}
					if c.IsSet("pluralize") {
						api.Pluralize = c.Bool("pluralize")
					}
					if api.Paths == nil {
						api.Paths = make(map[string]string)
					}
					for _, path := range c.StringSlice("path") {
						Type, segment, found := strings.Cut(path, ":")
						if !found || Type == "" || segment == "" {
							return cli.Exit(errorColor("Invalid path '%s', expected 'TYPE:PATH'", path), 1)
						}
						api.Paths[Type] = segment
					}
					cfg.SetAPI(api)
					err = cfg.Save()
					if err != nil {
						return cli.Exit(errorColor("%s", err), 1)
					}
					fmt.Printf("Saved section '%s' to %s\n", api.Name, cfg.Path)
					return nil
				},
			},
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal(err)
	}
}
