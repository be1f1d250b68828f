/*
Package config
INI configuration of the APIs the example runner talks to.

Usage:

    import "github.com/transifex/jsonapi-client/internal/config"

    cfg, err := config.Load("")  // Loads ~/.jsonapirc
    if err != nil { ... }

    api := cfg.FindAPI("local")
    if api == nil { ... }
    client, err := jsonapi.NewClient(api.ClientConfig())

    cfg.SetAPI(config.API{Name: "staging", URL: "https://staging/api"})
    cfg.Save()  // Saves changes to disk

A file looks like:

    [local]
    api_url                   = http://localhost:8888/api
    token                     = XXX
    trailing_slash_resource   = false
    trailing_slash_collection = true
    pluralize                 = true
    path.person               = people
*/
package config

import (
	"os"
	"os/user"
	"path/filepath"
)

const DefaultAPI = "default"

/*
Load the configuration from 'path', or from ~/.jsonapirc if 'path' is empty.
A missing file is not an error; it yields an empty configuration that will
be created on Save.
*/
func Load(path string) (*Config, error) {
	if path == "" {
		var err error
		path, err = GetConfigPath()
		if err != nil {
			return nil, err
		}
	}
	return loadFromPath(path)
}

func GetConfigPath() (string, error) {
	homeDir := os.Getenv("HOME")
	if homeDir == "" {
		usr, err := user.Current()
		if err != nil {
			return "", err
		}
		homeDir = usr.HomeDir
	}
	return filepath.Join(homeDir, ".jsonapirc"), nil
}
