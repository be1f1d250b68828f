package config

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/transifex/jsonapi-client/pkg/jsonapi"
	"gopkg.in/ini.v1"
)

const pathPrefix = "path."

type Config struct {
	APIs []API
	Path string
}

type API struct {
	Name                    string
	URL                     string
	Token                   string
	CACert                  string
	TrailingSlashResource   bool
	TrailingSlashCollection bool
	Pluralize               bool
	// Resource type -> collection path segment
	Paths map[string]string
}

func loadFromPath(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return &Config{Path: path}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := loadFromBytes(data)
	if err != nil {
		return nil, fmt.Errorf("could not parse '%s': %w", path, err)
	}
	cfg.Path = path
	return cfg, nil
}

func loadFromBytes(data []byte) (*Config, error) {
	file, err := ini.Load(data)
	if err != nil {
		return nil, err
	}

	var result Config

	for _, section := range file.Sections() {
		if section.Name() == "DEFAULT" {
			continue
		}
		api := API{
			Name:                    section.Name(),
			URL:                     section.Key("api_url").String(),
			Token:                   section.Key("token").String(),
			CACert:                  section.Key("cacert").String(),
			TrailingSlashResource:   section.Key("trailing_slash_resource").MustBool(false),
			TrailingSlashCollection: section.Key("trailing_slash_collection").MustBool(false),
			Pluralize:               section.Key("pluralize").MustBool(false),
			Paths:                   make(map[string]string),
		}
		for _, key := range section.Keys() {
			if strings.HasPrefix(key.Name(), pathPrefix) {
				api.Paths[strings.TrimPrefix(key.Name(), pathPrefix)] = key.String()
			}
		}
		result.APIs = append(result.APIs, api)
	}

	result.sortAPIs()

	return &result, nil
}

func (cfg *Config) sortAPIs() {
	sort.Slice(cfg.APIs, func(i, j int) bool {
		return strings.Compare(cfg.APIs[i].Name, cfg.APIs[j].Name) == -1
	})
}

func (cfg *Config) FindAPI(name string) *API {
	if name == "" {
		name = DefaultAPI
	}
	for i := range cfg.APIs {
		if cfg.APIs[i].Name == name {
			return &cfg.APIs[i]
		}
	}
	return nil
}

// SetAPI adds 'api' or replaces the entry with the same name
func (cfg *Config) SetAPI(api API) {
	for i := range cfg.APIs {
		if cfg.APIs[i].Name == api.Name {
			cfg.APIs[i] = api
			return
		}
	}
	cfg.APIs = append(cfg.APIs, api)
	cfg.sortAPIs()
}

func (cfg *Config) Save() error {
	if cfg.Path == "" {
		return fmt.Errorf("configuration has no path")
	}
	file, err := os.OpenFile(cfg.Path,
		os.O_RDWR|os.O_CREATE|os.O_TRUNC,
		0600)
	if err != nil {
		return err
	}
	defer file.Close()
	return cfg.saveToWriter(file)
}

func (cfg *Config) saveToWriter(file io.Writer) error {
	output := ini.Empty(ini.LoadOptions{})

	for _, api := range cfg.APIs {
		section, err := output.NewSection(api.Name)
		if err != nil {
			return err
		}

		values := [][2]string{
			{"api_url", api.URL},
			{"token", api.Token},
			{"cacert", api.CACert},
		}
		if api.TrailingSlashResource {
			values = append(values, [2]string{"trailing_slash_resource", "true"})
		}
		if api.TrailingSlashCollection {
			values = append(values, [2]string{"trailing_slash_collection", "true"})
		}
		if api.Pluralize {
			values = append(values, [2]string{"pluralize", "true"})
		}
		Types := make([]string, 0, len(api.Paths))
		for Type := range api.Paths {
			Types = append(Types, Type)
		}
		sort.Strings(Types)
		for _, Type := range Types {
			values = append(values, [2]string{pathPrefix + Type, api.Paths[Type]})
		}

		for _, value := range values {
			if value[1] == "" {
				continue
			}
			_, err := section.NewKey(value[0], value[1])
			if err != nil {
				return err
			}
		}
	}

	_, err := output.WriteTo(file)
	return err
}

// ClientConfig returns the library configuration for this API
func (api API) ClientConfig() jsonapi.Config {
	return jsonapi.Config{
		APIURL: api.URL,
		Token:  api.Token,
		TrailingSlash: jsonapi.TrailingSlash{
			Resource:   api.TrailingSlashResource,
			Collection: api.TrailingSlashCollection,
		},
		Pluralize: api.Pluralize,
	}
}

// Schema applies the configured path override of 'Type', if any
func (api API) Schema(Type string, schema jsonapi.Schema) jsonapi.Schema {
	if path, exists := api.Paths[Type]; exists && schema.Path == "" {
		schema.Path = path
	}
	return schema
}
