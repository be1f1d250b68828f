package exampleapp

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/transifex/jsonapi-client/pkg/jsonapi"
)

var (
	successColor = color.New(color.FgGreen).SprintfFunc()
	errorColor   = color.New(color.FgRed).SprintfFunc()
	idColor      = color.New(color.FgCyan).SprintFunc()
)

// IsInteractive reports whether we can prompt the user
func IsInteractive() bool {
	return isatty.IsTerminal(os.Stdin.Fd()) ||
		isatty.IsCygwinTerminal(os.Stdin.Fd())
}

// NewLogger logs to stderr; library debug output only shows with 'verbose'
func NewLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

func ErrorString(err error) string {
	return errorColor("Error: %s", err)
}

func printRecordLine(out io.Writer, record *jsonapi.Record) {
	keys := make([]string, 0, len(record.Attributes))
	for key := range record.Attributes {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	line := fmt.Sprintf("%s %s", record.Type, idColor(record.Id))
	for _, key := range keys {
		line += fmt.Sprintf(" %s=%v", key, record.Attributes[key])
	}
	fmt.Fprintln(out, line)
}

type recordOutput struct {
	Type          string                                  `json:"type"`
	Id            string                                  `json:"id"`
	Attributes    map[string]interface{}                  `json:"attributes,omitempty"`
	Relationships map[string][]jsonapi.ResourceIdentifier `json:"relationships,omitempty"`
}

func printRecordJSON(out io.Writer, record *jsonapi.Record) error {
	output := recordOutput{
		Type:       record.Type,
		Id:         record.Id,
		Attributes: record.Attributes,
	}
	if len(record.Relationships) > 0 {
		output.Relationships = make(map[string][]jsonapi.ResourceIdentifier)
		for key, relation := range record.Relationships {
			output.Relationships[key] = relation.Data
		}
	}
	body, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(body))
	return err
}
