package exampleapp

import (
	"errors"
	"fmt"
	"strings"

	"github.com/manifoldco/promptui"
)

func validateName(input string) error {
	if strings.TrimSpace(input) == "" {
		return errors.New("name cannot be empty")
	}
	return nil
}

// PromptNames asks for the names of the records the demo will create. An
// empty answer ends the list.
func PromptNames(defaultName string) ([]string, error) {
	templates := &promptui.PromptTemplates{
		Prompt:  fmt.Sprintf("%s {{ . }} ", promptui.IconInitial),
		Valid:   fmt.Sprintf("%s {{ . }} ", promptui.IconGood),
		Invalid: fmt.Sprintf("%s {{ . }} ", promptui.IconBad),
		Success: fmt.Sprintf(`%s {{ "Name:" | faint }} `, promptui.IconGood),
	}

	prompt := promptui.Prompt{
		Label:     "Name of the record to create",
		Default:   defaultName,
		Templates: templates,
		Validate:  validateName,
	}
	name, err := prompt.Run()
	if err != nil {
		if err == promptui.ErrInterrupt {
			return nil, err
		}
		return nil, fmt.Errorf("something went wrong: %w", err)
	}
	names := []string{strings.TrimSpace(name)}

	for {
		prompt := promptui.Prompt{
			Label:     "Another one (leave empty to continue)",
			Templates: templates,
		}
		name, err := prompt.Run()
		if err != nil {
			if err == promptui.ErrInterrupt {
				return nil, err
			}
			return nil, fmt.Errorf("something went wrong: %w", err)
		}
		name = strings.TrimSpace(name)
		if name == "" {
			return names, nil
		}
		names = append(names, name)
	}
}
