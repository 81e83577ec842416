package ui

import (
	"errors"
	"strings"

	"github.com/manifoldco/promptui"
)

// Prompter asks the terminal user for credentials.
type Prompter struct{}

func (Prompter) Username() (string, error) {
	p := promptui.Prompt{
		Label: "Username",
		Validate: func(s string) error {
			if strings.TrimSpace(s) == "" {
				return errors.New("username cannot be empty")
			}
			return nil
		},
	}

	v, err := p.Run()
	return strings.TrimSpace(v), err
}

func (Prompter) Password() (string, error) {
	p := promptui.Prompt{
		Label: "Password",
		Mask:  '*',
	}

	return p.Run()
}

// Confirm returns true when the user answers y/yes.
func Confirm(label string) bool {
	p := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
	}

	_, err := p.Run()
	return err == nil
}

// Ask reads one non-empty line.
func Ask(label string) (string, error) {
	p := promptui.Prompt{
		Label: label,
		Validate: func(s string) error {
			if strings.TrimSpace(s) == "" {
				return errors.New("value cannot be empty")
			}
			return nil
		},
	}

	v, err := p.Run()
	return strings.TrimSpace(v), err
}
