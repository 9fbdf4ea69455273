package auth

import (
	"fmt"
	"os"
	"syscall"

	"github.com/AlecAivazis/survey/v2"
	"github.com/mattn/go-isatty"
)

// Prompt asks for whichever of username and password is missing. It returns
// syscall.ENOTTY when stdout is not a terminal.
func Prompt(c Credentials) (*Credentials, error) {
	if c.Complete() {
		return &c, nil
	}

	var (
		stdin  = os.Stdin
		stdout = os.Stdout
	)

	if !isatty.IsTerminal(stdout.Fd()) {
		return nil, syscall.ENOTTY
	}

	askOpts := []survey.AskOpt{
		survey.WithValidator(survey.Required),
		survey.WithStdio(stdin, stdout, stdout),
		survey.WithShowCursor(true),
	}

	if len(c.Username) == 0 {
		prompt := &survey.Input{ //nolint:exhaustruct
			Message: "Username:",
		}
		if err := survey.AskOne(prompt, &c.Username, askOpts...); nil != err {
			return nil, fmt.Errorf("ask for username: %v", err)
		}
	}

	if len(c.Password) == 0 {
		prompt := &survey.Password{ //nolint:exhaustruct
			Message: "Password:",
		}
		if err := survey.AskOne(prompt, &c.Password, append(askOpts, survey.WithHideCharacter('*'))...); nil != err {
			return nil, fmt.Errorf("ask for password: %v", err)
		}
	}

	return &c, nil
}
