package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/nhle/issue-rest/internal/credential"
)

func credentialCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credential",
		Short: "Manage secrets kept in the system keyring",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "set <key>",
		Short: "Store a secret, read from the terminal without echo or from stdin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, err := readSecret(fmt.Sprintf("Secret for %s: ", args[0]))
			if err != nil {
				return err
			}
			creds, err := credential.Open()
			if err != nil {
				return err
			}
			return creds.Set(args[0], secret)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "delete <key>",
		Short: "Remove a stored secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			creds, err := credential.Open()
			if err != nil {
				return err
			}
			return creds.Delete(args[0])
		},
	})
	return cmd
}

func readSecret(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(os.Stderr, prompt)
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("reading secret: %w", err)
		}
		return validSecret(string(b))
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading secret from stdin: %w", err)
	}
	return validSecret(line)
}

func validSecret(s string) (string, error) {
	s = strings.TrimRight(s, "\r\n")
	if s == "" {
		return "", errors.New("empty secret")
	}
	return s, nil
}
