package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zalando/go-keyring"
	"golang.org/x/term"
)

var (
	loginUser string
	loginHost string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store an SSO password in the OS keyring",
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := readPassword()
		if err != nil {
			return err
		}
		if password == "" {
			return fmt.Errorf("empty password")
		}
		key := loginUser + "@" + loginHost
		if err := keyring.Set(keyringService, key, password); err != nil {
			return fmt.Errorf("store credential: %w", err)
		}
		fmt.Printf("stored credential for %s\n", key)
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVar(&loginUser, "user", "", "SSO username")
	loginCmd.Flags().StringVar(&loginHost, "host", "", "site host the credential is for")
	_ = loginCmd.MarkFlagRequired("user")
	_ = loginCmd.MarkFlagRequired("host")
}

func readPassword() (string, error) {
	fmt.Fprint(os.Stderr, "password: ")
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		data, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimSpace(line), nil
}
