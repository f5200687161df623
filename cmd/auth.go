package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/theirongolddev/worklog/internal/auth"
	"github.com/theirongolddev/worklog/internal/cli"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"
)

var (
	flagAuthUser    string
	flagAuthExpires time.Duration
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Show the stored upload credentials",
	RunE:  runAuthStatus,
}

var authSetTokenCmd = &cobra.Command{
	Use:   "set-token [token]",
	Short: "Store an access token for uploads (reads stdin when no argument is given)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAuthSetToken,
}

var authClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the stored credentials",
	RunE:  runAuthClear,
}

func init() {
	authSetTokenCmd.Flags().StringVar(&flagAuthUser, "user", "", "Account id attached to uploaded records")
	authSetTokenCmd.Flags().DurationVar(&flagAuthExpires, "expires-in", 0, "Token lifetime (0 for no expiry)")
	authCmd.AddCommand(authSetTokenCmd, authClearCmd)
	rootCmd.AddCommand(authCmd)
}

func credentialStore() *auth.FileStore {
	return auth.NewFileStore(appCfg.CredentialsPath(), nil)
}

func runAuthStatus(_ *cobra.Command, _ []string) error {
	fs := credentialStore()
	if err := fs.Load(); err != nil {
		return err
	}

	fmt.Printf("  Credentials file: %s\n", fs.Path())
	if _, err := fs.Token(); err != nil {
		if errors.Is(err, auth.ErrNoCredentials) {
			fmt.Printf("  Status: %s\n", strings.TrimPrefix(err.Error(), "auth: "))
			fmt.Println("  Store a token with `worklog auth set-token --user <id>`.")
			return nil
		}
		return err
	}
	fmt.Println("  Status: authenticated")
	if id := fs.UserID(); id != "" {
		fmt.Printf("  User: %s\n", id)
	}
	return nil
}

func runAuthSetToken(_ *cobra.Command, args []string) error {
	var token string
	if len(args) == 1 {
		token = args[0]
	} else {
		infof("  Paste the access token and press Enter:\n")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("reading token: %w", err)
		}
		token = line
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("token must not be empty")
	}

	creds := auth.Credentials{
		Token:  oauth2.Token{AccessToken: token, TokenType: "Bearer"},
		UserID: strings.TrimSpace(flagAuthUser),
	}
	if flagAuthExpires > 0 {
		creds.Expiry = time.Now().Add(flagAuthExpires)
	}

	fs := credentialStore()
	if err := fs.Save(creds); err != nil {
		return err
	}
	fmt.Println("  " + cli.RenderOutcome(true, "credentials saved to "+fs.Path()))
	return nil
}

func runAuthClear(_ *cobra.Command, _ []string) error {
	if err := credentialStore().Clear(); err != nil {
		return err
	}
	fmt.Println("  " + cli.RenderOutcome(true, "credentials removed"))
	return nil
}
