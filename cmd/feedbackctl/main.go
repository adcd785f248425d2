// Command feedbackctl drives the session client against a running
// feedbackd, keeping tokens in a local Badger database.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/MrEthical07/feedbackAuth/client"
)

type globals struct {
	server   string
	storeDir string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func defaultStoreDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".feedbackctl"
	}
	return filepath.Join(home, ".feedbackctl")
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:           "feedbackctl",
		Short:         "Command-line client for the feedback account API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&g.server, "server", envOr("FEEDBACK_SERVER", "http://localhost:8080/api/auth"), "API base URL")
	root.PersistentFlags().StringVar(&g.storeDir, "store", defaultStoreDir(), "token store directory")

	root.AddCommand(
		newRegisterCmd(g),
		newLoginCmd(g),
		newWhoamiCmd(g),
		newLogoutCmd(g),
	)
	return root
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// open builds a client over the persisted session. Callers must Close the
// returned session.
func (g *globals) open(cmd *cobra.Command) (*client.Client, *client.Session, error) {
	store, err := client.OpenBadgerTokenStore(g.storeDir)
	if err != nil {
		return nil, nil, err
	}
	sess, err := client.NewSession(cmd.Context(), store)
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	nav := client.LoginNavigatorFunc(func() {
		fmt.Fprintln(cmd.ErrOrStderr(), "session expired; run `feedbackctl login`")
	})
	return client.New(g.server, sess, client.WithNavigator(nav)), sess, nil
}
