package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/MrEthical07/feedbackAuth/client"
)

func printUser(w io.Writer, u *client.User) {
	if u == nil {
		fmt.Fprintln(w, "signed in")
		return
	}
	fmt.Fprintf(w, "%s <%s> role=%s id=%s\n", u.Username, u.Email, u.Role, u.ID)
}

func newRegisterCmd(g *globals) *cobra.Command {
	var req client.RegisterRequest

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, sess, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer sess.Close()

			if req.PasswordConfirm == "" {
				req.PasswordConfirm = req.Password
			}
			u, err := c.Register(cmd.Context(), req)
			if err != nil {
				return err
			}
			printUser(cmd.OutOrStdout(), u)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&req.Email, "email", "", "email")
	f.StringVar(&req.Username, "username", "", "username")
	f.StringVar(&req.FirstName, "first-name", "", "first name")
	f.StringVar(&req.LastName, "last-name", "", "last name")
	f.StringVar(&req.Password, "password", "", "password")
	f.StringVar(&req.PasswordConfirm, "password-confirm", "", "password confirmation (defaults to --password)")
	f.StringVar(&req.Company, "company", "", "company")
	f.StringVar(&req.JobTitle, "job-title", "", "job title")
	for _, name := range []string{"email", "username", "first-name", "last-name", "password"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func newLoginCmd(g *globals) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the tokens locally",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, sess, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer sess.Close()

			u, err := c.Login(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			printUser(cmd.OutOrStdout(), u)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email")
	cmd.Flags().StringVar(&password, "password", "", "password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newWhoamiCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, sess, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer sess.Close()

			u, err := c.Me(cmd.Context())
			if errors.Is(err, client.ErrNotAuthenticated) {
				return errors.New("not signed in")
			}
			if err != nil {
				return err
			}
			printUser(cmd.OutOrStdout(), u)
			return nil
		},
	}
}

func newLogoutCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the session and forget local tokens",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, sess, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer sess.Close()

			if err := c.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "signed out")
			return nil
		},
	}
}
