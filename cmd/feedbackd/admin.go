package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	feedbackAuth "github.com/MrEthical07/feedbackAuth"
)

func newCreateAdminCmd(configFile *string) *cobra.Command {
	var req feedbackAuth.CreateAdminRequest

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), *configFile, false)
			if err != nil {
				return err
			}
			defer a.Close()

			u, err := a.engine.CreateAdmin(cmd.Context(), req)
			if errors.Is(err, feedbackAuth.ErrAlreadyRegistered) {
				return fmt.Errorf("user with email %s or username already exists", req.Email)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "admin user %s created (id %s)\n", u.Email, u.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.Email, "email", "", "admin email")
	cmd.Flags().StringVar(&req.Password, "password", "", "admin password")
	cmd.Flags().StringVar(&req.Username, "username", "", "username (defaults to the email local part)")
	cmd.Flags().StringVar(&req.FirstName, "first-name", "", "first name (default Admin)")
	cmd.Flags().StringVar(&req.LastName, "last-name", "", "last name (default User)")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}
