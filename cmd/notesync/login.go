package main

import (
	"context"
	"fmt"
	"os"

	"notesync/internal/domain"

	"github.com/spf13/cobra"
)

var (
	loginEmail    string
	loginPassword string
	registerName  string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and register this device",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		a, err := newApp(ctx)
		if err != nil {
			fatal("Failed to open notesync", err)
		}
		defer a.Close()

		sess, err := a.account.Login(ctx, domain.LoginRequest{
			Email:    loginEmail,
			Password: passwordFromEnv(loginPassword),
		})
		if err != nil {
			fatal("Login failed", err)
		}

		fmt.Printf("Signed in as %s on device %s.\n", sess.UserID, sess.DeviceID)
	},
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account on the notes server",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		a, err := newApp(ctx)
		if err != nil {
			fatal("Failed to open notesync", err)
		}
		defer a.Close()

		err = a.account.Register(ctx, domain.RegisterRequest{
			Username: registerName,
			Email:    loginEmail,
			Password: passwordFromEnv(loginPassword),
		})
		if err != nil {
			fatal("Registration failed", err)
		}

		fmt.Println("Account created. Run 'notesync login' to sign in.")
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out of this device",
	Long: `Sign out of this device. Edits that were not synced yet stay queued and
are pushed after the next login with the same account.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		a, err := newApp(ctx)
		if err != nil {
			fatal("Failed to open notesync", err)
		}
		defer a.Close()

		if err := a.account.Logout(ctx); err != nil {
			fatal("Logout failed", err)
		}
		fmt.Println("Signed out.")
	},
}

// passwordFromEnv lets scripts keep the password out of the process list.
func passwordFromEnv(flag string) string {
	if flag != "" {
		return flag
	}
	return os.Getenv("NOTESYNC_PASSWORD")
}

func init() {
	for _, c := range []*cobra.Command{loginCmd, registerCmd} {
		c.Flags().StringVar(&loginEmail, "email", "", "Account email")
		c.Flags().StringVar(&loginPassword, "password", "", "Account password (or NOTESYNC_PASSWORD)")
		c.MarkFlagRequired("email")
	}
	registerCmd.Flags().StringVar(&registerName, "username", "", "Username (3-30 letters or digits)")
	registerCmd.MarkFlagRequired("username")

	rootCmd.AddCommand(loginCmd, registerCmd, logoutCmd)
}
