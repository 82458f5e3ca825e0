// Command bootstrap-admin creates an administrator account. Administrators
// cannot sign up through the API.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/sethvargo/go-envconfig"
	"github.com/spf13/cobra"

	"github.com/carebridge/identity-core/internal/app"
	"github.com/carebridge/identity-core/internal/core/ports"
	"github.com/carebridge/identity-core/internal/pkg/config"
	"github.com/carebridge/identity-core/pkg/logger"
)

var (
	emailFlag    string
	passwordFlag string
	stdinFlag    bool
)

var rootCmd = &cobra.Command{
	Use:   "bootstrap-admin",
	Short: "Create an administrator account",
	Long: `Creates an administrator principal and its role assignment.
Running it again with the same credentials completes a partially created
administrator instead of failing.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if emailFlag == "" {
			return fmt.Errorf("--email flag is required")
		}

		password := passwordFlag
		if stdinFlag {
			// Read password from stdin
			scanner := bufio.NewScanner(os.Stdin)
			fmt.Fprint(cmd.ErrOrStderr(), "Enter password: ")
			if scanner.Scan() {
				password = strings.TrimSpace(scanner.Text())
			}
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("failed to read password: %w", err)
			}
		}
		if password == "" {
			return fmt.Errorf("password is required (use --password or --stdin)")
		}

		cfg, err := config.LoadWith(cmd.Context(), envconfig.OsLookuper())
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		log := logger.New(logger.Options{Level: cfg.LogLevel, Console: true, Output: cmd.ErrOrStderr(), Service: "bootstrap-admin", Env: cfg.Env})

		a, err := app.New(cmd.Context(), cfg, log)
		if err != nil {
			return fmt.Errorf("failed to connect: %w", err)
		}
		defer func() { _ = a.Close(cmd.Context()) }()

		p, err := a.Registrar.Register(cmd.Context(), ports.AdminRegistration{
			Credentials: ports.Credentials{Email: emailFlag, Password: password},
		})
		if err != nil {
			return fmt.Errorf("failed to create administrator: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "administrator %s created (id %s)\n", p.Email, p.ID)
		return nil
	},
}

func init() {
	rootCmd.Flags().StringVar(&emailFlag, "email", "", "Administrator email")
	rootCmd.Flags().StringVar(&passwordFlag, "password", "", "Administrator password")
	rootCmd.Flags().BoolVar(&stdinFlag, "stdin", false, "Read the password from stdin")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
