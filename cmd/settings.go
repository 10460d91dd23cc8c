package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/courtbook/internal/config"
)

func newSettingsCmd() *cobra.Command {
	var unmask bool

	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show the loaded settings (credentials masked unless --unmask)",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.Load()
			if err != nil {
				return err
			}

			mask := config.Mask
			if unmask {
				mask = func(v string) string { return v }
			}

			fmt.Fprintf(os.Stdout, "mail:    %s @ %s (password %s)\n",
				mask(settings.Mail.Username), settings.Mail.Addr, mask(settings.Mail.Password))
			fmt.Fprintf(os.Stdout, "         sender %q, subject %q\n", settings.Mail.Sender, settings.Mail.Subject)
			fmt.Fprintf(os.Stdout, "contact: %s <%s> %s\n",
				settings.Contact.Name, settings.Contact.Email, mask(settings.Contact.Phone))
			fmt.Fprintf(os.Stdout, "booking: %d day(s) prior, cutoff %s, %d config(s)\n",
				settings.PriorDays, settings.Cutoff, len(settings.Configs))
			if settings.DatabaseURL != "" {
				fmt.Fprintln(os.Stdout, "history: database configured")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&unmask, "unmask", false, "print credentials in the clear")
	cmd.AddCommand(newSettingsEncodeCmd())
	return cmd
}

// settings encode turns a plain JSON settings file into the token users put
// in COURTBOOK_SETTINGS, optionally sealed with a passphrase.
func newSettingsEncodeCmd() *cobra.Command {
	var (
		file string
		seal bool
	)

	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Encode a settings JSON file into a portable token",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			var s config.Settings
			if err := json.Unmarshal(raw, &s); err != nil {
				return fmt.Errorf("parse %s: %w", file, err)
			}

			var tok string
			if seal {
				pass := os.Getenv(config.EnvPassphrase)
				if pass == "" {
					return fmt.Errorf("--seal requires %s to be set", config.EnvPassphrase)
				}
				tok, err = config.SealToken(s, pass)
			} else {
				tok, err = config.EncodeToken(s)
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(os.Stdout, tok)
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "settings JSON file")
	cmd.Flags().BoolVar(&seal, "seal", false, "encrypt the token with the passphrase from the environment")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
