package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Long:  `Display the configuration loaded from file (or the defaults) after validation.`,
	RunE:  runConfig,
}

var validateOnly bool

func init() {
	configCmd.Flags().BoolVar(&validateOnly, "validate", false, "only validate config, don't print")
	rootCmd.AddCommand(configCmd)
}

func runConfig(cmd *cobra.Command, args []string) error {
	w := cmd.OutOrStdout()

	cfg, err := loadConfig()
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		if jsonOut {
			fmt.Fprintf(w, `{"valid":false,"error":%q}`+"\n", err.Error())
		} else {
			fmt.Fprintf(w, "Configuration invalid: %v\n", err)
		}
		return err
	}

	if validateOnly {
		if jsonOut {
			fmt.Fprintln(w, `{"valid":true}`)
		} else {
			fmt.Fprintln(w, "Configuration is valid")
		}
		return nil
	}

	// the DSN and the API password stay out of the printout
	redacted := *cfg
	if redacted.Results.MySQLDSN != "" {
		redacted.Results.MySQLDSN = "***"
	}
	if redacted.Auth.Password != "" {
		redacted.Auth.Password = "***"
	}

	if jsonOut {
		data, err := json.MarshalIndent(&redacted, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(data))
		return nil
	}
	data, err := yaml.Marshal(&redacted)
	if err != nil {
		return err
	}
	fmt.Fprint(w, string(data))
	return nil
}
