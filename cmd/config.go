package cmd

import (
	"github.com/spf13/cobra"

	"github.com/oakwood-commons/dumpx/internal/config"
)

func newConfigCmd(a *app) *cobra.Command {
	c := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `config prints the built-in defaults merged with the file given by --config
(or found at $XDG_CONFIG_HOME/dumpx/config.yaml). Flags are not included.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := a.cfg.Marshal()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
	c.AddCommand(&cobra.Command{
		Use:   "default",
		Short: "Print the built-in default configuration, with comments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := cmd.OutOrStdout().Write(config.DefaultYAML())
			return err
		},
	})
	return c
}
