// File path: cmd/docverge/commands/root.go
package commands

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"docverge/internal/common"
)

var envFile string

func Execute() error {
	root := &cobra.Command{
		Use:   "docverge",
		Short: "Document comparison service with citable diffs",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if envFile != "" {
				if err := godotenv.Load(envFile); err != nil {
					return err
				}
				common.Logger().Info("loaded environment file", "path", envFile)
			} else if err := godotenv.Load(); err == nil {
				common.Logger().Info("loaded environment file", "path", ".env")
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&envFile, "env-file", "", "env file to load before reading configuration")

	root.AddCommand(serveCmd(), compareCmd())
	return root.Execute()
}
