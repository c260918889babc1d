package cli

import (
	"github.com/spf13/cobra"
)

func NewWatermarkCmd() *cobra.Command {
	var tablesFile string

	cmd := &cobra.Command{
		Use:   "watermark",
		Short: "Inspect or reset stored watermarks",
	}
	cmd.PersistentFlags().StringVarP(&tablesFile, "tables", "f", "", "Table list used to validate values on set")

	get := &cobra.Command{
		Use:   "get TABLE",
		Short: "Print the watermark of a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return runWatermarkGet(c, args[0])
		},
	}

	set := &cobra.Command{
		Use:   "set TABLE VALUE",
		Short: "Overwrite the watermark of a table",
		Args:  cobra.ExactArgs(2),
		RunE: func(c *cobra.Command, args []string) error {
			return runWatermarkSet(c, tablesFile, args[0], args[1])
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "Print all stored watermarks",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			return runWatermarkList(c)
		},
	}

	cmd.AddCommand(get, set, list)
	return cmd
}
