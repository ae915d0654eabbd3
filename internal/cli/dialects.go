package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/ddlgen/internal/ddl"
)

// NewDialectsCmd lists the configured database types.
func NewDialectsCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "dialects",
		Short: "List supported database types",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			reg, err := loadDialects(cfg)
			if err != nil {
				return err
			}
			return writeDialects(cmd.OutOrStdout(), reg, asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print dialect definitions as JSON")
	return cmd
}

func writeDialects(w io.Writer, reg *ddl.Registry, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(reg.Dialects())
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tLABEL\tCOMMENTS\tPRIMARY KEY\tENGINE")
	for _, d := range reg.Dialects() {
		engine := d.Engine
		if engine == "" {
			engine = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\n", d.Key, d.Label, d.Comments, d.PrimaryKey, engine)
	}
	return tw.Flush()
}
