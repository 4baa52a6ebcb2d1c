package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hupe1980/faceid/store"
)

func newUsersCmd() *cobra.Command {
	var (
		configPath   string
		snapshotPath string
		asJSON       bool
	)

	cmd := &cobra.Command{
		Use:   "users",
		Short: "List enrolled identities from a record snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(configPath)
			if err != nil {
				return err
			}
			if snapshotPath == "" {
				snapshotPath = cfg.SnapshotPath
			}

			s, err := store.Open(func(o *store.Options) {
				o.Path = snapshotPath
			})
			if err != nil {
				return err
			}

			records := s.All()
			out := cmd.OutOrStdout()

			if asJSON {
				users := make([]map[string]any, len(records))
				for i, rec := range records {
					users[i] = map[string]any{
						"id":         rec.ID,
						"attributes": rec.Attributes,
						"created_at": rec.CreatedAt,
						"updated_at": rec.UpdatedAt,
					}
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{
					"total": len(users),
					"users": users,
				})
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tENROLLED\tUPDATED")
			for _, rec := range records {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
					rec.ID,
					rec.Attributes["name"],
					rec.CreatedAt.Format("2006-01-02 15:04:05"),
					rec.UpdatedAt.Format("2006-01-02 15:04:05"),
				)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(out, "total: %d\n", len(records))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")
	cmd.Flags().StringVar(&snapshotPath, "snapshot", "", "record snapshot file (overrides config)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")

	return cmd
}
