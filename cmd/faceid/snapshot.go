package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/faceid/store"
)

func newSnapshotCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "snapshot <file>",
		Short: "Inspect a record snapshot file",
		Long:  "snapshot validates a record snapshot (header, checksum, payload) and prints its codec, compression, store version and contents summary.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := store.InspectSnapshot(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()

			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{
					"format_version": info.FormatVersion,
					"codec":          info.Codec,
					"compression":    string(info.Compression),
					"store_version":  info.StoreVersion,
					"payload_bytes":  info.PayloadBytes,
					"records":        info.Records,
					"dimension":      info.Dimension,
				})
			}

			fmt.Fprintf(out, "format version: %d\n", info.FormatVersion)
			fmt.Fprintf(out, "codec:          %s\n", info.Codec)
			fmt.Fprintf(out, "compression:    %s\n", info.Compression)
			fmt.Fprintf(out, "store version:  %d\n", info.StoreVersion)
			fmt.Fprintf(out, "payload bytes:  %d\n", info.PayloadBytes)
			fmt.Fprintf(out, "records:        %d\n", info.Records)
			fmt.Fprintf(out, "dimension:      %d\n", info.Dimension)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of text")

	return cmd
}
