package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	rootCmd.AddCommand(offsetCmd)
}

var offsetCmd = &cobra.Command{
	Use:   "offset",
	Short: "Print the last snapshotted consumer offset",
	Long:  `Reads the broker's consumer.offset snapshot and prints the drained offset in decimal. Consumers read this before reconnecting to know where the stream left off.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := filepath.Join(viper.GetString("base-dir"), "consumer.offset")
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		v, err := strconv.ParseUint(strings.TrimSpace(string(data)), 16, 64)
		if err != nil {
			return fmt.Errorf("malformed offset snapshot %s: %w", path, err)
		}
		fmt.Println(v)
		return nil
	},
}
