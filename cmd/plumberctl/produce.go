package main

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	rootCmd.AddCommand(produceCmd)
}

var produceCmd = &cobra.Command{
	Use:   "produce",
	Short: "Push lines from stdin into the queue",
	Long:  `Reads newline-delimited lines from stdin and writes each one to the broker's producer port. An empty stdin produces nothing.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := viper.GetString("producer-addr")
		conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
		if err != nil {
			return fmt.Errorf("failed to connect to %s: %w", addr, err)
		}
		defer conn.Close()

		w := bufio.NewWriter(conn)
		scanner := bufio.NewScanner(os.Stdin)
		count := 0
		for scanner.Scan() {
			if _, err := w.WriteString(scanner.Text()); err != nil {
				return fmt.Errorf("write failed: %w", err)
			}
			if err := w.WriteByte('\n'); err != nil {
				return fmt.Errorf("write failed: %w", err)
			}
			count++
		}
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		if err := w.Flush(); err != nil {
			return fmt.Errorf("flush failed: %w", err)
		}
		fmt.Fprintf(os.Stderr, "produced %d lines\n", count)
		return nil
	},
}
