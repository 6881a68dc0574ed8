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

var (
	drainCount     int
	drainHeartbeat time.Duration
)

func init() {
	drainCmd.Flags().IntVarP(&drainCount, "count", "n", 0, "stop after this many messages (0 = drain until interrupted)")
	drainCmd.Flags().DurationVar(&drainHeartbeat, "heartbeat", 3*time.Second, "interval between keepalive lines sent to the broker")
	rootCmd.AddCommand(drainCmd)
}

var drainCmd = &cobra.Command{
	Use:   "drain",
	Short: "Receive messages and print them to stdout",
	Long:  `Connects to the broker's consumer port, sends periodic keepalive lines so the session stays live, and prints each received message to stdout in wire form.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := viper.GetString("consumer-addr")
		conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
		if err != nil {
			return fmt.Errorf("failed to connect to %s: %w", addr, err)
		}
		defer conn.Close()

		// The broker treats any inbound line as a liveness token.
		stop := make(chan struct{})
		defer close(stop)
		go func() {
			ticker := time.NewTicker(drainHeartbeat)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					if _, err := conn.Write([]byte("ping\n")); err != nil {
						return
					}
				case <-stop:
					return
				}
			}
		}()

		scanner := bufio.NewScanner(conn)
		received := 0
		for scanner.Scan() {
			fmt.Println(scanner.Text())
			received++
			if drainCount > 0 && received >= drainCount {
				break
			}
		}
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("connection failed after %d messages: %w", received, err)
		}
		fmt.Fprintf(os.Stderr, "drained %d messages\n", received)
		return nil
	},
}
