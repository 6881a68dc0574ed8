package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile      string
	producerAddr string
	consumerAddr string
	baseDir      string
)

var rootCmd = &cobra.Command{
	Use:   "plumberctl",
	Short: "plumberctl is a CLI for talking to a plumber-queue broker",
	Long:  `A terminal tool for pushing lines into the queue, draining messages with heartbeats, and inspecting the consumer offset.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.plumberctl.yaml)")
	rootCmd.PersistentFlags().StringVar(&producerAddr, "producer-addr", "127.0.0.1:8084", "broker producer address")
	rootCmd.PersistentFlags().StringVar(&consumerAddr, "consumer-addr", "127.0.0.1:8085", "broker consumer address")
	rootCmd.PersistentFlags().StringVar(&baseDir, "base-dir", "/tmp/qtest", "broker base directory (for offset inspection)")
	viper.BindPFlag("producer-addr", rootCmd.PersistentFlags().Lookup("producer-addr"))
	viper.BindPFlag("consumer-addr", rootCmd.PersistentFlags().Lookup("consumer-addr"))
	viper.BindPFlag("base-dir", rootCmd.PersistentFlags().Lookup("base-dir"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, _ := os.UserHomeDir()
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".plumberctl")
	}

	viper.AutomaticEnv()
	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	Execute()
}
