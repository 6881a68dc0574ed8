package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/MostlyMax/plumber-queue/internal/broker"
	"github.com/MostlyMax/plumber-queue/internal/config"
	"github.com/MostlyMax/plumber-queue/internal/version"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML or JSON config file")
	baseDir := flag.String("base-dir", config.DefaultBaseDir, "base directory for journal, offset snapshot and backup")
	producerAddr := flag.String("producer-addr", config.DefaultProducerAddr, "bind address for producer connections")
	consumerAddr := flag.String("consumer-addr", config.DefaultConsumerAddr, "bind address for consumer connections")
	capacity := flag.Int("capacity", config.DefaultCapacity, "queue capacity in messages")
	heartbeatMS := flag.Int("heartbeat-ms", int(config.DefaultHeartbeatInterval/time.Millisecond), "consumer heartbeat interval in milliseconds")
	backupPath := flag.String("backup", "", "path for the shutdown backup dump (default <base-dir>/test_backup)")
	versionFlag := flag.Bool("version", false, "Print the version and exit")
	flag.Parse()
	if *versionFlag {
		fmt.Printf("plumber %s\n", version.Version)
		return
	}

	// Environment fallbacks to simplify production configuration.
	// Only apply when the corresponding flag keeps its default value.
	if v := os.Getenv("PLUMBER_BASE_DIR"); v != "" && *baseDir == config.DefaultBaseDir {
		*baseDir = v
	}
	if v := os.Getenv("PLUMBER_PRODUCER_ADDR"); v != "" && *producerAddr == config.DefaultProducerAddr {
		*producerAddr = v
	}
	if v := os.Getenv("PLUMBER_CONSUMER_ADDR"); v != "" && *consumerAddr == config.DefaultConsumerAddr {
		*consumerAddr = v
	}
	if v := os.Getenv("PLUMBER_CAPACITY"); v != "" && *capacity == config.DefaultCapacity {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			*capacity = n
		}
	}
	if v := os.Getenv("PLUMBER_HEARTBEAT_MS"); v != "" && *heartbeatMS == int(config.DefaultHeartbeatInterval/time.Millisecond) {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			*heartbeatMS = n
		}
	}
	if v := os.Getenv("PLUMBER_CONFIG"); v != "" && *configPath == "" {
		*configPath = v
	}

	var cfg *config.Config
	if *configPath != "" {
		loaded, err := config.LoadConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
		cfg.Normalize(*baseDir)
	} else {
		cfg = config.DefaultConfig(*baseDir)
		cfg.Server.ProducerAddr = *producerAddr
		cfg.Server.ConsumerAddr = *consumerAddr
		cfg.Queue.Capacity = *capacity
		cfg.Server.HeartbeatInterval = time.Duration(*heartbeatMS) * time.Millisecond
		if *backupPath != "" {
			cfg.Journal.BackupPath = *backupPath
		}
	}

	logger := broker.NewDefaultLogger()
	b, err := broker.New(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to initialize broker: %v", err)
	}

	if err := b.Run(); err != nil {
		log.Fatalf("Broker failed: %v", err)
	}
	if err := b.Close(); err != nil {
		log.Fatalf("Failed to write backup: %v", err)
	}
}
