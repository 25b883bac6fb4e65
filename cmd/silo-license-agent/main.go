package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/EternisAI/silo-license/internal/fingerprint"
	"github.com/EternisAI/silo-license/internal/licenseclient"
)

var AppVersion string

func main() {
	if len(os.Args) > 1 && os.Args[1] == "issue" {
		if err := runIssue(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	InitConfig()

	slog.Info("Silo License Agent", "version", AppVersion)

	if config.License.Key == "" {
		fmt.Fprintln(os.Stderr, "Error: license.key is required (set LICENSE_KEY)")
		os.Exit(1)
	}

	opts := []licenseclient.Option{}
	if config.License.HardwareID != "" {
		opts = append(opts, licenseclient.WithFingerprinter(fingerprint.Static(config.License.HardwareID)))
	}
	if config.License.Timeout > 0 {
		opts = append(opts, licenseclient.WithTimeout(config.License.Timeout))
	}
	if config.License.Freshness > 0 {
		opts = append(opts, licenseclient.WithFreshness(config.License.Freshness))
	}

	client := licenseclient.New(config.License.Key, config.License.ApiURL, opts...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := client.RunGated(ctx, func() error {
		slog.Info("License valid", "features", client.Features())
		fmt.Println("This code only runs if the license is valid!")
		select {
		case <-time.After(2 * time.Second):
		case <-ctx.Done():
			return ctx.Err()
		}
		fmt.Println("Application completed successfully!")
		return nil
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
