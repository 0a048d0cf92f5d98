package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/uniqlow/openal-soft/internal/backend"
	"github.com/uniqlow/openal-soft/internal/backend/wasapi"
	"github.com/uniqlow/openal-soft/internal/config"
	"github.com/uniqlow/openal-soft/internal/events"
	"github.com/uniqlow/openal-soft/internal/logging"
)

var (
	version   = "0.1.0"
	cfgFile   string
	logLevel  string
	logFormat string
)

var log = logging.L("main")

var rootCmd = &cobra.Command{
	Use:   "alsoft",
	Short: "OpenAL Soft WASAPI backend tool",
	Long:  `Diagnostic tool for the WASAPI audio backend: enumerate endpoints, record from a capture device, and watch default-device changes.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Load(cfgFile); err != nil {
			return err
		}
		logging.Init(logFormat, logLevel, nil)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List playback and capture devices",
	Run: func(cmd *cobra.Command, args []string) {
		listDevices()
	},
}

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Watch default-device change events until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		return monitorDevices()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("alsoft v%s\n", version)
	},
}

func main() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func listDevices() {
	printProbe("Playback devices", wasapi.Probe(backend.Playback))
	printProbe("Capture devices", wasapi.Probe(backend.Capture))
}

func printProbe(header, probe string) {
	fmt.Println(header + ":")
	names := splitProbe(probe)
	if len(names) == 0 {
		fmt.Println("  (none found)")
		return
	}
	for i, name := range names {
		fmt.Printf("  %d: %s\n", i, name)
	}
}

// splitProbe breaks a null-separated, double-null-terminated probe string
// into names.
func splitProbe(probe string) []string {
	probe = strings.TrimSuffix(probe, "\x00")
	if probe == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(probe, "\x00"), "\x00")
}

func monitorDevices() error {
	if err := wasapi.Init(); err != nil {
		return fmt.Errorf("backend unavailable: %w", err)
	}

	id := events.Register(func(t events.Type, dir events.Direction, msg string) {
		fmt.Printf("[%s] %s: %s\n", t, dir, msg)
	})
	defer events.Unregister(id)

	// Prime the registries so changes are observed against a known state.
	wasapi.Probe(backend.Playback)
	wasapi.Probe(backend.Capture)

	log.Info("watching for device events, press Ctrl-C to stop")
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	return nil
}
