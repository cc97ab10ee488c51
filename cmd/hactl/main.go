// hactl - operator CLI for hadevice
//
// hactl talks to the same MQTT broker as the device and works purely from
// the topics the device announces:
//
//	hactl list              print the discovered entities
//	hactl watch             stream state and availability changes
//	hactl set <id> <value>  command a number entity
//
// Broker settings and the device ID come from the hadevice configuration
// file (HADEVICE_CONFIG or -config).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/nerrad567/graylogic-ha/internal/hass"
	"github.com/nerrad567/graylogic-ha/internal/infrastructure/config"
	"github.com/nerrad567/graylogic-ha/internal/infrastructure/logging"
	"github.com/nerrad567/graylogic-ha/internal/infrastructure/mqtt"
)

const defaultConfigPath = "configs/config.yaml"

// version is set at build time via ldflags.
var version = "dev"

// errUsage is returned for malformed command lines.
var errUsage = errors.New("usage")

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			usage(os.Stderr)
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run parses the command line, connects, and dispatches to a subcommand.
func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) < 1 {
		return errUsage
	}
	name, args := args[0], args[1:]

	flags := flag.NewFlagSet(name, flag.ContinueOnError)
	flags.SetOutput(io.Discard)
	configPath := flags.String("config", getConfigPath(), "hadevice configuration file")
	deviceID := flags.String("device", "", "device ID (default: from config)")
	wait := flags.Duration("wait", defaultListWait, "how long list collects retained configs")
	if err := flags.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}

	switch name {
	case "list", "watch", "set":
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, name)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if *deviceID != "" {
		cfg.Device.ID = *deviceID
	}
	topics := hass.Topics{Prefix: cfg.Discovery.Prefix, DeviceID: cfg.Device.ID}

	// Never reuse the device's client ID; the broker would drop the device.
	cfg.MQTT.Broker.ClientID = "hactl-" + uuid.NewString()
	log := logging.NewWithWriter(config.LoggingConfig{Level: "warn", Format: "text"}, version, os.Stderr)
	client, err := mqtt.Connect(cfg.MQTT, log.Component("mqtt"))
	if err != nil {
		return err
	}
	defer client.Close() //nolint:errcheck // Exiting anyway

	switch name {
	case "list":
		return listCmd(ctx, client, topics, *wait, out)
	case "watch":
		return watchCmd(ctx, client, topics, out)
	default:
		return setCmd(client, topics, flags.Args())
	}
}

// getConfigPath returns the configuration file path.
// Uses HADEVICE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("HADEVICE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

func usage(w io.Writer) {
	fmt.Fprintln(w, `usage: hactl <command> [flags] [args]

commands:
  list              print the entities the device announced
  watch             stream state and availability changes
  set <id> <value>  send a command to a number entity

flags:
  -config path      hadevice configuration file
  -device id        device ID (default: from config)
  -wait duration    list collection window (default 2s)`)
}
