package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/nerrad567/graylogic-ha/internal/hass"
	"github.com/nerrad567/graylogic-ha/internal/infrastructure/mqtt"
)

// defaultListWait is how long list collects retained discovery configs.
const defaultListWait = 2 * time.Second

// commandQoS is the QoS used for set, so the command survives a busy
// broker.
const commandQoS = 1

// broker is the part of mqtt.Client the commands use.
type broker interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// discovered is one entity seen on a discovery config topic.
type discovered struct {
	domain string
	id     string
	config hass.EntityConfig
}

// listCmd collects retained discovery configs for wait and prints them.
func listCmd(ctx context.Context, b broker, topics hass.Topics, wait time.Duration, out io.Writer) error {
	var (
		mu       sync.Mutex
		entities = make(map[string]discovered)
	)

	err := b.Subscribe(topics.AllConfigs(), 0, func(topic string, payload []byte) error {
		domain, id, ok := parseConfigTopic(topic)
		if !ok {
			return nil
		}
		mu.Lock()
		defer mu.Unlock()

		// An empty retained payload removes the entity.
		if len(payload) == 0 {
			delete(entities, id)
			return nil
		}
		cfg, err := hass.ParseEntityConfig(payload)
		if err != nil {
			return fmt.Errorf("parsing config for %s: %w", id, err)
		}
		entities[id] = discovered{domain: domain, id: id, config: cfg}
		return nil
	})
	if err != nil {
		return fmt.Errorf("subscribing to discovery: %w", err)
	}

	select {
	case <-ctx.Done():
	case <-time.After(wait):
	}

	mu.Lock()
	defer mu.Unlock()

	if len(entities) == 0 {
		fmt.Fprintf(out, "no entities announced for device %q\n", topics.DeviceID)
		return nil
	}
	return writeEntities(out, entities)
}

// writeEntities prints entities sorted by ID as an aligned table.
func writeEntities(out io.Writer, entities map[string]discovered) error {
	list := make([]discovered, 0, len(entities))
	for _, e := range entities {
		list = append(list, e)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].id < list[j].id })

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDOMAIN\tNAME\tCLASS\tUNIT\tRANGE")
	for _, e := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.id, e.domain, e.config.Name,
			dash(e.config.DeviceClass), dash(e.config.UnitOfMeasurement), numberRange(e.config))
	}
	return tw.Flush()
}

// watchCmd prints every state and availability message until ctx ends.
func watchCmd(ctx context.Context, b broker, topics hass.Topics, out io.Writer) error {
	var mu sync.Mutex
	printLine := func(format string, args ...any) {
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintf(out, "%s  "+format+"\n", append([]any{time.Now().Format(time.TimeOnly)}, args...)...)
	}

	err := b.Subscribe(topics.AllStates(), 0, func(topic string, payload []byte) error {
		id, ok := topics.EntityFromTopic(topic)
		if !ok {
			return nil
		}
		printLine("%s = %s", id, payload)
		return nil
	})
	if err != nil {
		return fmt.Errorf("subscribing to states: %w", err)
	}

	err = b.Subscribe(topics.Availability(), 0, func(_ string, payload []byte) error {
		printLine("device %s is %s", topics.DeviceID, payload)
		return nil
	})
	if err != nil {
		return fmt.Errorf("subscribing to availability: %w", err)
	}

	<-ctx.Done()
	return nil
}

// setCmd publishes a command to a number entity.
func setCmd(b broker, topics hass.Topics, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("%w: set needs <id> <value>", errUsage)
	}
	id, raw := args[0], args[1]

	if !hass.ValidSegment(id) {
		return fmt.Errorf("invalid entity id %q", id)
	}
	v, err := strconv.ParseFloat(raw, 32)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("invalid value %q", raw)
	}

	payload := strconv.AppendFloat(nil, v, 'f', -1, 32)
	if err := b.Publish(topics.Command(id), payload, commandQoS, false); err != nil {
		return fmt.Errorf("publishing command: %w", err)
	}
	return nil
}

// parseConfigTopic splits <prefix>/<domain>/<device>/<entity>/config.
func parseConfigTopic(topic string) (domain, id string, ok bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 5 || parts[4] != "config" {
		return "", "", false
	}
	return parts[1], parts[3], true
}

func numberRange(c hass.EntityConfig) string {
	if c.Min == nil || c.Max == nil {
		return "-"
	}
	r := formatFloat(*c.Min) + ".." + formatFloat(*c.Max)
	if c.Step != nil {
		r += " step " + formatFloat(*c.Step)
	}
	return r
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
