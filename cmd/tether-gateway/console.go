package main

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
)

// Console is the interactive command loop for the gateway.
type Console struct {
	gateway *Gateway
	rl      *readline.Instance
}

// NewConsole creates the console.
func NewConsole(gateway *Gateway) (*Console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "gateway> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &Console{gateway: gateway, rl: rl}, nil
}

// Run starts the command loop. It calls cancel on exit.
func (c *Console) Run(ctx context.Context, cancel context.CancelFunc) {
	defer c.rl.Close()

	c.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := c.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(c.rl.Stdout(), "Exiting...")
			cancel()
			return
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		parts := strings.Fields(input)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "help", "?":
			c.printHelp()

		case "devices", "d":
			c.cmdDevices()

		case "values", "v":
			c.cmdValues(args)

		case "poll", "p":
			c.cmdPoll(args)

		case "push":
			c.cmdPush(args)

		case "quit", "exit", "q":
			fmt.Fprintln(c.rl.Stdout(), "Exiting...")
			cancel()
			return

		default:
			fmt.Fprintf(c.rl.Stdout(), "Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}
}

func (c *Console) printHelp() {
	fmt.Fprintln(c.rl.Stdout(), `
Tether Gateway Commands:
  devices                    - List registered devices
  values <device>            - Show the last value seen per channel
  poll <device> <channel>    - Ask a device for a channel value
  push <device> <channel> <value> - Write a value to a device channel
  help                       - Show this help
  quit                       - Exit gateway`)
}

func (c *Console) cmdDevices() {
	devices := c.gateway.Devices()
	if len(devices) == 0 {
		fmt.Fprintln(c.rl.Stdout(), "no devices registered")
		return
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].Name < devices[j].Name })
	for _, d := range devices {
		state := "offline"
		if d.Online {
			state = "online"
		}
		fmt.Fprintf(c.rl.Stdout(), "%-20s %s  %d channels  %s\n", d.Name, d.UUID, d.Channels, state)
	}
}

func (c *Console) cmdValues(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: values <device>")
		return
	}
	for _, d := range c.gateway.Devices() {
		if d.Name != args[0] && d.UUID != args[0] {
			continue
		}
		if len(d.Values) == 0 {
			fmt.Fprintln(c.rl.Stdout(), "no values seen yet")
			return
		}
		ids := make([]int, 0, len(d.Values))
		for id := range d.Values {
			ids = append(ids, int(id))
		}
		sort.Ints(ids)
		for _, id := range ids {
			fmt.Fprintf(c.rl.Stdout(), "channel %d: %s\n", id, d.Values[uint8(id)])
		}
		return
	}
	fmt.Fprintf(c.rl.Stdout(), "unknown device %q\n", args[0])
}

func (c *Console) cmdPoll(args []string) {
	if len(args) != 2 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: poll <device> <channel>")
		return
	}
	id, err := parseChannelID(args[1])
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Invalid channel: %v\n", err)
		return
	}
	if err := c.gateway.Poll(args[0], id); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Poll failed: %v\n", err)
		return
	}
	fmt.Fprintf(c.rl.Stdout(), "polled channel %d, check 'values %s'\n", id, args[0])
}

func (c *Console) cmdPush(args []string) {
	if len(args) < 3 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: push <device> <channel> <value>")
		return
	}
	id, err := parseChannelID(args[1])
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Invalid channel: %v\n", err)
		return
	}
	if err := c.gateway.Push(args[0], id, strings.Join(args[2:], " ")); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Push failed: %v\n", err)
		return
	}
	fmt.Fprintf(c.rl.Stdout(), "pushed to channel %d\n", id)
}

func parseChannelID(s string) (uint8, error) {
	n, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 0, err
	}
	return uint8(n), nil
}
