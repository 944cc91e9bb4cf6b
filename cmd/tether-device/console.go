package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/tether-iot/tether-go/pkg/session"
)

// Console is the interactive command loop for the device.
type Console struct {
	sim  *Simulation
	sess *session.Session
	rl   *readline.Instance
}

// NewConsole creates the console.
func NewConsole(sim *Simulation, sess *session.Session) (*Console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "device> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &Console{sim: sim, sess: sess, rl: rl}, nil
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

		case "status", "s":
			c.cmdStatus()

		case "temp", "t":
			c.cmdTemp(args)

		case "led", "l":
			c.cmdLED(args)

		case "tag":
			c.cmdTag(args)

		case "creds":
			c.cmdCreds()

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
Tether Device Commands:
  status             - Show session state and channel values
  temp <celsius>     - Set the simulated temperature
  led on|off         - Set the LED locally
  tag <text>         - Set the tag payload
  creds              - Show the stored credentials
  help               - Show this help
  quit               - Exit device`)
}

func (c *Console) cmdStatus() {
	fmt.Fprintf(c.rl.Stdout(), "session:     %s\n", c.sess.State())
	fmt.Fprintf(c.rl.Stdout(), "temperature: %d C\n", c.sim.Temperature())
	fmt.Fprintf(c.rl.Stdout(), "led:         %v\n", c.sim.LED())
	fmt.Fprintf(c.rl.Stdout(), "tag:         %q\n", c.sim.Tag())
}

func (c *Console) cmdTemp(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: temp <celsius>")
		return
	}
	t, err := strconv.ParseInt(args[0], 10, 32)
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Invalid temperature: %v\n", err)
		return
	}
	c.sim.SetTemperature(int32(t))
	fmt.Fprintf(c.rl.Stdout(), "temperature set to %d C\n", t)
}

func (c *Console) cmdLED(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: led on|off")
		return
	}
	switch strings.ToLower(args[0]) {
	case "on":
		c.sim.SetLED(true)
	case "off":
		c.sim.SetLED(false)
	default:
		fmt.Fprintln(c.rl.Stdout(), "Usage: led on|off")
		return
	}
	fmt.Fprintf(c.rl.Stdout(), "led %s\n", strings.ToLower(args[0]))
}

func (c *Console) cmdTag(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: tag <text>")
		return
	}
	c.sim.SetTag([]byte(strings.Join(args, " ")))
	fmt.Fprintf(c.rl.Stdout(), "tag set to %q\n", c.sim.Tag())
}

func (c *Console) cmdCreds() {
	creds := c.sess.Credentials()
	fmt.Fprintf(c.rl.Stdout(), "device id: %d\n", creds.DeviceID)
	fmt.Fprintf(c.rl.Stdout(), "uuid:      %s\n", creds.UUID)
	if creds.Token != "" {
		fmt.Fprintln(c.rl.Stdout(), "token:     (set)")
	} else {
		fmt.Fprintln(c.rl.Stdout(), "token:     (none)")
	}
}
