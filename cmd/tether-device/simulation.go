package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/tether-iot/tether-go/pkg/proxy"
	"github.com/tether-iot/tether-go/pkg/schema"
)

// driftInterval is how often the simulated temperature wanders.
const driftInterval = 5 * time.Second

// Channel identifiers of the simulated device.
const (
	chanThermo uint8 = 0
	chanLED    uint8 = 1
	chanTag    uint8 = 2
)

// Simulation holds the local state behind the simulated channels: a
// thermometer, an LED the gateway can switch, and a free-form tag.
type Simulation struct {
	mu sync.Mutex

	temperature int32
	led         bool
	tag         []byte
}

// NewSimulation creates the simulation with room-temperature defaults.
func NewSimulation() *Simulation {
	return &Simulation{
		temperature: 21,
		tag:         []byte("tether"),
	}
}

// RegisterChannels registers the simulated channels and their event
// configuration with the registry.
func (s *Simulation) RegisterChannels(reg *proxy.Registry, thermo ThermoConfig) error {
	if _, err := reg.Register(chanThermo, "thermometer", schema.TypeTemperature,
		schema.KindInt32, schema.UnitCelsius, nil, s.pollThermo); err != nil {
		return fmt.Errorf("registering thermometer: %w", err)
	}
	thermoEvents := schema.OnChange | schema.OnTimer |
		schema.OnUpperThreshold | schema.OnLowerThreshold
	if err := reg.Configure(chanThermo, proxy.Config{
		Events:      thermoEvents,
		TimerPeriod: thermo.Period,
		UpperLimit:  proxy.Int32Value(thermo.UpperLimit),
		LowerLimit:  proxy.Int32Value(thermo.LowerLimit),
	}); err != nil {
		return fmt.Errorf("configuring thermometer: %w", err)
	}

	if _, err := reg.Register(chanLED, "led", schema.TypeSwitch,
		schema.KindBool, schema.UnitNone, s.ledDelivered, s.pollLED); err != nil {
		return fmt.Errorf("registering led: %w", err)
	}
	if err := reg.Configure(chanLED, proxy.Config{Events: schema.OnChange}); err != nil {
		return fmt.Errorf("configuring led: %w", err)
	}

	if _, err := reg.Register(chanTag, "tag", schema.TypeGeneric,
		schema.KindRaw, schema.UnitNone, nil, s.pollTag); err != nil {
		return fmt.Errorf("registering tag: %w", err)
	}
	if err := reg.Configure(chanTag, proxy.Config{Events: schema.OnChange}); err != nil {
		return fmt.Errorf("configuring tag: %w", err)
	}

	return nil
}

// Drift lets the simulated temperature wander one degree at a time
// until ctx is cancelled, staying within a plausible indoor range.
func (s *Simulation) Drift(ctx context.Context) {
	ticker := time.NewTicker(driftInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			s.temperature += int32(rand.IntN(3) - 1)
			if s.temperature < 10 {
				s.temperature = 10
			}
			if s.temperature > 35 {
				s.temperature = 35
			}
			s.mu.Unlock()
		}
	}
}

func (s *Simulation) pollThermo(c *proxy.Channel) {
	s.mu.Lock()
	t := s.temperature
	s.mu.Unlock()
	c.Set(proxy.Int32Value(t))
}

func (s *Simulation) pollLED(c *proxy.Channel) {
	s.mu.Lock()
	on := s.led
	s.mu.Unlock()
	c.Set(proxy.BoolValue(on))
}

func (s *Simulation) pollTag(c *proxy.Channel) {
	s.mu.Lock()
	tag := append([]byte(nil), s.tag...)
	s.mu.Unlock()
	c.Set(proxy.RawValue(tag))
}

// ledDelivered applies a gateway-written LED state.
func (s *Simulation) ledDelivered(c *proxy.Channel) {
	v, _ := c.Value()
	s.mu.Lock()
	s.led = v.Bool()
	s.mu.Unlock()
}

// Temperature returns the simulated reading.
func (s *Simulation) Temperature() int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.temperature
}

// SetTemperature sets the simulated reading.
func (s *Simulation) SetTemperature(t int32) {
	s.mu.Lock()
	s.temperature = t
	s.mu.Unlock()
}

// LED returns the LED state.
func (s *Simulation) LED() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.led
}

// SetLED sets the LED state locally.
func (s *Simulation) SetLED(on bool) {
	s.mu.Lock()
	s.led = on
	s.mu.Unlock()
}

// Tag returns the tag payload.
func (s *Simulation) Tag() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.tag...)
}

// SetTag sets the tag payload. Values longer than the raw value limit
// are truncated by the channel on the next report.
func (s *Simulation) SetTag(tag []byte) {
	s.mu.Lock()
	s.tag = append([]byte(nil), tag...)
	s.mu.Unlock()
}
