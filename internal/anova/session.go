// Package anova implements the text command protocol of the Anova A2/A3
// sous-vide cooker: a Session owns one BLE connection, serializes commands
// to the single GATT characteristic, and parses status replies.
package anova

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strings"
	"sync"
	"time"

	"anovactl/internal/ble"
)

// SessionOptions configures session timeouts.
type SessionOptions struct {
	ConnectTimeout time.Duration // bound on establishing the BLE link
	CommandTimeout time.Duration // bound on a single command round-trip
}

// DefaultSessionOptions returns sensible defaults.
func DefaultSessionOptions() SessionOptions {
	return SessionOptions{
		ConnectTimeout: 10 * time.Second,
		CommandTimeout: 5 * time.Second,
	}
}

// Session owns one BLE connection to a single cooker. The characteristic is
// strictly half-duplex request/response, so the session allows exactly one
// in-flight command: a second caller blocks until the prior command
// completes or fails.
type Session struct {
	adapter ble.Adapter
	address string
	opts    SessionOptions

	// mu serializes commands and guards the fields below.
	mu        sync.Mutex
	conn      ble.Connection
	char      ble.Characteristic
	connected bool
	desynced  bool
	notifyCh  chan string
	status    *DeviceStatus // last successful snapshot
}

// NewSession creates a session for the cooker at the given address. The
// address is normalized to the uppercase colon-separated form.
func NewSession(adapter ble.Adapter, address string, opts SessionOptions) *Session {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 10 * time.Second
	}
	if opts.CommandTimeout <= 0 {
		opts.CommandTimeout = 5 * time.Second
	}
	return &Session{
		adapter: adapter,
		address: NormalizeAddress(address),
		opts:    opts,
	}
}

// macAddressRe matches a 6-octet hardware address with colon or dash
// separators.
var macAddressRe = regexp.MustCompile(`^[0-9a-fA-F]{2}([:-][0-9a-fA-F]{2}){5}$`)

// NormalizeAddress converts a MAC address to its uppercase colon-separated
// form. Anything that is not MAC-shaped — a CoreBluetooth UUID on macOS —
// is returned unchanged.
func NormalizeAddress(address string) string {
	if !macAddressRe.MatchString(address) {
		return address
	}
	return strings.ToUpper(strings.ReplaceAll(address, "-", ":"))
}

// Address returns the normalized device address.
func (s *Session) Address() string {
	return s.address
}

// Connect establishes the BLE link, discovers the command characteristic
// and subscribes to its notifications. It fails if the session is already
// connected or the device is unreachable.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connected {
		return fmt.Errorf("%w: already connected to %s", ErrConnection, s.address)
	}

	if err := s.adapter.Enable(); err != nil {
		return fmt.Errorf("%w: enable adapter: %w", ErrConnection, err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.ConnectTimeout)
	defer cancel()

	conn, err := s.adapter.Connect(ctx, s.address)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConnection, err)
	}

	char, err := conn.DiscoverCharacteristic(ble.ServiceUUID, ble.CharacteristicUUID)
	if err != nil {
		conn.Disconnect()
		return fmt.Errorf("%w: %w", ErrConnection, err)
	}

	// Buffer one reply. Stale notifications are drained before each write,
	// so a synchronous callback never blocks the BLE stack.
	notifyCh := make(chan string, 1)
	if err := char.Subscribe(func(data []byte) {
		line := strings.TrimSpace(string(data))
		if line == "" {
			return
		}
		slog.Debug("[anova] notification", "line", line)
		select {
		case notifyCh <- line:
		default:
		}
	}); err != nil {
		conn.Disconnect()
		return fmt.Errorf("%w: subscribe: %w", ErrConnection, err)
	}

	conn.OnDisconnect(func() {
		slog.Warn("[anova] link lost", "address", s.address)
		s.markDisconnected()
	})

	s.conn = conn
	s.char = char
	s.notifyCh = notifyCh
	s.connected = true
	s.desynced = false
	slog.Info("[anova] connected", "address", s.address)
	return nil
}

// markDisconnected clears the connection state. Invoked from the adapter's
// disconnect callback, so it must take the lock itself.
func (s *Session) markDisconnected() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	s.conn = nil
	s.char = nil
}

// Close disconnects from the cooker. Safe to call when not connected.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		s.conn.Disconnect()
	}
	s.connected = false
	s.conn = nil
	s.char = nil
	return nil
}

// QueryStatus sends the status command, parses the reply and caches the
// resulting snapshot.
func (s *Session) QueryStatus(ctx context.Context) (DeviceStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.refreshLocked(ctx); err != nil {
		return DeviceStatus{}, err
	}
	return *s.status, nil
}

// Status returns the last cached snapshot without touching the device.
func (s *Session) Status() (DeviceStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == nil {
		return DeviceStatus{}, false
	}
	return *s.status, true
}

// SetTargetTemperature sets the target temperature in Celsius. Values
// outside [0,100] are rejected without issuing a BLE write.
func (s *Session) SetTargetTemperature(ctx context.Context, celsius float64) error {
	if math.IsNaN(celsius) || math.IsInf(celsius, 0) ||
		celsius < MinTargetCelsius || celsius > MaxTargetCelsius {
		return fmt.Errorf("%w: target %.1f°C outside [%.0f,%.0f]",
			ErrValidation, celsius, MinTargetCelsius, MaxTargetCelsius)
	}
	return s.command(ctx, fmt.Sprintf("%s%.1f", cmdSetTemp, celsius))
}

// SetTimer sets the cook timer in minutes. Values outside [0,999] are
// rejected without issuing a BLE write.
func (s *Session) SetTimer(ctx context.Context, minutes int) error {
	if minutes < MinTimerMinutes || minutes > MaxTimerMinutes {
		return fmt.Errorf("%w: timer %d outside [%d,%d]",
			ErrValidation, minutes, MinTimerMinutes, MaxTimerMinutes)
	}
	return s.command(ctx, fmt.Sprintf("%s%d", cmdSetTimer, minutes))
}

// Start starts the cooker. Idempotent: when the cached status already shows
// it running, no command is sent.
func (s *Session) Start(ctx context.Context) error {
	return s.setRunning(ctx, true)
}

// Stop stops the cooker. Idempotent like Start.
func (s *Session) Stop(ctx context.Context) error {
	return s.setRunning(ctx, false)
}

func (s *Session) setRunning(ctx context.Context, running bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != nil && s.status.Running == running {
		slog.Debug("[anova] run state unchanged, command skipped", "running", running)
		return nil
	}

	cmd := cmdStop
	if running {
		cmd = cmdStart
	}
	if _, err := s.roundTripLocked(ctx, cmd); err != nil {
		return err
	}
	return s.refreshLocked(ctx)
}

// SetUnits switches the unit setting of the cooker. The device keeps
// reporting temperatures in Celsius either way; this only affects the
// cooker's own display.
func (s *Session) SetUnits(ctx context.Context, units Units) error {
	var cmd string
	switch units {
	case UnitsCelsius:
		cmd = cmdUnitsC
	case UnitsFahrenheit:
		cmd = cmdUnitsF
	default:
		return fmt.Errorf("%w: units %q is not C or F", ErrValidation, string(units))
	}
	return s.command(ctx, cmd)
}

// command sends a mutating command and refreshes the cached status, both
// under one hold of the command lock. The refresh is the only confirmation
// the device offers.
func (s *Session) command(ctx context.Context, cmd string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.roundTripLocked(ctx, cmd); err != nil {
		return err
	}
	return s.refreshLocked(ctx)
}

// refreshLocked queries the status and replaces the cached snapshot.
// Caller must hold mu.
func (s *Session) refreshLocked(ctx context.Context) error {
	line, err := s.roundTripLocked(ctx, cmdStatus)
	if err != nil {
		return err
	}
	status, err := ParseStatus(line)
	if err != nil {
		return err
	}
	status.CapturedAt = time.Now()
	s.status = &status
	return nil
}

// roundTripLocked writes one newline-terminated command and waits for the
// reply notification, falling back to a direct characteristic read when no
// notification arrives. On timeout or cancellation the link has no framing
// to resynchronize mid-stream, so the session is marked desynchronized and
// must be reconnected before further use. Caller must hold mu.
func (s *Session) roundTripLocked(ctx context.Context, command string) (string, error) {
	if !s.connected {
		return "", fmt.Errorf("%w: not connected to %s", ErrConnection, s.address)
	}
	if s.desynced {
		return "", fmt.Errorf("%w: link desynchronized, reconnect required", ErrConnection)
	}

	// Drop any stale reply left over from an earlier command.
	select {
	case <-s.notifyCh:
	default:
	}

	slog.Debug("[anova] sending command", "command", command)
	if err := s.char.Write([]byte(command + "\n")); err != nil {
		return "", fmt.Errorf("%w: write %q: %w", ErrConnection, command, err)
	}

	timer := time.NewTimer(s.opts.CommandTimeout)
	defer timer.Stop()

	select {
	case line := <-s.notifyCh:
		return line, nil
	case <-ctx.Done():
		s.desynced = true
		return "", fmt.Errorf("%w: %q abandoned: %w", ErrTimeout, command, ctx.Err())
	case <-timer.C:
	}

	// Some firmware revisions skip the notification; try one direct read
	// before declaring the command lost.
	if data, err := s.char.Read(); err == nil {
		if line := strings.TrimSpace(string(data)); line != "" {
			return line, nil
		}
	}

	s.desynced = true
	return "", fmt.Errorf("%w: no reply to %q within %s", ErrTimeout, command, s.opts.CommandTimeout)
}
