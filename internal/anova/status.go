package anova

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Units denotes the temperature unit setting of the cooker. Note the A2/A3
// reports temperatures in Celsius regardless of this setting.
type Units string

const (
	UnitsCelsius    Units = "C"
	UnitsFahrenheit Units = "F"
)

// Limits accepted by the cooker firmware.
const (
	MinTargetCelsius = 0.0
	MaxTargetCelsius = 100.0
	MinTimerMinutes  = 0
	MaxTimerMinutes  = 999
)

// DeviceStatus is an immutable snapshot of the cooker state, produced by
// parsing one status reply. Each successful poll supersedes it wholesale.
type DeviceStatus struct {
	WaterTemperature  float64 // °C
	TargetTemperature float64 // °C
	TimerMinutes      int
	Running           bool
	Units             Units
	CapturedAt        time.Time
}

// String fulfils the Stringer interface.
func (s DeviceStatus) String() string {
	state := "stopped"
	if s.Running {
		state = "running"
	}
	return fmt.Sprintf("water %.1f°C, target %.1f°C, timer %dm, %s, units %s",
		s.WaterTemperature, s.TargetTemperature, s.TimerMinutes, state, s.Units)
}

// ParseStatus parses one status line from the cooker. The reply is a single
// line of whitespace-separated key=value tokens ("key: value" with a colon
// is accepted too, as older firmware emits it). Keys are matched
// case-insensitively and unknown tokens are ignored. All five fields must
// be present; a missing or unparseable field is a protocol error so no
// partially populated status can escape.
func ParseStatus(line string) (DeviceStatus, error) {
	fields, err := tokenize(line)
	if err != nil {
		return DeviceStatus{}, err
	}

	var status DeviceStatus

	v, ok := fields["temp"]
	if !ok {
		return DeviceStatus{}, fmt.Errorf("%w: missing \"temp\" in %q", ErrProtocol, line)
	}
	status.WaterTemperature, err = strconv.ParseFloat(v, 64)
	if err != nil {
		return DeviceStatus{}, fmt.Errorf("%w: temp %q is not a number", ErrProtocol, v)
	}

	v, ok = fields["target"]
	if !ok {
		return DeviceStatus{}, fmt.Errorf("%w: missing \"target\" in %q", ErrProtocol, line)
	}
	status.TargetTemperature, err = strconv.ParseFloat(v, 64)
	if err != nil {
		return DeviceStatus{}, fmt.Errorf("%w: target %q is not a number", ErrProtocol, v)
	}

	v, ok = fields["timer"]
	if !ok {
		return DeviceStatus{}, fmt.Errorf("%w: missing \"timer\" in %q", ErrProtocol, line)
	}
	status.TimerMinutes, err = strconv.Atoi(v)
	if err != nil {
		return DeviceStatus{}, fmt.Errorf("%w: timer %q is not an integer", ErrProtocol, v)
	}
	if status.TimerMinutes < MinTimerMinutes || status.TimerMinutes > MaxTimerMinutes {
		return DeviceStatus{}, fmt.Errorf("%w: timer %d outside [%d,%d]",
			ErrProtocol, status.TimerMinutes, MinTimerMinutes, MaxTimerMinutes)
	}

	v, ok = fields["running"]
	if !ok {
		return DeviceStatus{}, fmt.Errorf("%w: missing \"running\" in %q", ErrProtocol, line)
	}
	switch v {
	case "1":
		status.Running = true
	case "0":
		status.Running = false
	default:
		return DeviceStatus{}, fmt.Errorf("%w: running %q is not 0 or 1", ErrProtocol, v)
	}

	v, ok = fields["units"]
	if !ok {
		return DeviceStatus{}, fmt.Errorf("%w: missing \"units\" in %q", ErrProtocol, line)
	}
	switch strings.ToUpper(v) {
	case "C":
		status.Units = UnitsCelsius
	case "F":
		status.Units = UnitsFahrenheit
	default:
		return DeviceStatus{}, fmt.Errorf("%w: units %q is not C or F", ErrProtocol, v)
	}

	return status, nil
}

// tokenize splits a status line into key/value pairs. Both "key=value" and
// "key: value" forms are accepted; keys are lowercased.
func tokenize(line string) (map[string]string, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, fmt.Errorf("%w: empty reply", ErrProtocol)
	}

	fields := make(map[string]string)
	tokens := strings.Fields(line)
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		if key, value, found := strings.Cut(tok, "="); found {
			fields[strings.ToLower(key)] = value
			continue
		}
		if key, value, found := strings.Cut(tok, ":"); found {
			if value != "" {
				fields[strings.ToLower(key)] = value
			} else if i+1 < len(tokens) {
				fields[strings.ToLower(key)] = tokens[i+1]
				i++
			}
			continue
		}
		// Bare token without a value: ignored for forward compatibility.
	}
	return fields, nil
}
