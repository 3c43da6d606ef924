package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"anovactl/internal/anova"
	"anovactl/internal/ble"
	"anovactl/internal/config"
	"anovactl/internal/poll"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default: ~/.config/anovactl/config.yaml)")
	address := flag.String("address", "", "device address (overrides config)")
	flag.Usage = usage
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if *address != "" {
		cfg.Device.Address = *address
	}

	setupLogging(cfg.LogLevel)

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}
	command := args[0]

	// Scanning needs no configured device.
	if command == "scan" {
		runScan()
		return
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("config validation: %v", err)
	}

	adapter := ble.NewHardwareAdapter()
	session := anova.NewSession(adapter, cfg.Device.Address, anova.SessionOptions{
		ConnectTimeout: cfg.Timeouts.Connect.Std(),
		CommandTimeout: cfg.Timeouts.Command.Std(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch command {
	case "watch":
		runWatch(ctx, cfg, session)
		return
	case "status", "set-temp", "set-timer", "start", "stop", "set-units":
		// One-shot commands below share connect/disconnect.
	default:
		log.Printf("unknown command %q", command)
		usage()
		os.Exit(2)
	}

	if err := session.Connect(ctx); err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer session.Close()

	if err := runCommand(ctx, session, command, args[1:]); err != nil {
		log.Fatalf("%s: %v", command, err)
	}
}

func runCommand(ctx context.Context, session *anova.Session, command string, args []string) error {
	switch command {
	case "status":
		status, err := session.QueryStatus(ctx)
		if err != nil {
			return err
		}
		fmt.Println(status)
		return nil

	case "set-temp":
		if len(args) != 1 {
			return fmt.Errorf("usage: anovactl set-temp <celsius>")
		}
		celsius, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("temperature %q is not a number", args[0])
		}
		if err := session.SetTargetTemperature(ctx, celsius); err != nil {
			return err
		}
		return printStatus(session)

	case "set-timer":
		if len(args) != 1 {
			return fmt.Errorf("usage: anovactl set-timer <minutes>")
		}
		minutes, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("minutes %q is not an integer", args[0])
		}
		if err := session.SetTimer(ctx, minutes); err != nil {
			return err
		}
		return printStatus(session)

	case "start":
		if err := session.Start(ctx); err != nil {
			return err
		}
		return printStatus(session)

	case "stop":
		if err := session.Stop(ctx); err != nil {
			return err
		}
		return printStatus(session)

	case "set-units":
		if len(args) != 1 || (args[0] != "C" && args[0] != "F") {
			return fmt.Errorf("usage: anovactl set-units C|F")
		}
		return session.SetUnits(ctx, anova.Units(args[0]))
	}
	return fmt.Errorf("unknown command %q", command)
}

// runWatch polls the cooker until interrupted, printing each snapshot.
func runWatch(ctx context.Context, cfg *config.Config, session *anova.Session) {
	if err := session.Connect(ctx); err != nil {
		// The poller reconnects with backoff, so a failed first connect is
		// not fatal here.
		log.Printf("initial connect failed, will retry: %v", err)
	}

	poller := poll.New(session, poll.Options{
		Interval:     cfg.Poll.Interval.Std(),
		ReconnectMax: cfg.Poll.ReconnectMax.Std(),
	})
	updates := poller.Subscribe()
	poller.Start()
	defer poller.Stop()

	log.Printf("watching %s (%s), poll every %s, Ctrl+C to quit",
		cfg.Device.Name, session.Address(), cfg.Poll.Interval.Std())

	for {
		select {
		case status := <-updates:
			fmt.Printf("%s  %s\n", status.CapturedAt.Format(time.TimeOnly), status)
		case <-ctx.Done():
			log.Println("shutting down")
			return
		}
	}
}

func runScan() {
	adapter := ble.NewHardwareAdapter()
	log.Println("scanning for Anova cookers (15s)...")
	devices, err := ble.Discover(adapter, 15*time.Second)
	if err != nil {
		log.Fatalf("scan: %v", err)
	}
	if len(devices) == 0 {
		log.Println("no cookers found")
		return
	}
	for _, d := range devices {
		name := d.Name
		if name == "" {
			name = "(unnamed)"
		}
		fmt.Printf("%s  %s  RSSI %d\n", d.Address, name, d.RSSI)
	}
}

func printStatus(session *anova.Session) error {
	if status, ok := session.Status(); ok {
		fmt.Println(status)
	}
	return nil
}

// loadConfig loads the config from the specified path, or falls back to
// the default config path, or uses built-in defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}

	defaultPath := config.DefaultConfigPath()
	if _, err := os.Stat(defaultPath); err == nil {
		cfg, err := config.Load(defaultPath)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", defaultPath, err)
		}
		log.Printf("Config loaded from %s", defaultPath)
		return cfg, nil
	}

	// No config file, use defaults (address must come from -address).
	return config.Default(), nil
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: anovactl [flags] <command> [args]

Commands:
  scan                 discover Anova cookers nearby
  status               print the current cooker status
  watch                poll the cooker and print every update
  set-temp <celsius>   set the target temperature (0-100)
  set-timer <minutes>  set the cook timer (0-999)
  start                start cooking
  stop                 stop cooking
  set-units C|F        switch the cooker's display units

Flags:
`)
	flag.PrintDefaults()
}
