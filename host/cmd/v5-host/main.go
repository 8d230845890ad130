package main

import (
	"bufio"
	"context"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"v5link/host/brain"
	"v5link/host/config"
	"v5link/host/logging"
	"v5link/host/serial"
	"v5link/protocol"
)

var (
	configPath = flag.String("config", "", "Config file (default $V5LINK_CONFIG or ./v5link.yaml)")
	device     = flag.String("device", "", "Serial device path, overrides serial.device")
	verbose    = flag.Bool("verbose", false, "Enable debug logging")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *device != "" {
		cfg.Serial.Device = *device
	}
	if *verbose {
		cfg.Logging.Level = "debug"
	}

	logger, err := logging.InitLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	opts, err := brain.OptionsFromConfig(cfg)
	if err != nil {
		exitOnConfigError(logger, err)
		return
	}
	opts.Logger = logger

	if cfg.Metrics.Addr != "" {
		reg := brain.NewRegistry()
		opts.Metrics = brain.NewMetrics(reg)
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, brain.Handler(reg))
		srv := &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server stopped", zap.Error(err))
			}
		}()
		defer srv.Close()
		logger.Info("metrics listening", zap.String("addr", cfg.Metrics.Addr), zap.String("path", cfg.Metrics.Path))
	}

	fmt.Println("v5-host - VEX V5 CDC2 host")
	fmt.Println("==========================")
	fmt.Println()

	fmt.Printf("Connecting to brain on %s...\n", cfg.Serial.Device)
	b, err := brain.Open(&serial.Config{
		Device:      cfg.Serial.Device,
		Baud:        cfg.Serial.Baud,
		ReadTimeout: cfg.Serial.ReadTimeout,
	}, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer b.Close()

	fmt.Println("Connected successfully!")
	if err := printVersion(b, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	// Interactive command loop
	fmt.Println("Enter commands (type 'help' for available commands, 'quit' to exit):")
	if err := repl(b, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
		os.Exit(1)
	}
}

// exitOnConfigError logs err, flushes the logger and exits
func exitOnConfigError(logger *zap.Logger, err error) {
	logger.Error("invalid configuration", zap.Error(err))
	_ = logger.Sync()
	osExit(1)
}

// osExit is replaced in tests
var osExit = os.Exit

func repl(b *brain.Brain, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parts := strings.Fields(line)
		var err error

		switch parts[0] {
		case "quit", "exit", "q":
			fmt.Fprintln(out, "Goodbye!")
			return nil

		case "help", "?":
			printHelp(out)

		case "commands":
			printCommands(out)

		case "version":
			err = printVersion(b, out)

		case "query":
			err = printQuery(b, out)

		case "vision":
			err = printVision(b, out)

		case "info":
			err = printFileInfo(b, out, parts[1:])

		case "raw":
			err = sendRaw(b, out, parts[1:])

		default:
			fmt.Fprintf(out, "Unknown command: %s (type 'help' for available commands)\n", parts[0])
		}

		if err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
		}
	}
	return scanner.Err()
}

func printHelp(out io.Writer) {
	fmt.Fprintln(out, "\nAvailable commands:")
	fmt.Fprintln(out, "  help                 - Show this help message")
	fmt.Fprintln(out, "  commands             - List known CDC2 commands")
	fmt.Fprintln(out, "  version              - Read the brain firmware version")
	fmt.Fprintln(out, "  query                - Send QUERY1")
	fmt.Fprintln(out, "  vision               - List objects seen by the vision sensor")
	fmt.Fprintln(out, "  info <name> [vid]    - Show file metadata")
	fmt.Fprintln(out, "  raw <COMMAND> [hex]  - Send any command with a hex payload")
	fmt.Fprintln(out, "  quit/exit/q          - Exit the program")
	fmt.Fprintln(out)
}

func printCommands(out io.Writer) {
	for _, f := range []protocol.Family{protocol.FamilyBasic, protocol.FamilyFile, protocol.FamilyController, protocol.FamilyFactory} {
		fmt.Fprintf(out, "%s:\n", f)
		for _, c := range protocol.RegistryFor(f).Commands() {
			fmt.Fprintf(out, "  0x%02X %-20s reply %s\n", c.Opcode, c.Name, c.Reply)
		}
	}
}

func requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}

func printVersion(b *brain.Brain, out io.Writer) error {
	ctx, cancel := requestContext()
	defer cancel()
	v, err := b.SystemVersion(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Brain firmware %s (product 0x%02X, flags 0x%02X)\n", v, v.Product, v.ProductFlags)
	return nil
}

func printQuery(b *brain.Brain, out io.Writer) error {
	ctx, cancel := requestContext()
	defer cancel()
	q, err := b.Query(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "joystick 0x%08X brain 0x%08X boot %d iteration %d\n", q.Joystick, q.Brain, q.BootSource, q.Iteration)
	return nil
}

func printVision(b *brain.Brain, out io.Writer) error {
	ctx, cancel := requestContext()
	defer cancel()
	objects, err := b.VisionObjects(ctx)
	if err != nil {
		return err
	}
	if len(objects) == 0 {
		fmt.Fprintln(out, "No objects")
		return nil
	}
	for _, o := range objects {
		fmt.Fprintf(out, "  %-16s %-8s origin (%d,%d) size %dx%d centre (%.1f,%.1f)",
			o.Name, o.Type, o.OriginX, o.OriginY, o.Width, o.Height, o.CenterX, o.CenterY)
		if o.Tag != nil {
			fmt.Fprintf(out, " angle %.1f\n", o.Tag.Angle)
		} else {
			fmt.Fprintf(out, " score %d\n", o.Score)
		}
	}
	return nil
}

func printFileInfo(b *brain.Brain, out io.Writer, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: info <name> [vid]")
	}
	vid := uint64(1)
	if len(args) > 1 {
		var err error
		if vid, err = strconv.ParseUint(args[1], 0, 8); err != nil {
			return fmt.Errorf("bad vid %q: %w", args[1], err)
		}
	}

	ctx, cancel := requestContext()
	defer cancel()
	fi, err := b.FileInfo(ctx, uint8(vid), args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s: %d bytes at 0x%08X, type %s, crc 0x%08X, modified %s\n",
		fi.Name, fi.Size, fi.LoadAddr, fi.Type, fi.CRC32, fi.Modified.Format(time.RFC3339))
	return nil
}

func sendRaw(b *brain.Brain, out io.Writer, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: raw <COMMAND> [hex payload]")
	}
	var payload []byte
	if len(args) > 1 {
		var err error
		if payload, err = hex.DecodeString(strings.Join(args[1:], "")); err != nil {
			return fmt.Errorf("bad payload: %w", err)
		}
	}

	ctx, cancel := requestContext()
	defer cancel()
	reply, err := b.Exchange(ctx, strings.ToUpper(args[0]), payload)
	if err != nil {
		return err
	}
	if reply.Kind == protocol.KindAck {
		fmt.Fprintf(out, "%s: %s (%s)\n", reply.Command.Name, reply.Status, reply.Status.Description())
		return nil
	}
	fmt.Fprintf(out, "%s: %d bytes\n%s", reply.Command.Name, len(reply.Payload), hex.Dump(reply.Payload))
	return nil
}
