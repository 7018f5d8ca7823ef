package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/tturner/udsinfo/internal/config"
	"github.com/tturner/udsinfo/internal/ecusim"
	"github.com/tturner/udsinfo/internal/errors"
	"github.com/tturner/udsinfo/internal/vehicleinfo"
)

type ServeOptions struct {
	ConfigPath      string
	ConfigExplicit  bool
	Listen          string
	LogicalAddress  string
	ResponsePending *int
	Log             LogOptions
	Stdout          io.Writer
	Stderr          io.Writer

	// ready is called with the bound address once the simulator listens.
	ready func(addr string)
}

// RunServe runs the DoIP ECU simulator until ctx is done or the process
// receives SIGINT/SIGTERM.
func RunServe(ctx context.Context, opts ServeOptions) error {
	stdout, stderr := opts.Stdout, opts.Stderr
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}

	cfg, err := config.LoadConfig(opts.ConfigPath, opts.ConfigExplicit)
	if err != nil {
		return err
	}
	if opts.Listen != "" {
		cfg.Simulator.Listen = opts.Listen
	}
	if opts.LogicalAddress != "" {
		la, err := vehicleinfo.ParseLogicalAddress(opts.LogicalAddress)
		if err != nil {
			return err
		}
		cfg.Simulator.LogicalAddress = la
	}
	if opts.ResponsePending != nil {
		cfg.Simulator.ResponsePending = *opts.ResponsePending
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return errors.WrapConfigError(err, opts.ConfigPath)
	}

	simConfig, err := ecusim.FromConfig(cfg.Simulator)
	if err != nil {
		return fmt.Errorf("simulator config: %w", err)
	}

	logger, err := newLogger(opts.Log, stderr)
	if err != nil {
		return err
	}
	defer logger.Close()

	srv := ecusim.NewServer(simConfig, logger)
	if err := srv.Start(); err != nil {
		return fmt.Errorf("start simulator: %w", err)
	}
	fmt.Fprintf(stdout, "DoIP ECU simulator listening on %s (LA 0x%04X)\n", srv.Addr(), simConfig.LogicalAddress)
	if opts.ready != nil {
		opts.ready(srv.Addr().String())
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	fmt.Fprintf(stdout, "\nShutting down simulator...\n")
	if err := srv.Stop(); err != nil {
		return fmt.Errorf("stop simulator: %w", err)
	}
	fmt.Fprintf(stdout, "Requests answered: %d\n", srv.Requests())
	return nil
}
