package app

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/tturner/udsinfo/internal/capture"
	"github.com/tturner/udsinfo/internal/config"
	"github.com/tturner/udsinfo/internal/doip"
	"github.com/tturner/udsinfo/internal/errors"
	"github.com/tturner/udsinfo/internal/history"
	"github.com/tturner/udsinfo/internal/logging"
	"github.com/tturner/udsinfo/internal/metrics"
	"github.com/tturner/udsinfo/internal/progress"
	"github.com/tturner/udsinfo/internal/publish"
	"github.com/tturner/udsinfo/internal/report"
	"github.com/tturner/udsinfo/internal/uds"
	"github.com/tturner/udsinfo/internal/ui"
	"github.com/tturner/udsinfo/internal/vehicleinfo"
)

// LogOptions selects console verbosity and an optional log file.
type LogOptions struct {
	Verbose bool
	Debug   bool
	Quiet   bool
	LogFile string
}

// ReadOptions holds the read command inputs. Zero values and nil pointers
// leave the configuration file value in place.
type ReadOptions struct {
	ConfigPath     string
	ConfigExplicit bool
	IP             string
	LogicalAddress string

	Port        int
	MaxAttempts int
	RetryDelay  *time.Duration
	P2Timeout   time.Duration

	Format      string
	MetricsFile string
	PcapFile    string
	HistoryDB   string
	MQTTBroker  string
	MQTTTopic   string
	Copy        bool
	Progress    bool

	Log LogOptions

	Stdout io.Writer
	Stderr io.Writer
}

// RunRead reads the identification table from one ECU and writes the
// record. Connection and client-open failures are fatal and produce no
// record; every other failure is reported inside the record.
func RunRead(ctx context.Context, opts ReadOptions) error {
	stdout, stderr := opts.Stdout, opts.Stderr
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}

	target, err := parseTarget(opts.IP, opts.LogicalAddress)
	if err != nil {
		return err
	}
	cfg, err := config.LoadConfig(opts.ConfigPath, opts.ConfigExplicit)
	if err != nil {
		return err
	}
	applyReadOverrides(cfg, opts)
	if err := config.ValidateConfig(cfg); err != nil {
		return errors.WrapConfigError(err, opts.ConfigPath)
	}

	logger, err := newLogger(opts.Log, stderr)
	if err != nil {
		return err
	}
	defer logger.Close()

	table := vehicleinfo.IdentificationTable()
	var observers []vehicleinfo.Observer
	var bar *progress.ReadProgress
	if opts.Progress {
		bar = progress.NewReadProgress(stderr, table)
		observers = append(observers, bar)
	}

	record, err := readRecord(ctx, cfg, target, table, logger, observers...)
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		return err
	}

	if err := report.Write(stdout, cfg.Output.Format, target, record); err != nil {
		return err
	}
	afterRead(cfg, target, record, logger)
	if opts.Copy {
		if err := ui.CopyRecord(record); err != nil {
			logger.Warn("%v", err)
		}
	}
	return nil
}

func parseTarget(ip, logicalAddress string) (vehicleinfo.Target, error) {
	if ip == "" {
		return vehicleinfo.Target{}, fmt.Errorf("required flag --ip not set")
	}
	if logicalAddress == "" {
		return vehicleinfo.Target{}, fmt.Errorf("required flag --la not set")
	}
	la, err := vehicleinfo.ParseLogicalAddress(logicalAddress)
	if err != nil {
		return vehicleinfo.Target{}, err
	}
	return vehicleinfo.Target{Address: ip, LogicalAddress: la}, nil
}

func applyReadOverrides(cfg *config.Config, opts ReadOptions) {
	if opts.Port != 0 {
		cfg.DoIP.TCPPort = opts.Port
	}
	if opts.MaxAttempts != 0 {
		cfg.Retry.MaxAttempts = opts.MaxAttempts
	}
	if opts.RetryDelay != nil {
		cfg.Retry.DelayMs = int(opts.RetryDelay.Milliseconds())
	}
	if opts.P2Timeout != 0 {
		cfg.UDS.P2TimeoutMs = int(opts.P2Timeout.Milliseconds())
		cfg.UDS.P2StarTimeoutMs = max(cfg.UDS.P2StarTimeoutMs, cfg.UDS.P2TimeoutMs)
		cfg.UDS.RequestTimeoutMs = max(cfg.UDS.RequestTimeoutMs, cfg.UDS.P2TimeoutMs)
	}
	if opts.Format != "" {
		cfg.Output.Format = opts.Format
	}
	if opts.MetricsFile != "" {
		cfg.Output.MetricsFile = opts.MetricsFile
	}
	if opts.PcapFile != "" {
		cfg.Output.PcapFile = opts.PcapFile
	}
	if opts.HistoryDB != "" {
		cfg.Output.HistoryDB = opts.HistoryDB
	}
	if opts.MQTTBroker != "" {
		cfg.Output.MQTT.Broker = opts.MQTTBroker
	}
	if opts.MQTTTopic != "" {
		cfg.Output.MQTT.Topic = opts.MQTTTopic
	}
}

func newLogger(opts LogOptions, console io.Writer) (*logging.Logger, error) {
	level := logging.LogLevelInfo
	switch {
	case opts.Debug:
		level = logging.LogLevelDebug
	case opts.Verbose:
		level = logging.LogLevelVerbose
	case opts.Quiet:
		level = logging.LogLevelError
	}
	logger, err := logging.NewLogger(level, opts.LogFile)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	logger.SetConsole(console)
	return logger, nil
}

// readRecord connects, runs the identification reads and releases the
// session. Capture and metrics outputs configured in cfg wrap the read and
// are removed again when the session cannot be established.
func readRecord(ctx context.Context, cfg *config.Config, target vehicleinfo.Target, table []vehicleinfo.IdentifierSpec, logger *logging.Logger, observers ...vehicleinfo.Observer) (record *vehicleinfo.Record, err error) {
	var tap doip.Tap
	if cfg.Output.PcapFile != "" {
		recorder, createErr := capture.Create(cfg.Output.PcapFile)
		if createErr != nil {
			return nil, createErr
		}
		defer func() {
			closeErr := recorder.Close()
			if err != nil {
				discardOutput(cfg.Output.PcapFile, logger)
				return
			}
			if closeErr != nil {
				logger.Warn("close capture: %v", closeErr)
				return
			}
			absPath, _ := filepath.Abs(cfg.Output.PcapFile)
			logger.Verbose("Packets captured: %d", recorder.Packets())
			logger.Verbose("PCAP written to: %s", absPath)
		}()
		tap = recorder
	}

	if cfg.Output.MetricsFile != "" {
		writer, createErr := metrics.NewWriter(cfg.Output.MetricsFile)
		if createErr != nil {
			return nil, createErr
		}
		sink := metrics.NewSink()
		defer func() {
			closeErr := writer.Close()
			if err != nil {
				discardOutput(cfg.Output.MetricsFile, logger)
				return
			}
			if closeErr != nil {
				logger.Warn("write metrics: %v", closeErr)
			}
			logger.Verbose("%s", metrics.FormatSummary(sink.GetSummary()))
		}()
		observers = append(observers, metrics.NewRecorder(sink, writer, target.Address))
	}

	opener := vehicleinfo.DoIPOpener{
		DoIP: doip.Options{
			TCPPort:         cfg.DoIP.TCPPort,
			ProtocolVersion: cfg.DoIP.ProtocolVersion,
			SourceAddress:   cfg.DoIP.SourceAddress,
			ActivationType:  cfg.DoIP.ActivationType,
			ConnectTimeout:  cfg.ConnectTimeout(),
			Tap:             tap,
			Logger:          logger,
		},
		UDS: uds.Config{
			P2Timeout:       cfg.P2Timeout(),
			P2StarTimeout:   cfg.P2StarTimeout(),
			RequestTimeout:  cfg.RequestTimeout(),
			DataIdentifiers: vehicleinfo.DataIdentifierCodecs(table),
			ProbeOnOpen:     cfg.UDS.ProbeOnOpen,
		},
	}
	policy := vehicleinfo.RetryPolicy{MaxAttempts: cfg.Retry.MaxAttempts, Delay: cfg.RetryDelay()}
	manager := vehicleinfo.NewManager(opener, policy, logger)

	logger.LogStartup(target.Address, cfg.DoIP.TCPPort, target.LogicalAddress, policy.MaxAttempts, policy.Delay)
	session, err := manager.Connect(ctx, target)
	if err != nil {
		return nil, wrapSessionError(err, target, cfg.DoIP.TCPPort)
	}

	start := time.Now()
	record = vehicleinfo.NewReader(logger, observers...).Run(ctx, session, table)
	logger.Info("Read %d identifiers in %s, %d failed", len(record.Fields()), time.Since(start).Round(time.Millisecond), record.Failures())
	return record, nil
}

// discardOutput removes a side output of a read that never started.
func discardOutput(path string, logger *logging.Logger) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logger.Warn("remove %s: %v", path, err)
	}
}

func wrapSessionError(err error, target vehicleinfo.Target, port int) error {
	var connErr *vehicleinfo.ConnectError
	if stderrors.As(err, &connErr) {
		return errors.WrapConnectError(err, target.Address, port, connErr.Attempts)
	}
	var openErr *vehicleinfo.ClientOpenError
	if stderrors.As(err, &openErr) {
		return errors.WrapClientOpenError(err, target.Address, target.LogicalAddress)
	}
	return err
}

// afterRead stores and publishes a completed record. Failures here are
// logged and never change the outcome of the read.
func afterRead(cfg *config.Config, target vehicleinfo.Target, record *vehicleinfo.Record, logger *logging.Logger) {
	if cfg.Output.HistoryDB != "" {
		if err := saveHistory(cfg.Output.HistoryDB, target, record); err != nil {
			logger.Warn("save history: %v", err)
		}
	}
	publishRecord(cfg, record, logger)
}

func saveHistory(path string, target vehicleinfo.Target, record *vehicleinfo.Record) error {
	store, err := history.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()
	return store.Save(history.NewEntry(time.Now(), target, record))
}

func publishRecord(cfg *config.Config, record *vehicleinfo.Record, logger *logging.Logger) {
	if cfg.Output.MQTT.Broker == "" {
		return
	}
	payload, err := report.MarshalEnvelope(record)
	if err != nil {
		logger.Warn("publish: %v", err)
		return
	}
	publisher := publish.NewPublisher(publish.Config{
		Broker:   cfg.Output.MQTT.Broker,
		ClientID: cfg.Output.MQTT.ClientID,
		Topic:    cfg.Output.MQTT.Topic,
	}, logger)
	if err := publisher.Publish(payload); err != nil {
		logger.Warn("publish: %v", err)
	}
}
