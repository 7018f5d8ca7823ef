package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tturner/udsinfo/internal/app"
)

type readFlags struct {
	ip          string
	la          string
	port        int
	attempts    int
	delay       time.Duration
	p2          time.Duration
	format      string
	metricsFile string
	pcapFile    string
	historyDB   string
	mqttBroker  string
	mqttTopic   string
	copy        bool
	progress    bool
}

func newReadCmd(g *globalFlags) *cobra.Command {
	flags := &readFlags{}

	cmd := &cobra.Command{
		Use:   "read",
		Short: "Read ECU identification and print it as JSON",
		Long: `Connect to the DoIP entity at --ip, address the ECU at logical address
--la and read its identification data identifiers. The record is printed to
stdout; logs go to stderr.

Connection attempts are retried with a fixed delay (5 attempts, 10s apart by
default). If no connection can be made, or the UDS client cannot be opened,
the command exits with status 1 and prints no record. Failed reads of single
identifiers are reported inside the record and do not change the exit status.`,
		Example: `  # Read the ECU at logical address 0x545
  udsinfo read --ip 192.168.0.10 --la 0x545

  # Table output, keep a history and a capture of the session
  udsinfo read --ip 192.168.0.10 --la 545 --format table --history-db reads.db --pcap session.pcap

  # Publish the record to MQTT and copy it to the clipboard
  udsinfo read --ip 192.168.0.10 --la 0x545 --mqtt-broker tcp://localhost:1883 --copy`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if handleHelpArg(cmd, args) {
				return nil
			}
			if err := requireFlags(cmd, requiredFlag{"ip", flags.ip}, requiredFlag{"la", flags.la}); err != nil {
				return err
			}

			opts := app.ReadOptions{
				ConfigPath:     g.configPath,
				ConfigExplicit: configExplicit(cmd),
				IP:             flags.ip,
				LogicalAddress: flags.la,
				Port:           flags.port,
				MaxAttempts:    flags.attempts,
				P2Timeout:      flags.p2,
				Format:         flags.format,
				MetricsFile:    flags.metricsFile,
				PcapFile:       flags.pcapFile,
				HistoryDB:      flags.historyDB,
				MQTTBroker:     flags.mqttBroker,
				MQTTTopic:      flags.mqttTopic,
				Copy:           flags.copy,
				Progress:       flags.progress,
				Log:            g.logOptions(),
				Stdout:         cmd.OutOrStdout(),
				Stderr:         cmd.ErrOrStderr(),
			}
			if cmd.Flags().Changed("delay") {
				opts.RetryDelay = &flags.delay
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return app.RunRead(ctx, opts)
		},
	}

	cmd.Flags().StringVar(&flags.ip, "ip", "", "DoIP entity IP address (required)")
	cmd.Flags().StringVar(&flags.la, "la", "", "ECU logical address in hex, e.g. 0x545 (required)")
	cmd.Flags().IntVar(&flags.port, "port", 0, "DoIP TCP port (default from config, 13400)")
	cmd.Flags().IntVar(&flags.attempts, "attempts", 0, "Connection attempts (default from config, 5)")
	cmd.Flags().DurationVar(&flags.delay, "delay", 0, "Delay between connection attempts (default from config, 10s)")
	cmd.Flags().DurationVar(&flags.p2, "p2", 0, "UDS P2 response timeout (default from config, 1s)")
	cmd.Flags().StringVar(&flags.format, "format", "", "Output format: json|table (default json)")
	cmd.Flags().StringVar(&flags.metricsFile, "metrics-file", "", "Write per-identifier metrics to this CSV file")
	cmd.Flags().StringVar(&flags.pcapFile, "pcap", "", "Write the DoIP session to this pcap file")
	cmd.Flags().StringVar(&flags.historyDB, "history-db", "", "Store the record in this history database")
	cmd.Flags().StringVar(&flags.mqttBroker, "mqtt-broker", "", "Publish the record to this MQTT broker (tcp://host:1883)")
	cmd.Flags().StringVar(&flags.mqttTopic, "mqtt-topic", "", "MQTT topic (default vehicle/uds-info)")
	cmd.Flags().BoolVar(&flags.copy, "copy", false, "Copy the JSON record to the clipboard")
	cmd.Flags().BoolVar(&flags.progress, "progress", false, "Show a progress bar on stderr")

	return cmd
}
