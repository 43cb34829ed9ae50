// Command disco runs quorum peer discovery for a distributed lock
// cluster and hands the resulting replication group to the lock
// subsystem.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/joho/godotenv"
	"github.com/oklog/run"

	"github.com/mlinvill/distributedlock/bus/zmqbus"
	"github.com/mlinvill/distributedlock/httpapi"
	"github.com/mlinvill/distributedlock/lock"
	"github.com/mlinvill/distributedlock/protocol"
)

const (
	defaultBroker  = "localhost:5555"
	defaultTopic   = "snews.operations"
	defaultAPIAddr = "0.0.0.0:8050"
)

func main() {
	if err := runDisco(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func runDisco(args []string) error {
	flagset := flag.NewFlagSet("disco", flag.ExitOnError)
	var (
		debug      = flagset.Bool("debug", false, "log debug information")
		envFile    = flagset.String("env", ".env", "environment file with host/broker configuration")
		broker     = flagset.String("broker", "", "bus broker host:port (default $BROKER, then "+defaultBroker+")")
		readTopic  = flagset.String("read-topic", "", "topic to consume (default $READ_TOPIC, then "+defaultTopic+")")
		writeTopic = flagset.String("write-topic", "", "topic to publish (default $WRITE_TOPIC, then the read topic)")
		identity   = flagset.String("identity", "", "explicit node identity (default $HOSTURI, then resolved)")
		quorum     = flagset.Int("quorum", protocol.DefaultQuorumThreshold, "distinct peer replies required to conclude discovery")
		warmup     = flagset.Duration("warmup", protocol.DefaultWarmupDelay, "pause after opening bus streams")
		timeout    = flagset.Duration("timeout", protocol.DefaultWatchdogTimeout, "watchdog bound on the whole discovery run")
		apiAddr    = flagset.String("api", defaultAPIAddr, "listen address for HTTP status API")
		auth       = flagset.Bool("auth", true, "authenticate to the bus (PLAIN, $BUS_USERNAME/$BUS_PASSWORD)")
	)
	flagset.Usage = usageFor(flagset, "disco [flags]")
	if err := flagset.Parse(args); err != nil {
		return err
	}

	// Build a logger.
	var logger log.Logger
	{
		logger = log.NewLogfmtLogger(os.Stderr)
		lv := level.AllowInfo()
		if *debug {
			lv = level.AllowDebug()
		}
		logger = level.NewFilter(logger, lv)
	}

	// Load the environment file, if there is one.
	if _, err := os.Stat(*envFile); err == nil {
		if err := godotenv.Load(*envFile); err != nil {
			return err
		}
		level.Debug(logger).Log("env", *envFile)
	}

	pick := func(flagValue, envKey, fallback string) string {
		if flagValue != "" {
			return flagValue
		}
		if v := os.Getenv(envKey); v != "" {
			return v
		}
		return fallback
	}

	// Construct the discovery engine.
	var engine *protocol.Engine
	{
		var err error
		engine, err = protocol.NewEngine(protocol.Config{
			Broker:     pick(*broker, "BROKER", defaultBroker),
			ReadTopic:  pick(*readTopic, "READ_TOPIC", defaultTopic),
			WriteTopic: pick(*writeTopic, "WRITE_TOPIC", ""),
			Identity:   protocol.Identity(pick(*identity, "HOSTURI", "")),
			Dialer: zmqbus.Dialer{
				Auth:     *auth,
				Username: os.Getenv("BUS_USERNAME"),
				Password: os.Getenv("BUS_PASSWORD"),
			},
			QuorumThreshold: *quorum,
			WarmupDelay:     *warmup,
			WatchdogTimeout: *timeout,
			Metrics:         protocol.NewMetrics("disco"),
			Logger:          log.With(logger, "component", "engine"),
		})
		if err != nil {
			return err
		}
	}
	level.Info(logger).Log("msg", "I am", "identity", engine.WhoAmI())

	var g run.Group
	{
		// Run discovery.
		ctx, cancel := context.WithCancel(context.Background())
		g.Add(func() error {
			return engine.Run(ctx)
		}, func(error) {
			engine.Shutdown()
			cancel()
		})
	}
	{
		// Serve the status API.
		server := &http.Server{
			Addr:    *apiAddr,
			Handler: httpapi.NewStatusServer(engine, log.With(logger, "component", "api")),
		}
		level.Info(logger).Log("component", "api", "addr", *apiAddr)
		g.Add(func() error {
			return server.ListenAndServe()
		}, func(error) {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			server.Shutdown(ctx)
		})
	}
	{
		// Listen for ctrl-C.
		ctx, cancel := context.WithCancel(context.Background())
		g.Add(func() error {
			c := make(chan os.Signal, 1)
			signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
			select {
			case sig := <-c:
				return fmt.Errorf("received signal %s", sig)
			case <-ctx.Done():
				return ctx.Err()
			}
		}, func(error) {
			cancel()
		})
	}
	if err := g.Run(); err != nil {
		return err
	}

	// Hand the discovered group to the lock subsystem's consumers.
	group := lock.NewGroup(engine)
	level.Info(logger).Log("msg", "discovery concluded", "self", group.Self, "peers", fmt.Sprintf("%v", group.Peers))
	return nil
}

func usageFor(fs *flag.FlagSet, short string) func() {
	return func() {
		fmt.Fprintf(os.Stderr, "USAGE\n")
		fmt.Fprintf(os.Stderr, "  %s\n", short)
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "FLAGS\n")
		w := tabwriter.NewWriter(os.Stderr, 0, 2, 2, ' ', 0)
		fs.VisitAll(func(f *flag.Flag) {
			fmt.Fprintf(w, "\t-%s %s\t%s\n", f.Name, f.DefValue, f.Usage)
		})
		w.Flush()
		fmt.Fprintf(os.Stderr, "\n")
	}
}
