// Package commands implements the meshsim CLI.
package commands

import (
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/skycoin/skycoin/src/util/logging"
	"github.com/spf13/cobra"

	"github.com/skyfleet/meshnet/pkg/simnet"
)

const configEnv = "MESHSIM_CONFIG"

type runCfg struct {
	cfgFromStdin bool
	addr         string
	eventsDB     string
	args         []string

	logger *logging.Logger
	conf   simnet.Config
	net    *simnet.Network
	rec    *simnet.Recorder
	store  simnet.EventStore
}

var cfg *runCfg

var rootCmd = &cobra.Command{
	Use:   "meshsim [config-path]",
	Short: "Simulated multi-hop relay mesh",
	Run: func(_ *cobra.Command, args []string) {
		cfg.args = args

		cfg.startLogger().
			readConfig().
			runMesh().
			serveMonitor().
			waitOsSignals().
			stopMesh()
	},
}

func init() {
	cfg = &runCfg{}
	rootCmd.Flags().BoolVarP(&cfg.cfgFromStdin, "stdin", "i", false, "read config from STDIN")
	rootCmd.Flags().StringVarP(&cfg.addr, "addr", "a", "", "serve the monitor API on this address, e.g. :8080")
	rootCmd.Flags().StringVarP(&cfg.eventsDB, "events-db", "d", "", "persist observed events to this bbolt file")
}

// Execute executes root CLI command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func (cfg *runCfg) startLogger() *runCfg {
	cfg.logger = logging.MustGetLogger("meshsim")
	return cfg
}

func (cfg *runCfg) readConfig() *runCfg {
	var rdr *os.File

	if cfg.cfgFromStdin {
		cfg.logger.Info("Reading config from STDIN")
		rdr = os.Stdin
	} else {
		path := defaultConfigPath()
		if env, ok := os.LookupEnv(configEnv); ok {
			path = env
		}
		if len(cfg.args) > 0 {
			path = cfg.args[0]
		}

		f, err := os.Open(path) //nolint:gosec
		if err != nil {
			cfg.logger.Fatalf("Failed to open config %s: %s", path, err)
		}
		rdr = f
	}

	conf, err := simnet.ReadConfig(rdr)
	if err != nil {
		cfg.logger.Fatalf("Invalid config: %s", err)
	}
	cfg.conf = conf
	return cfg
}

func (cfg *runCfg) runMesh() *runCfg {
	net, err := simnet.New(cfg.conf)
	if err != nil {
		cfg.logger.Fatalf("Failed to build mesh: %s", err)
	}
	cfg.net = net

	cfg.store = simnet.InMemoryEventStore()
	if cfg.eventsDB != "" {
		store, err := simnet.BoltEventStore(cfg.eventsDB)
		if err != nil {
			cfg.logger.Fatalf("Failed to open events db: %s", err)
		}
		cfg.store = store
	}
	cfg.rec = net.AttachRecorder(cfg.store)

	if err := net.Start(); err != nil {
		cfg.logger.Fatalf("Failed to start mesh: %s", err)
	}
	cfg.logger.Infof("Recording run %s", cfg.rec.RunID())
	return cfg
}

func (cfg *runCfg) serveMonitor() *runCfg {
	if cfg.addr == "" {
		return cfg
	}

	go func() {
		api := simnet.NewAPI(cfg.net, cfg.rec)
		if err := http.ListenAndServe(cfg.addr, api); err != nil {
			cfg.logger.Warnf("Monitor API stopped: %s", err)
		}
	}()
	cfg.logger.Infof("Serving monitor API on %s", cfg.addr)
	return cfg
}

func (cfg *runCfg) waitOsSignals() *runCfg {
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch
	return cfg
}

func (cfg *runCfg) stopMesh() {
	cfg.net.Stop()
	if err := cfg.store.Close(); err != nil {
		cfg.logger.Warnf("Failed to close event store: %s", err)
	}
	cfg.logger.Infof("Recorded %d events", cfg.rec.Count())
}

func defaultConfigPath() string {
	home, err := homedir.Dir()
	if err != nil {
		return "meshsim.json"
	}
	return filepath.Join(home, ".meshsim", "config.json")
}
