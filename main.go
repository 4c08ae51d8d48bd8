package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"ocpp_station_sim/internal/command"
	"ocpp_station_sim/internal/component"
	"ocpp_station_sim/internal/config"
	"ocpp_station_sim/internal/correlator"
	"ocpp_station_sim/internal/evse/states"
	"ocpp_station_sim/internal/notifier"
	"ocpp_station_sim/internal/ocppadapter"
	"ocpp_station_sim/internal/scheduler"
	"ocpp_station_sim/internal/sender"
	"ocpp_station_sim/internal/store"
	"ocpp_station_sim/internal/txid"
)

const (
	appVersion = "5.0.0"
)

var (
	chargingStationID, csmsURL, controlPort, dbPath string
	configPath, natsURL                             string
	showVersion                                     bool

	cfg       *config.Config
	db        *store.Store
	transport *ocppadapter.Transport
	send      *sender.Sender
	sched     *scheduler.Scheduler
	manager   *states.Manager
	executor  *command.Executor
	bus       *notifier.Notifier
	heartbeat heartbeatSession

	ll        = log.StandardLogger()
	appLogger = ll.WithContext(context.Background())
)

func init() {
	time.Local = time.UTC
}

func main() {
	// listen to quit signals
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT)
	defer signal.Stop(signals)

	flag.StringVar(&chargingStationID, "cp", "", "charging station id")
	flag.StringVar(&csmsURL, "cs", "", "csms url (default: from config or the active network profile)")
	flag.StringVar(&controlPort, "control-port", "", "control server port (default: random)")
	flag.StringVar(&dbPath, "db", "", "db path (default: from config)")
	flag.StringVar(&configPath, "config", "", "config file (default: station.yaml)")
	flag.StringVar(&natsURL, "nats", "", "nats url, the command bus is disabled when empty")
	flag.BoolVar(&showVersion, "version", false, "show version")

	flag.Parse()
	if showVersion {
		fmt.Println("Current App Version:", appVersion)
		os.Exit(0)
	}

	c, err := config.Load(configPath)
	if err != nil {
		log.Fatal(err)
	}
	cfg = c
	applyConfig()

	if chargingStationID == "" {
		println("missing charging station id")
		flag.Usage()
		os.Exit(1)
	}

	if level, err := log.ParseLevel(cfg.Logging.Level); err == nil {
		ll.SetLevel(level)
	}
	appLogger = appLogger.WithField("cp", chargingStationID)

	dbPath := filepath.Join(dbPath, chargingStationID)
	st, err := store.Open(dbPath, appLogger)
	if err != nil {
		log.Fatal(err)
	}
	defer st.Close()
	db = st

	if err := seedStore(dbPath); err != nil {
		log.Fatal(err)
	}

	if err := setupStation(); err != nil {
		appLogger.WithError(err).Fatalln("setupStation")
	}

	httpPort := startHttpServer()
	appLogger = appLogger.WithField("control_port", httpPort)

	if natsURL != "" {
		if err := bus.Start(natsURL, executor); err != nil {
			appLogger.WithError(err).Fatalln("startNats")
		}
		defer bus.Stop()
	}

	if err := startChargingStation(); err != nil {
		appLogger.WithError(err).Fatalln("startChargingStation")
	}

	<-signals
	go func() {
		<-signals
		fmt.Println("Forcefully shutting down...")

		heartbeat.end()
		db.Set(StoppedAtKey, time.Now().Format(time.RFC3339))
		os.Exit(2)
	}()

	fmt.Println("Gracefully shutting down...")

	db.Set(StoppedAtKey, time.Now().Format(time.RFC3339))

	heartbeat.end()
	sched.Stop()

	if transport.IsConnected() {
		transport.Stop()
	}
}

// applyConfig fills every flag left unset from the loaded config.
func applyConfig() {
	if chargingStationID == "" {
		chargingStationID = cfg.Station.ID
	}
	if csmsURL == "" {
		csmsURL = cfg.CSMS.URL
	}
	if controlPort == "" {
		controlPort = cfg.Control.Port
	}
	if dbPath == "" {
		dbPath = cfg.Station.DBPath
	}
	if natsURL == "" {
		natsURL = cfg.NATS.URL
	}
}

func seedStore(path string) error {
	defaults, err := cfg.StoreDefaults()
	if err != nil {
		return err
	}
	if err := db.Seed(defaults); err != nil {
		return err
	}

	// store setup configuration
	metadata := map[string]string{
		StartedAtKey:         time.Now().Format(time.RFC3339),
		ChargingStationIDKey: chargingStationID,
		CSMSURLKey:           csmsURL,
		VersionKey:           appVersion,
		DBPathKey:            path,
	}
	if cfg.CSMS.BasicAuthPassword != "" {
		metadata[BasicAuthPasswordKey] = cfg.CSMS.BasicAuthPassword
	}
	for k, v := range metadata {
		if err := db.Set(k, v); err != nil {
			return err
		}
	}
	return nil
}

func setupStation() error {
	evses, err := cfg.BuildEvses()
	if err != nil {
		return err
	}

	transport = ocppadapter.New(chargingStationID, appLogger)
	corr := correlator.New(transport, appLogger)
	send = sender.New(corr, appLogger)
	sched = scheduler.New(appLogger)
	bus = notifier.New(chargingStationID, appLogger)

	manager = states.NewManager(evses, states.Dependencies{
		Store:     db,
		Sender:    send,
		Scheduler: sched,
		// seeded with the clock so ids stay unique across restarts
		IDs:      txid.New(time.Now().Unix()),
		Log:      appLogger,
		Observer: bus.StateChanged,
	})

	registry := component.NewRegistry(db, appLogger)
	executor = command.NewExecutor(manager, registry, time.Duration(cfg.CSMS.CommandWait)*time.Second, appLogger)

	transport.Attach(corr, manager, triggerMessage)
	transport.AttachProvisioning(registry, db, resetChargingStation)
	return nil
}

// heartbeatSession owns the stop channel of the running heartbeat loop.
// Lifecycle calls arrive concurrently from HTTP handlers and CSMS resets.
type heartbeatSession struct {
	mu   sync.Mutex
	stop chan struct{}
}

// begin ends any running loop and returns the stop channel of a new one.
func (s *heartbeatSession) begin() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		close(s.stop)
	}
	s.stop = make(chan struct{})
	return s.stop
}

func (s *heartbeatSession) end() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		close(s.stop)
		s.stop = nil
	}
}
