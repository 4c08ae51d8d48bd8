// Package config loads the station topology and policy defaults.
package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"ocpp_station_sim/internal/evse"
	"ocpp_station_sim/internal/store"
)

type Config struct {
	Station         StationConfig   `mapstructure:"station"`
	CSMS            CSMSConfig      `mapstructure:"csms"`
	Control         ControlConfig   `mapstructure:"control"`
	NATS            NATSConfig      `mapstructure:"nats"`
	Logging         LoggingConfig   `mapstructure:"logging"`
	Evses           []EvseConfig    `mapstructure:"evses" validate:"required,min=1,dive"`
	Policy          PolicyConfig    `mapstructure:"policy"`
	NetworkProfiles []ProfileConfig `mapstructure:"network_profiles" validate:"dive"`
}

type StationConfig struct {
	ID              string `mapstructure:"id"`
	Model           string `mapstructure:"model"`
	VendorName      string `mapstructure:"vendor_name"`
	FirmwareVersion string `mapstructure:"firmware_version"`
	DBPath          string `mapstructure:"db_path"`
}

type CSMSConfig struct {
	URL               string `mapstructure:"url"`
	BasicAuthPassword string `mapstructure:"basic_auth_password"`
	// CAFile is added to the system roots for security profile 2.
	CAFile string `mapstructure:"ca_file"`
	// CommandWait bounds how long an operator command waits for the CSMS.
	CommandWait int `mapstructure:"command_wait"`
}

type ControlConfig struct {
	Port string `mapstructure:"port"`
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

type EvseConfig struct {
	ID         int   `mapstructure:"id" validate:"gt=0"`
	Connectors []int `mapstructure:"connectors" validate:"required,min=1,unique,dive,gt=0"`
}

type PolicyConfig struct {
	EVConnectionTimeOut          int    `mapstructure:"ev_connection_timeout" validate:"gte=0"`
	TxStartPoint                 string `mapstructure:"tx_start_point"`
	TxStopPoint                  string `mapstructure:"tx_stop_point"`
	NetworkConfigurationPriority string `mapstructure:"network_configuration_priority"`
	HeartbeatInterval            int    `mapstructure:"heartbeat_interval" validate:"gt=0"`
}

type ProfileConfig struct {
	Slot            int    `mapstructure:"slot" validate:"gte=0"`
	OCPPVersion     string `mapstructure:"ocpp_version" validate:"required"`
	OCPPTransport   string `mapstructure:"ocpp_transport"`
	CSMSURL         string `mapstructure:"csms_url" validate:"required"`
	MessageTimeout  int    `mapstructure:"message_timeout"`
	SecurityProfile int    `mapstructure:"security_profile" validate:"gte=0,lte=3"`
	OCPPInterface   string `mapstructure:"ocpp_interface"`
}

// Load reads path, or station.yaml from ./configs or the working directory
// when path is empty. A missing default file is not an error. Every key can
// be overridden from the environment, e.g. SIM_CSMS_URL.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("station")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("SIM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if _, err := cfg.StoreDefaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("station.id", "")
	v.SetDefault("station.model", "SimStation")
	v.SetDefault("station.vendor_name", "OCPPSim")
	v.SetDefault("station.firmware_version", "")
	v.SetDefault("station.db_path", "db")
	v.SetDefault("csms.url", "")
	v.SetDefault("csms.basic_auth_password", "")
	v.SetDefault("csms.ca_file", "")
	v.SetDefault("csms.command_wait", 10)
	v.SetDefault("control.port", "")
	v.SetDefault("nats.url", "")
	v.SetDefault("logging.level", "info")
	v.SetDefault("evses", []map[string]any{{"id": 1, "connectors": []int{1}}})
	v.SetDefault("policy.ev_connection_timeout", 60)
	v.SetDefault("policy.tx_start_point", string(store.TxPointEVConnected)+","+string(store.TxPointAuthorized))
	v.SetDefault("policy.tx_stop_point", string(store.TxPointEVConnected)+","+string(store.TxPointAuthorized))
	v.SetDefault("policy.network_configuration_priority", "")
	v.SetDefault("policy.heartbeat_interval", 300)
}

// StoreDefaults converts the policy section into seed values for the store.
func (c *Config) StoreDefaults() (store.Defaults, error) {
	start, err := store.ParseTxPoints(c.Policy.TxStartPoint)
	if err != nil {
		return store.Defaults{}, fmt.Errorf("tx_start_point: %w", err)
	}
	stop, err := store.ParseTxPoints(c.Policy.TxStopPoint)
	if err != nil {
		return store.Defaults{}, fmt.Errorf("tx_stop_point: %w", err)
	}
	var priority []int
	if c.Policy.NetworkConfigurationPriority != "" {
		priority, err = store.ParseInts(c.Policy.NetworkConfigurationPriority)
		if err != nil {
			return store.Defaults{}, fmt.Errorf("network_configuration_priority: %w", err)
		}
	}

	profiles := make(map[int]store.NetworkConnectionProfile, len(c.NetworkProfiles))
	for _, p := range c.NetworkProfiles {
		profiles[p.Slot] = store.NetworkConnectionProfile{
			OCPPVersion:     p.OCPPVersion,
			OCPPTransport:   p.OCPPTransport,
			CSMSURL:         p.CSMSURL,
			MessageTimeout:  p.MessageTimeout,
			SecurityProfile: p.SecurityProfile,
			OCPPInterface:   p.OCPPInterface,
		}
	}
	for _, slot := range priority {
		if _, ok := profiles[slot]; !ok {
			return store.Defaults{}, fmt.Errorf("network_configuration_priority: no profile in slot %d", slot)
		}
	}

	return store.Defaults{
		EVConnectionTimeOut:          c.Policy.EVConnectionTimeOut,
		TxStartPoints:                start,
		TxStopPoints:                 stop,
		NetworkConfigurationPriority: priority,
		NetworkProfiles:              profiles,
		HeartbeatInterval:            c.Policy.HeartbeatInterval,
	}, nil
}

// BuildEvses creates the configured EVSEs. Duplicate ids are rejected.
func (c *Config) BuildEvses() ([]*evse.Evse, error) {
	seen := make(map[int]bool, len(c.Evses))
	evses := make([]*evse.Evse, 0, len(c.Evses))
	for _, e := range c.Evses {
		if seen[e.ID] {
			return nil, fmt.Errorf("duplicate evse id %d", e.ID)
		}
		seen[e.ID] = true
		evses = append(evses, evse.New(e.ID, e.Connectors...))
	}
	return evses, nil
}
