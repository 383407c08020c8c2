// Package cli is the docsim command line: one-shot horizon runs, config validation
// and the long-running run service.
//
//	docsim run -f plant.yaml [--json]
//	docsim validate -f plant.yaml
//	docsim serve [--http-addr :8080] [--grpc-addr :50051]
//
// Daemon settings come from flags, DOCSIM_* environment variables and an optional
// settings file, in that order of precedence.
package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/GoSim-25-26J-441/doc-simulation/pkg/logger"
)

// Version is reported by docsim --version
var Version = "0.1.0"

// Settings configure the process, not a simulation
type Settings struct {
	LogLevel        string           `mapstructure:"log_level"`
	LogFormat       string           `mapstructure:"log_format"`
	HTTPAddr        string           `mapstructure:"http_addr"`
	GRPCAddr        string           `mapstructure:"grpc_addr"`
	ShutdownTimeout time.Duration    `mapstructure:"shutdown_timeout"`
	Redis           RedisSettings    `mapstructure:"redis"`
	MQTT            MQTTSettings     `mapstructure:"mqtt"`
	Callback        CallbackSettings `mapstructure:"callback"`
}

// RedisSettings enable the shared step cache when Addr is set
type RedisSettings struct {
	Addr      string        `mapstructure:"addr"`
	Prefix    string        `mapstructure:"prefix"`
	TTL       time.Duration `mapstructure:"ttl"`
	LocalSize int           `mapstructure:"local_size"`
}

// MQTTSettings enable telemetry publishing when Broker is set
type MQTTSettings struct {
	Broker       string `mapstructure:"broker"`
	ClientID     string `mapstructure:"client_id"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	TopicPrefix  string `mapstructure:"topic_prefix"`
	QoS          int    `mapstructure:"qos"`
	PublishSteps bool   `mapstructure:"publish_steps"`
}

type CallbackSettings struct {
	MaxRetries int           `mapstructure:"max_retries"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("grpc_addr", ":50051")
	v.SetDefault("shutdown_timeout", 10*time.Second)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.prefix", "docsim:step:")
	v.SetDefault("redis.ttl", 24*time.Hour)
	v.SetDefault("redis.local_size", 4096)

	v.SetDefault("mqtt.broker", "")
	v.SetDefault("mqtt.client_id", "docsim")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.topic_prefix", "docsim")
	v.SetDefault("mqtt.qos", 1)
	v.SetDefault("mqtt.publish_steps", false)

	v.SetDefault("callback.max_retries", 3)
	v.SetDefault("callback.timeout", 10*time.Second)
}

// LoadSettings resolves settings from v; file is read first when set
func LoadSettings(v *viper.Viper, file string) (Settings, error) {
	setDefaults(v)
	v.SetEnvPrefix("DOCSIM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Settings{}, fmt.Errorf("error reading settings file: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("error unmarshaling settings: %w", err)
	}
	if s.MQTT.QoS < 0 || s.MQTT.QoS > 2 {
		return Settings{}, fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", s.MQTT.QoS)
	}
	return s, nil
}

type app struct {
	v            *viper.Viper
	settingsFile string
	settings     Settings
}

// BuildCLI assembles the docsim command tree
func BuildCLI() *cobra.Command {
	a := &app{v: viper.New()}

	rootCmd := &cobra.Command{
		Use:   "docsim",
		Short: "Direct Ocean Capture plant orchestrator",
		Long: `docsim dispatches an electrodialysis Direct Ocean Capture plant over a
power time series: it picks an operating mode per timestep, calls the
chemistry/power model, tracks plant state and reports captured CO2,
energy use and cost.`,
		Version:           Version,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.settingsFile, "settings", "", "daemon settings file (yaml, json or toml)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("log-format", "text", "log format (text, json)")
	_ = a.v.BindPFlag("log_level", flags.Lookup("log-level"))
	_ = a.v.BindPFlag("log_format", flags.Lookup("log-format"))

	rootCmd.AddCommand(a.buildRunCommand())
	rootCmd.AddCommand(a.buildValidateCommand())
	rootCmd.AddCommand(a.buildOptimizeCommand())
	rootCmd.AddCommand(a.buildProfileCommand())
	rootCmd.AddCommand(a.buildServeCommand())

	return rootCmd
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	s, err := LoadSettings(a.v, a.settingsFile)
	if err != nil {
		return err
	}
	a.settings = s
	logger.SetDefault(logger.NewFormat(s.LogFormat, s.LogLevel, cmd.ErrOrStderr()))
	return nil
}
