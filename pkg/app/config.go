package app

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/autopeer-io/vensim/pkg/log"
)

const configFlagName = "config"

func addConfigFlag(fs *pflag.FlagSet, cfgFile *string) {
	fs.StringVarP(cfgFile, configFlagName, "c", *cfgFile,
		"Read configuration from the specified YAML file. Flags and environment variables take precedence.")
}

// envPrefix turns a command name into its environment variable prefix,
// e.g. ven-agent becomes VEN_AGENT.
func envPrefix(name string) string {
	return strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}

// newViper creates the configuration source of one command: flags, then
// environment (VEN_AGENT_MQTT_BROKER for --mqtt.broker), then config file.
func newViper(name string) *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix(name))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// loadConfig reads cfgFile, or name.yaml from the default search paths when
// cfgFile is empty. A missing default file is not an error.
func loadConfig(v *viper.Viper, name, cfgFile string) (string, error) {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(name)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".vensim"))
		}
		v.AddConfigPath("/etc/vensim")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return "", nil
		}
		return "", err
	}
	return v.ConfigFileUsed(), nil
}

// watchConfig applies log level changes from the config file at runtime.
// Other settings need a restart.
func watchConfig(v *viper.Viper) {
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		level := v.GetString("log.level")
		log.Info("Config file changed", "file", e.Name, "logLevel", level)
		if level != "" {
			log.SetLevel(level)
		}
	})
	v.WatchConfig()
}
