// Package config loads sgtm-debug settings from defaults, an optional YAML
// config file, and SGTM_DEBUG_* environment variables. Flag overrides are
// applied by the command layer afterwards.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/sgtm-tools/sgtm-debug/internal/helper"
	"github.com/sgtm-tools/sgtm-debug/script"
)

// 8080 and 8081 are mitmproxy's own defaults for the proxy listener and the
// web interface.
const (
	DefaultListenPort = 8080
	DefaultWebPort    = 8081
	DefaultConfDir    = "~/.mitmproxy"
)

type Configuration struct {
	Proxy struct {
		ListenPort int    `mapstructure:"listen_port"`
		WebPort    int    `mapstructure:"web_port"`
		ConfDir    string `mapstructure:"confdir"`
		DumpBin    string `mapstructure:"mitmdump_bin"`
		WebBin     string `mapstructure:"mitmweb_bin"`
	} `mapstructure:"proxy"`
	Header struct {
		Name string `mapstructure:"name"`
	} `mapstructure:"header"`
	Hosts struct {
		Ignore []string `mapstructure:"ignore"`
		Allow  []string `mapstructure:"allow"`
	} `mapstructure:"hosts"`
	Logging struct {
		Level string `mapstructure:"level"`
		File  string `mapstructure:"file"`
	} `mapstructure:"logging"`
}

// Init loads the configuration. cfgFile may be empty, in which case
// $XDG_CONFIG_HOME/sgtm-debug/config.yaml and ./config.yaml are tried. A
// missing config file is not an error; an unreadable one is only warned
// about, matching how the rest of the tool treats optional inputs.
func Init(cfgFile string) (*Configuration, error) {
	v := viper.New()

	v.SetDefault("proxy.listen_port", DefaultListenPort)
	v.SetDefault("proxy.web_port", DefaultWebPort)
	v.SetDefault("proxy.confdir", DefaultConfDir)
	v.SetDefault("proxy.mitmdump_bin", "mitmdump")
	v.SetDefault("proxy.mitmweb_bin", "mitmweb")
	v.SetDefault("header.name", script.DefaultHeaderName)
	v.SetDefault("hosts.ignore", []string{})
	v.SetDefault("hosts.allow", []string{})
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", "")

	if cfgFile != "" {
		expanded, err := helper.ExpandTilde(cfgFile)
		if err != nil {
			log.Warnf("expand config path %v error %v", cfgFile, err)
			expanded = cfgFile
		}
		v.SetConfigFile(expanded)
		v.SetConfigType("yaml")
	} else {
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "sgtm-debug"))
		}
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("SGTM_DEBUG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warnf("read config error %v", err)
		}
	} else {
		log.Debugf("using config file %v", v.ConfigFileUsed())
	}

	config := new(Configuration)
	if err := v.Unmarshal(config); err != nil {
		return nil, errors.Wrap(err, "decode configuration")
	}

	config.Proxy.ConfDir = expandOrKeep(config.Proxy.ConfDir)
	config.Logging.File = expandOrKeep(config.Logging.File)

	return config, nil
}

func expandOrKeep(path string) string {
	expanded, err := helper.ExpandTilde(path)
	if err != nil {
		log.Warnf("expand path %v error %v", path, err)
		return path
	}
	return expanded
}
