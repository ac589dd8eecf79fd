package common

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnv names the config file layered over the defaults
const ConfigPathEnv = "CONFIG_PATH"

//go:embed config.default.yaml
var defaultConfig []byte

// ConfigManager loads a config struct from the embedded defaults and an optional file
type ConfigManager[T any] struct {
	kf     *koanf.Koanf
	mu     sync.RWMutex
	config T
}

func NewConfigManager[T any]() (*ConfigManager[T], error) {
	cm := &ConfigManager[T]{kf: koanf.New(".")}

	if err := cm.kf.Load(rawbytes.Provider(defaultConfig), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load default config: %w", err)
	}

	if path := os.Getenv(ConfigPathEnv); path != "" {
		if err := cm.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cm.unmarshal(); err != nil {
		return nil, err
	}
	return cm, nil
}

func (cm *ConfigManager[T]) loadFile(path string) error {
	var parser koanf.Parser
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		parser = json.Parser()
	case ".yaml", ".yml":
		parser = yaml.Parser()
	default:
		return fmt.Errorf("unsupported config file type: %s", path)
	}

	if err := cm.kf.Load(file.Provider(path), parser); err != nil {
		return fmt.Errorf("load config %s: %w", path, err)
	}
	return nil
}

func (cm *ConfigManager[T]) unmarshal() error {
	var config T
	err := cm.kf.UnmarshalWithConf("", &config, koanf.UnmarshalConf{
		Tag: "key",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
			Result:           &config,
			WeaklyTypedInput: true,
		},
	})
	if err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}

	cm.mu.Lock()
	cm.config = config
	cm.mu.Unlock()
	return nil
}

// Set overrides a single key and re-reads the config
func (cm *ConfigManager[T]) Set(key string, value any) error {
	if err := cm.kf.Set(key, value); err != nil {
		return err
	}
	return cm.unmarshal()
}

func (cm *ConfigManager[T]) GetConfig() T {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}
