package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"

	"github.com/yadunandan004/dblogger/logerr"
	"github.com/yadunandan004/dblogger/model"
)

const loggersKey = "loggers"

// Load reads every logger declared in an .ini or .yaml file. Values can be
// overridden per logger with DBLOG_<LOGGER>_<KEY> environment variables.
func Load(path string) ([]LoggerConfig, error) {
	data, order, err := loadConfigFile(path)
	if err != nil {
		return nil, err
	}
	resolver := NewConfigResolver(data, EnvPrefix)

	configs := make([]LoggerConfig, 0, len(order))
	for _, section := range order {
		cfg, err := FromResolver(resolver, section)
		if err != nil {
			return nil, err
		}
		configs = append(configs, cfg)
	}
	return configs, nil
}

// LoadLogger returns the logger whose name (or section) matches name.
func LoadLogger(path, name string) (LoggerConfig, error) {
	configs, err := Load(path)
	if err != nil {
		return LoggerConfig{}, err
	}
	known := make([]string, 0, len(configs))
	for _, c := range configs {
		if c.Name == name {
			return c, nil
		}
		known = append(known, c.Name)
	}
	return LoggerConfig{}, logerr.Errorf(logerr.KindConfig, "config.load", "logger %q not found in %s (known: %s)", name, path, strings.Join(known, ", "))
}

// FromResolver builds the config for one section. The section name is the
// default logger name and the env-variable scope.
func FromResolver(r *ConfigResolver, section string) (LoggerConfig, error) {
	key := func(k string) string { return loggersKey + "." + section + "." + k }
	env := func(k string) string { return EnvKey(section, k) }
	def := Default(section, model.Mock)

	cfg := LoggerConfig{
		Name:             r.GetString(key("name"), env("name"), section),
		SyncMode:         r.GetBool(key("syncMode"), env("syncMode"), def.SyncMode),
		NumThreads:       r.GetInt(key("numThreads"), env("numThreads"), def.NumThreads),
		OnlyFileNames:    r.GetBool(key("onlyFileNames"), env("onlyFileNames"), false),
		UseBatch:         r.GetBool(key("useBatch"), env("useBatch"), false),
		BatchSize:        r.GetInt(key("batchSize"), env("batchSize"), def.BatchSize),
		DatabaseName:     r.GetString(key("databaseName"), env("databaseName"), ""),
		DatabaseTable:    r.GetString(key("databaseTable"), env("databaseTable"), def.DatabaseTable),
		DatabaseHost:     r.GetString(key("databaseHost"), env("databaseHost"), ""),
		DatabasePort:     r.GetInt(key("databasePort"), env("databasePort"), 0),
		DatabaseUser:     r.GetString(key("databaseUser"), env("databaseUser"), ""),
		DatabasePass:     r.GetString(key("databasePass"), env("databasePass"), ""),
		SSLMode:          r.GetString(key("sslMode"), env("sslMode"), def.SSLMode),
		SourceUUID:       r.GetString(key("sourceUuid"), env("sourceUuid"), ""),
		SourceName:       r.GetString(key("sourceName"), env("sourceName"), ""),
		PassKey:          r.GetString(key("passKey"), env("passKey"), ""),
		AllowDrop:        r.GetBool(key("allowDrop"), env("allowDrop"), false),
		CreateDatabase:   r.GetBool(key("createDatabase"), env("createDatabase"), def.CreateDatabase),
		ErrorLogPath:     r.GetString(key("errorLogPath"), env("errorLogPath"), def.ErrorLogPath),
		ErrorLogMaxBytes: int64(r.GetInt(key("errorLogMaxBytes"), env("errorLogMaxBytes"), int(def.ErrorLogMaxBytes))),
		QueryTimeout:     r.GetDuration(key("queryTimeout"), env("queryTimeout"), def.QueryTimeout),
		ReadWaitTimeout:  r.GetDuration(key("readWaitTimeout"), env("readWaitTimeout"), def.ReadWaitTimeout),
	}

	if !r.Has(key("databaseType"), env("databaseType")) {
		return cfg, logerr.Errorf(logerr.KindConfig, "config.load", "logger %q: databaseType is required", section)
	}
	dt, err := model.ParseDatabaseType(r.GetString(key("databaseType"), env("databaseType"), ""))
	if err != nil {
		return cfg, err
	}
	cfg.DatabaseType = dt

	level, err := model.ParseLevel(r.GetString(key("minLogLevel"), env("minLogLevel"), model.Trace.String()))
	if err != nil {
		return cfg, logerr.New(logerr.KindConfig, "config.load", err)
	}
	cfg.MinLogLevel = level
	return cfg, nil
}

// loadConfigFile normalises INI and YAML into {"loggers": {section: {key: value}}}
// and returns the section names in file order (YAML: sorted).
func loadConfigFile(configPath string) (map[string]interface{}, []string, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, nil, logerr.Errorf(logerr.KindConfig, "config.load", "config file does not exist: %s", configPath)
	}

	switch strings.ToLower(filepath.Ext(configPath)) {
	case ".ini":
		return loadINI(configPath)
	case ".yaml", ".yml":
		return loadYAML(configPath)
	default:
		return nil, nil, logerr.Errorf(logerr.KindConfig, "config.load", "unrecognised config format %q", filepath.Ext(configPath))
	}
}

func loadINI(path string) (map[string]interface{}, []string, error) {
	file, err := ini.Load(path)
	if err != nil {
		return nil, nil, logerr.New(logerr.KindConfig, "config.load", fmt.Errorf("failed to load %s: %w", path, err))
	}

	loggers := map[string]interface{}{}
	var order []string
	for _, section := range file.Sections() {
		if section.Name() == ini.DefaultSection {
			continue
		}
		values := map[string]interface{}{}
		for _, k := range section.Keys() {
			values[k.Name()] = k.String()
		}
		loggers[section.Name()] = values
		order = append(order, section.Name())
	}
	return map[string]interface{}{loggersKey: loggers}, order, nil
}

func loadYAML(path string) (map[string]interface{}, []string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, logerr.New(logerr.KindConfig, "config.load", fmt.Errorf("failed to read config file: %w", err))
	}

	var doc map[string]interface{}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, nil, logerr.New(logerr.KindConfig, "config.load", fmt.Errorf("failed to parse config file: %w", err))
	}
	loggers, ok := doc[loggersKey].(map[string]interface{})
	if !ok {
		return nil, nil, logerr.Errorf(logerr.KindConfig, "config.load", "%s has no %q mapping", path, loggersKey)
	}

	order := make([]string, 0, len(loggers))
	for name := range loggers {
		order = append(order, name)
	}
	sort.Strings(order)
	return doc, order, nil
}
