package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v2"
)

type DBConfig struct {
	Type    string `yaml:"type" json:"type"`
	Host    string `yaml:"host" json:"host"`
	Port    int    `yaml:"port" json:"port"`
	Name    string `yaml:"name" json:"name"`
	User    string `yaml:"user" json:"user"`
	Passwd  string `yaml:"passwd" json:"passwd"`
	MaxConn int    `yaml:"max_conn" json:"max_conn"`
	IdleConn int   `yaml:"idle_conn" json:"idle_conn"`
	Debug   bool   `yaml:"debug" json:"debug"`
}

type SysConfig struct {
	Appid    string `yaml:"appid" json:"appid"`
	Location string `yaml:"location" json:"location"`
	Workdir  string `yaml:"workdir" json:"workdir"`
	Debug    bool   `yaml:"debug" json:"debug"`
}

type WebConfig struct {
	Host string `yaml:"host" json:"host"`
	Port int    `yaml:"port" json:"port"`
}

type LogConfig struct {
	Mode       string `yaml:"mode" json:"mode"`
	FileEnable bool   `yaml:"file_enable" json:"file_enable"`
	Filename   string `yaml:"filename" json:"filename"`
}

// WhatsappConfig holds engine defaults that are not runtime settings.
type WhatsappConfig struct {
	CountryPrefix   string `yaml:"country_prefix" json:"country_prefix"`
	DefaultInterval int    `yaml:"default_interval" json:"default_interval"`
}

type AppConfig struct {
	System   SysConfig      `yaml:"system" json:"system"`
	Web      WebConfig      `yaml:"web" json:"web"`
	Database DBConfig       `yaml:"database" json:"database"`
	Whatsapp WhatsappConfig `yaml:"whatsapp" json:"whatsapp"`
	Logger   LogConfig      `yaml:"logger" json:"logger"`
}

func (c *AppConfig) GetLogDir() string {
	return filepath.Join(c.System.Workdir, "logs")
}

func (c *AppConfig) GetDataDir() string {
	return filepath.Join(c.System.Workdir, "data")
}

func (c *AppConfig) GetImageDir() string {
	return filepath.Join(c.System.Workdir, "images")
}

func (c *AppConfig) initDirs() {
	_ = os.MkdirAll(filepath.Join(c.System.Workdir, "logs"), 0755)
	_ = os.MkdirAll(filepath.Join(c.System.Workdir, "data"), 0755)
	_ = os.MkdirAll(filepath.Join(c.System.Workdir, "images"), 0755)
	_ = os.MkdirAll(filepath.Join(c.System.Workdir, "private"), 0755)
}

var DefaultAppConfig = &AppConfig{
	System: SysConfig{
		Appid:    "Wablast",
		Location: "Asia/Jakarta",
		Workdir:  "/var/wablast",
		Debug:    true,
	},
	Web: WebConfig{
		Host: "0.0.0.0",
		Port: 1989,
	},
	Database: DBConfig{
		Type:     "postgres",
		Host:     "127.0.0.1",
		Port:     5432,
		Name:     "wablast_v1",
		User:     "postgres",
		Passwd:   "myroot",
		MaxConn:  100,
		IdleConn: 10,
		Debug:    false,
	},
	Whatsapp: WhatsappConfig{
		CountryPrefix:   "62",
		DefaultInterval: 10,
	},
	Logger: LogConfig{
		Mode:       "development",
		FileEnable: true,
		Filename:   "/var/wablast/wablast.log",
	},
}

func setEnvValue(name string, f func(v string)) {
	var evalue = os.Getenv(name)
	if evalue != "" {
		f(evalue)
	}
}

func setEnvInt64Value(name string, f func(v int64)) {
	var evalue = os.Getenv(name)
	if evalue == "" {
		return
	}
	var p int64
	if _, err := fmt.Sscan(evalue, &p); err == nil {
		f(p)
	}
}

func setEnvBoolValue(name string, f func(v bool)) {
	var evalue = os.Getenv(name)
	if evalue != "" {
		f(evalue == "true" || evalue == "1" || evalue == "on")
	}
}

// LoadConfig loads yaml configuration from cfile; missing file falls back to
// DefaultAppConfig. Environment variables override file values.
func LoadConfig(cfile string) *AppConfig {
	// Ignore the file if it does not exist
	cfg := new(AppConfig)
	if cfile != "" && FileExists(cfile) {
		data, err := os.ReadFile(cfile)
		if err != nil {
			panic(err)
		}
		err = yaml.Unmarshal(data, cfg)
		if err != nil {
			panic(err)
		}
	} else {
		cfg = DefaultAppConfig
	}

	setEnvValue("WABLAST_SYSTEM_WORKDIR", func(v string) { cfg.System.Workdir = v })
	setEnvValue("WABLAST_SYSTEM_LOCATION", func(v string) { cfg.System.Location = v })
	setEnvBoolValue("WABLAST_SYSTEM_DEBUG", func(v bool) { cfg.System.Debug = v })

	setEnvValue("WABLAST_WEB_HOST", func(v string) { cfg.Web.Host = v })
	setEnvInt64Value("WABLAST_WEB_PORT", func(v int64) { cfg.Web.Port = int(v) })

	setEnvValue("WABLAST_DB_TYPE", func(v string) { cfg.Database.Type = v })
	setEnvValue("WABLAST_DB_HOST", func(v string) { cfg.Database.Host = v })
	setEnvValue("WABLAST_DB_NAME", func(v string) { cfg.Database.Name = v })
	setEnvValue("WABLAST_DB_USER", func(v string) { cfg.Database.User = v })
	setEnvValue("WABLAST_DB_PWD", func(v string) { cfg.Database.Passwd = v })
	setEnvInt64Value("WABLAST_DB_PORT", func(v int64) { cfg.Database.Port = int(v) })
	setEnvBoolValue("WABLAST_DB_DEBUG", func(v bool) { cfg.Database.Debug = v })

	setEnvValue("WABLAST_WA_COUNTRY_PREFIX", func(v string) { cfg.Whatsapp.CountryPrefix = v })
	setEnvInt64Value("WABLAST_WA_DEFAULT_INTERVAL", func(v int64) { cfg.Whatsapp.DefaultInterval = int(v) })

	setEnvValue("WABLAST_LOGGER_MODE", func(v string) { cfg.Logger.Mode = v })
	setEnvBoolValue("WABLAST_LOGGER_FILE_ENABLE", func(v bool) { cfg.Logger.FileEnable = v })

	cfg.initDirs()

	return cfg
}

func FileExists(filename string) bool {
	info, err := os.Stat(filename)
	if os.IsNotExist(err) {
		return false
	}
	return !info.IsDir()
}
