package config

import (
	"fmt"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"os"
	"strings"
	"sync"
	"time"
)

type Config struct {
	Registry       Registry
	API            API
	Log            Log
	DB             DB
	Network        Network
	Archive        Archive
	NetworkEnabled bool
	APIEnabled     bool
	lock           *sync.Mutex
	updates        []chan *Config
}

// GetUpdates returns a channel that receives the current config right away
// and again after every change of the config file.
func (c *Config) GetUpdates() chan *Config {
	ch := make(chan *Config, 1)
	c.lock.Lock()
	c.updates = append(c.updates, ch)
	c.lock.Unlock()
	ch <- c
	return ch
}

func (c *Config) notify() {
	c.lock.Lock()
	defer c.lock.Unlock()
	for _, ch := range c.updates {
		select {
		case ch <- c:
		default:
		}
	}
}

type Registry struct {
	OwnershipWindow int64  `yaml:"OwnershipWindow"` // seconds
	Store           string `yaml:"Store"`           // memory or bolt
	EventQueue      int    `yaml:"EventQueue"`
}

func (r Registry) Window() time.Duration {
	if r.OwnershipWindow <= 0 {
		return DefaultOwnershipWindow
	}
	return time.Duration(r.OwnershipWindow) * time.Second
}

const DefaultOwnershipWindow = 31536000 * time.Second

type API struct {
	Host         string         `yaml:"Host"`
	Port         int            `yaml:"Port"`
	CORS         CORS           `yaml:"CORS"`
	AccessTokens []AccessTokens `yaml:"AccessTokens"`
	Uploads      Uploads        `yaml:"Uploads"`
}

type CORS struct {
	AllowedDomains []string `yaml:"AllowedDomains"`
}

type Uploads struct {
	Enabled bool  `yaml:"Enabled"`
	MaxSize int64 `yaml:"MaxSize"`
}

// AccessTokens maps an API token to the identity its requests act as.
type AccessTokens struct {
	Name    string `yaml:"name"`
	Token   string `yaml:"token"`
	Address string `yaml:"address"`
}

type Log struct {
	File          string `yaml:"File"`
	Format        string `yaml:"Format"`
	Level         string `yaml:"Level"`
	Elasticsearch string `yaml:"Elasticsearch"`
}

type DB struct {
	Bolt  string `yaml:"Bolt"`
	Storm string `yaml:"Storm"`
}

type Network struct {
	IPFS         string   `yaml:"IPFS"`
	Topic        string   `yaml:"Topic"`
	Listen       []string `yaml:"Listen"`
	TrustedPeers []string `yaml:"TrustedPeers"`
}

type Archive struct {
	S3       S3    `yaml:"s3"`
	Interval int64 `yaml:"Interval"` // seconds, 0 disables periodic snapshots
}

type S3 struct {
	Region     string `yaml:"Region"`
	Bucket     string `yaml:"Bucket"`
	Secret     string `yaml:"Secret"`
	Key        string `yaml:"Key"`
	Endpoint   string `yaml:"Endpoint"`
	DisableSSL bool   `yaml:"DisableSSL"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("Registry.OwnershipWindow", int64(DefaultOwnershipWindow/time.Second))
	v.SetDefault("Registry.Store", "memory")
	v.SetDefault("Registry.EventQueue", 1024)
	v.SetDefault("API.Host", "0.0.0.0")
	v.SetDefault("API.Port", 5050)
	v.SetDefault("API.Uploads.MaxSize", 32<<20)
	v.SetDefault("Log.Format", "text")
	v.SetDefault("Log.Level", "info")
	v.SetDefault("DB.Bolt", "geopin.db")
	v.SetDefault("DB.Storm", "geopin-journal.db")
	v.SetDefault("Network.Topic", "GEOPIN")
	v.SetDefault("Network.Listen", []string{"/ip4/0.0.0.0/tcp/4005", "/ip4/0.0.0.0/udp/4005/quic"})
	v.SetDefault("APIEnabled", true)
}

func NewConfig() *Config {
	v := viper.GetViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/geopin/")
	v.AddConfigPath("$HOME/.geopin")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.SetEnvPrefix("GEOPIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	err := v.ReadInConfig() // Find and read the config file
	if err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			panic(fmt.Errorf("Fatal error config file: %s \n", err))
		}
		fmt.Fprintln(os.Stderr, "no config file found, using defaults")
	}

	c, err := Load(v)
	if err != nil {
		fmt.Fprintf(os.Stderr, "unable to decode into struct, %v\n", err)
		os.Exit(1)
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		fmt.Println("Config file changed:", e.Name)
		c.lock.Lock()
		err := v.Unmarshal(c)
		c.lock.Unlock()
		if err != nil {
			fmt.Fprintf(os.Stderr, "unable to decode into struct, %v\n", err)
			return
		}
		c.notify()
	})
	return c
}

// Load decodes a config from an already populated viper instance.
func Load(v *viper.Viper) (*Config, error) {
	c := Config{}
	c.lock = &sync.Mutex{}
	c.updates = []chan *Config{}
	if err := v.Unmarshal(&c); err != nil {
		return nil, err
	}
	return &c, nil
}
