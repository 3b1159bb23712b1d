package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Game     GameConfig     `mapstructure:"game"`
	Central  CentralConfig  `mapstructure:"central"`
	Security SecurityConfig `mapstructure:"security"`
}

const (
	RoleAll     = "all"
	RoleChannel = "channel"
	RoleCentral = "central"
)

type ServerConfig struct {
	Port      int    `mapstructure:"port"`
	Debug     bool   `mapstructure:"debug"`
	ChannelID int32  `mapstructure:"channel_id"`
	Role      string `mapstructure:"role"` // all | channel | central
}

// HasChannel reports whether this process serves player connections.
func (s ServerConfig) HasChannel() bool { return s.Role == RoleAll || s.Role == RoleChannel }

// HasCentral reports whether this process owns the expedition registry.
func (s ServerConfig) HasCentral() bool { return s.Role == RoleAll || s.Role == RoleCentral }

type DatabaseConfig struct {
	Mode         string        `mapstructure:"mode"` // sqlite | mysql
	SQLitePath   string        `mapstructure:"sqlite_path"`
	MySQLDSN     string        `mapstructure:"mysql_dsn"`
	MySQLMaxOpen int           `mapstructure:"mysql_max_open"`
	MySQLMaxIdle int           `mapstructure:"mysql_max_idle"`
	MySQLMaxLife time.Duration `mapstructure:"mysql_max_life"`
}

type CacheConfig struct {
	RedisAddr       string        `mapstructure:"redis_addr"`
	RedisPassword   string        `mapstructure:"redis_password"`
	RedisDB         int           `mapstructure:"redis_db"`
	LocalGCInterval time.Duration `mapstructure:"local_gc_interval"`
	LocalPubSubBuf  int           `mapstructure:"local_pubsub_buf"`
}

// TaxBracket applies BasisPoints (1/100 of a percent) to any sale of at least Threshold.
type TaxBracket struct {
	Threshold   int32 `mapstructure:"threshold"`
	BasisPoints int32 `mapstructure:"basis_points"`
}

type GameConfig struct {
	DataPath       string        `mapstructure:"data_path"`
	InventorySlots int           `mapstructure:"inventory_slots"`
	ShopDuration   time.Duration `mapstructure:"shop_duration"`
	ShopSlotMax    int           `mapstructure:"shop_slot_max"`
	ShopTax        []TaxBracket  `mapstructure:"shop_tax"`
}

type CentralConfig struct {
	TopicPrefix    string        `mapstructure:"topic_prefix"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

type SecurityConfig struct {
	JWTSecret      string        `mapstructure:"jwt_secret"`
	JWTTTLH        time.Duration `mapstructure:"jwt_ttl_h"`
	RateLimitRPS   float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
	// AllowedOrigins lists the WebSocket origins that are permitted.
	// An empty slice allows all origins (useful for local development only).
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	// AdminIPs may reach /admin. Empty allows any address.
	AdminIPs []string `mapstructure:"admin_ips"`
}

// DefaultShopTax is the hired-merchant tax table used when none is configured.
var DefaultShopTax = []TaxBracket{
	{Threshold: 100_000_000, BasisPoints: 600},
	{Threshold: 25_000_000, BasisPoints: 500},
	{Threshold: 10_000_000, BasisPoints: 400},
	{Threshold: 5_000_000, BasisPoints: 300},
	{Threshold: 1_000_000, BasisPoints: 180},
	{Threshold: 100_000, BasisPoints: 80},
}

// Load reads config from the given YAML file path.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("WORLDSRV")
	v.AutomaticEnv()

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.debug", false)
	v.SetDefault("server.channel_id", 1)
	v.SetDefault("server.role", RoleAll)
	v.SetDefault("database.mode", "sqlite")
	v.SetDefault("database.sqlite_path", "./data/world.db")
	v.SetDefault("database.mysql_max_open", 50)
	v.SetDefault("database.mysql_max_idle", 10)
	v.SetDefault("database.mysql_max_life", "1h")
	v.SetDefault("cache.local_gc_interval", "30s")
	v.SetDefault("cache.local_pubsub_buf", 256)
	v.SetDefault("game.data_path", "./data/game")
	v.SetDefault("game.inventory_slots", 24)
	v.SetDefault("game.shop_duration", "24h")
	v.SetDefault("game.shop_slot_max", 16)
	v.SetDefault("central.topic_prefix", "world")
	v.SetDefault("central.request_timeout", "3s")
	v.SetDefault("security.jwt_ttl_h", "72h")
	v.SetDefault("security.rate_limit_rps", 100)
	v.SetDefault("security.rate_limit_burst", 200)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	if len(cfg.Game.ShopTax) == 0 {
		cfg.Game.ShopTax = DefaultShopTax
	}
	return cfg, nil
}
