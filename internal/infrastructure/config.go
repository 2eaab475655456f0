package infra

import (
	"encoding/json"
	"fmt"
	"log"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix env prefix for viper
const EnvPrefix = "TRILHA"

// runtime environments
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// storage backends
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendMySQL    = "mysql"
)

// AppConfig App option object
type AppConfig struct {
	AppID          string        `mapstructure:"app_id" json:"app_id" yaml:"app_id" validate:"required"`            // Application ID
	Host           string        `mapstructure:"host" json:"host" yaml:"host"`                                      // bind host address
	Port           int           `mapstructure:"port" json:"port" yaml:"port"`                                      // bind listen port
	Env            string        `mapstructure:"env" json:"env" yaml:"env" validate:"oneof=development production"` // runtime environment
	Locale         string        `mapstructure:"locale" json:"locale" yaml:"locale" validate:"oneof=en pt_BR"`      // validation message language
	SessionTimeout time.Duration `mapstructure:"session_timeout" json:"session_timeout" yaml:"session_timeout"`
	SessionRefresh time.Duration `mapstructure:"session_refresh" json:"session_refresh" yaml:"session_refresh"` // session refresh threshold
	Storage        struct {
		Backend string `mapstructure:"backend" json:"backend" yaml:"backend" validate:"oneof=memory file redis postgres mysql"`
		Key     string `mapstructure:"key" json:"key" yaml:"key" validate:"required"`       // key holding the catalogue
		FileDir string `mapstructure:"file_dir" json:"file_dir" yaml:"file_dir"`          // data directory of the file backend
	} `mapstructure:"storage" json:"storage" yaml:"storage"`
	Database struct {
		Host     string `mapstructure:"host" json:"host" yaml:"host"`                                                // server host
		MaxConn  int32  `mapstructure:"maxconn" json:"maxconn" yaml:"maxconn"`                                       // maximum opening connections number
		Password string `mapstructure:"password" json:"-" yaml:"password"`                                           // db password
		Port     int    `mapstructure:"port" json:"port" yaml:"port"`                                                // server port
		Protocol string `mapstructure:"protocol" json:"protocol" yaml:"protocol" validate:"omitempty,oneof=tcp udp"` // connection protocol, eg.tcp
		Query    string `mapstructure:"query" json:"query" yaml:"query"`                                             // DSN query parameter
		Schema   string `mapstructure:"schema" json:"schema" yaml:"schema"`                                          // use schema
		User     string `mapstructure:"username" json:"username" yaml:"username"`                                    // db username
	} `mapstructure:"database" json:"database" yaml:"database"`
	Logging struct {
		FilePath string `mapstructure:"file_path" json:"file_path" yaml:"file_path"`                            // log file path
		Level    string `mapstructure:"level" json:"level" yaml:"level" validate:"oneof=debug info warn error"` // global logging level
	} `mapstructure:"logging" json:"logging" yaml:"logging"`
	Security struct {
		IDRandomDigits    int           `mapstructure:"id_random_digits" json:"id_random_digits" yaml:"id_random_digits" validate:"min=1,max=3"` // random suffix digits of generated ids
		JWTMethod         string        `mapstructure:"jwt_method" json:"jwt_method" yaml:"jwt_method" validate:"oneof=HS256 HS384 HS512"`
		JWTSecret         string        `mapstructure:"jwt_secret" json:"-" yaml:"jwt_secret" validate:"required"`
		TokenName         string        `mapstructure:"token_name" json:"token_name" yaml:"token_name" validate:"required"`                      // jwt token name set in cookie
		AdminUser         string        `mapstructure:"admin_user" json:"admin_user" yaml:"admin_user" validate:"required"`
		AdminPasswordHash string        `mapstructure:"admin_password_hash" json:"-" yaml:"admin_password_hash" validate:"required"`             // bcrypt hash
		MaxLoginAttempts  int           `mapstructure:"max_login_attempts" json:"max_login_attempts" yaml:"max_login_attempts"`                  // maximum login attempts
		RetryTimeout      time.Duration `mapstructure:"retry_timeout" json:"retry_timeout" yaml:"retry_timeout"`                                 // retry wait
	} `mapstructure:"security" json:"security" yaml:"security"`
	KVStore struct {
		Host     string `mapstructure:"host" json:"host" yaml:"host"`         // bind host address
		Port     int    `mapstructure:"port" json:"port" yaml:"port"`         // bind listen port
		Password string `mapstructure:"password" json:"-" yaml:"password"`    // redis AUTH password
		DB       int    `mapstructure:"db" json:"db" yaml:"db"`               // redis database index
	} `mapstructure:"kv" json:"kv" yaml:"kv"`
	DevOP struct {
		APM bool `mapstructure:"apm" json:"apm" yaml:"apm"`
	} `mapstructure:"devop" json:"devop" yaml:"devop"`
}

// InitConfig init app config using viper
func InitConfig() (*AppConfig, error) {
	registerFlags(pflag.CommandLine)
	pflag.Parse()
	return loadConfig(viper.New(), pflag.CommandLine)
}

func registerFlags(fs *pflag.FlagSet) {
	// app
	fs.String("host", "", "binding address")
	fs.String("app_id", "trilha", "application identifier")
	fs.String("env", "development", "runtime environment, can be 'development' or 'production'")
	fs.String("locale", "pt_BR", "language of validation messages, can be 'en' or 'pt_BR'")
	fs.Int("port", 8081, "listening port")
	fs.Duration("session_timeout", 12*time.Hour, "JWT lifetime(m, s and h units are supported), eg.30m")
	fs.Duration("session_refresh", 30*time.Minute, "session refresh threshold(m, s and h units are supported), eg.5m")

	// storage
	fs.String("storage.backend", BackendFile, "catalogue backend: memory, file, redis, postgres or mysql")
	fs.String("storage.key", "trilha:catalogue", "key under which the catalogue is stored")
	fs.String("storage.file_dir", "data", "data directory used by the file backend")

	// database
	fs.String("database.host", "127.0.0.1", "database host")
	fs.Int("database.port", 5432, "database server port")
	fs.String("database.protocol", "", "connection protocol(if mysql is used, this flag must be set), eg.tcp")
	fs.String("database.username", "", "database username")
	fs.String("database.password", "", "database password")
	fs.String("database.schema", "", "database schema")
	fs.String("database.query", "", "additional DSN query parameters('?' is auto prefixed)")
	fs.Int32("database.maxconn", 10, "max connection count")

	// logging
	fs.String("logging.level", "info", "logging level")
	fs.String("logging.file_path", "", "log to file")

	// security
	fs.Int("security.id_random_digits", 3, "random digits appended to the millisecond part of generated ids (1-3)")
	fs.String("security.jwt_method", "HS256", "hash algorithm used for JWT auth")
	fs.String("security.jwt_secret", "", "JWT secret (required)")
	fs.String("security.token_name", "trilha_session", "cookie name to store the token")
	fs.String("security.admin_user", "admin", "administrator username")
	fs.String("security.admin_password_hash", "", "bcrypt hash of the administrator password (required)")
	fs.Int("security.max_login_attempts", 5, "maximum failed sign in attempts before waiting retry_timeout, 0 disables")
	fs.Duration("security.retry_timeout", 15*time.Minute, "retry wait")

	// kv storage
	fs.String("kv.host", "127.0.0.1", "redis host")
	fs.Int("kv.port", 6379, "redis server port")
	fs.String("kv.password", "", "redis server password")
	fs.Int("kv.db", 0, "redis database index")

	// DevOp
	fs.Bool("devop.apm", false, "enable apm metrics")
}

func loadConfig(v *viper.Viper, fs *pflag.FlagSet) (*AppConfig, error) {
	v.BindPFlags(fs)
	v.AutomaticEnv()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	var config = new(AppConfig)
	if err := v.Unmarshal(config); err != nil {
		return nil, err
	}
	if err := validateConfig(config); err != nil {
		return nil, err
	}
	if config.Logging.Level == "debug" {
		if configJSON, err := json.MarshalIndent(config, "", "  "); err == nil {
			log.Printf("App config: %s\n", string(configJSON))
		}
	}
	return config, nil
}

func validateConfig(config *AppConfig) error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return fld.Tag.Get("mapstructure")
	})
	err := validate.Struct(config)
	if err == nil {
		return validateBackend(config)
	}
	if _, ok := err.(*validator.InvalidValidationError); ok {
		return fmt.Errorf("failed to validate config: %w", err)
	}

	var msg []string
	for _, field := range err.(validator.ValidationErrors) {
		namespace := field.Namespace()
		fieldName := namespace[strings.IndexByte(namespace, '.')+1:] // trim top level namespace
		switch field.Tag() {
		case "required":
			msg = append(msg, fmt.Sprintf("%s is required", fieldName))
		case "oneof":
			msg = append(msg, fmt.Sprintf("%s must be one of (%s)", fieldName, field.Param()))
		case "min", "max":
			msg = append(msg, fmt.Sprintf("%s must be within 1 and 3", fieldName))
		default:
			msg = append(msg, fmt.Sprintf("%s is invalid", fieldName))
		}
	}
	return fmt.Errorf("failed to validate config: \n%s", strings.Join(msg, "\n"))
}

// validateBackend check the settings the chosen storage backend depends on
func validateBackend(config *AppConfig) error {
	var missing []string
	switch config.Storage.Backend {
	case BackendFile:
		if config.Storage.FileDir == "" {
			missing = append(missing, "storage.file_dir")
		}
	case BackendRedis:
		if config.KVStore.Host == "" {
			missing = append(missing, "kv.host")
		}
	case BackendPostgres, BackendMySQL:
		if config.Database.Host == "" {
			missing = append(missing, "database.host")
		}
		if config.Database.User == "" {
			missing = append(missing, "database.username")
		}
		if config.Database.Schema == "" {
			missing = append(missing, "database.schema")
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("failed to validate config: \n%s is required by the %s backend",
			strings.Join(missing, ", "), config.Storage.Backend)
	}
	return nil
}
