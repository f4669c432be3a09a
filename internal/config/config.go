package config

import (
	"os"
	"strconv"

	"github.com/go-yaml/yaml"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

type Config struct {
	Server Server `yaml:"server"`
	Auth   Auth   `yaml:"auth"`
	SMTP   SMTP   `yaml:"smtp"`
}

type Server struct {
	Listen        string `yaml:"listen"`
	PostgresDsn   string `yaml:"postgresDsn"`
	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`
	RedisDB       int    `yaml:"redisDB"`
	MemcachedAddr string `yaml:"memcachedAddr"`
	EnableTrace   bool   `yaml:"enableTrace"`
	TraceEndpoint string `yaml:"traceEndpoint"`
	MediaDir      string `yaml:"mediaDir"`
	MediaBaseURL  string `yaml:"mediaBaseURL"`
	ClassifierURL string `yaml:"classifierURL"`
}

type Auth struct {
	JWTSecret string `yaml:"jwtSecret"`
	Issuer    string `yaml:"issuer"`
}

type SMTP struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

func Load(path string) (Config, error) {
	// a missing .env is fine
	_ = godotenv.Load()

	file, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer file.Close()

	config := defaults()
	err = yaml.NewDecoder(file).Decode(&config)
	if err != nil {
		return Config{}, errors.Wrap(err, "decode config")
	}

	err = config.applyEnv()
	if err != nil {
		return Config{}, err
	}

	if config.Auth.JWTSecret == "" {
		return Config{}, errors.New("auth.jwtSecret is required")
	}

	return config, nil
}

func defaults() Config {
	return Config{
		Server: Server{
			Listen:       ":8000",
			RedisAddr:    "localhost:6379",
			MediaDir:     "media",
			MediaBaseURL: "/media",
		},
		Auth: Auth{
			Issuer: "cityflow",
		},
		SMTP: SMTP{
			Port: 587,
		},
	}
}

func (c *Config) applyEnv() error {
	overrides := map[string]*string{
		"CITYFLOW_LISTEN":         &c.Server.Listen,
		"CITYFLOW_POSTGRES_DSN":   &c.Server.PostgresDsn,
		"CITYFLOW_REDIS_ADDR":     &c.Server.RedisAddr,
		"CITYFLOW_REDIS_PASSWORD": &c.Server.RedisPassword,
		"CITYFLOW_MEMCACHED_ADDR": &c.Server.MemcachedAddr,
		"CITYFLOW_CLASSIFIER_URL": &c.Server.ClassifierURL,
		"CITYFLOW_JWT_SECRET":     &c.Auth.JWTSecret,
		"CITYFLOW_SMTP_HOST":      &c.SMTP.Host,
		"CITYFLOW_SMTP_USERNAME":  &c.SMTP.Username,
		"CITYFLOW_SMTP_PASSWORD":  &c.SMTP.Password,
		"CITYFLOW_SMTP_FROM":      &c.SMTP.From,
	}
	for key, target := range overrides {
		if v, ok := os.LookupEnv(key); ok {
			*target = v
		}
	}

	if v, ok := os.LookupEnv("CITYFLOW_SMTP_PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrap(err, "CITYFLOW_SMTP_PORT")
		}
		c.SMTP.Port = port
	}
	return nil
}
