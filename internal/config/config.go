package config

import (
  "fmt"
  "os"

  "gopkg.in/yaml.v3"

  "github.com/yungbote/arbor/internal/logger"
  "github.com/yungbote/arbor/internal/utils"
)

type Postgres struct {
  Host     string `yaml:"host"`
  Port     string `yaml:"port"`
  User     string `yaml:"user"`
  Password string `yaml:"password"`
  Name     string `yaml:"name"`
}

func (p Postgres) DSN() string {
  return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", p.User, p.Password, p.Host, p.Port, p.Name)
}

type Tree struct {
  // OrderColumn, when set, sorts siblings by this numeric column before
  // name.
  OrderColumn string `yaml:"order_column"`
  // LockDisabled turns off the advisory lock around path creation.
  LockDisabled bool `yaml:"lock_disabled"`
}

type Config struct {
  Addr     string   `yaml:"addr"`
  Postgres Postgres `yaml:"postgres"`
  Tree     Tree     `yaml:"tree"`
}

// Load builds the service configuration from environment variables, then
// overlays the YAML file at path when one is given.
func Load(path string, log *logger.Logger) (Config, error) {
  cfg := Config{
    Addr: utils.GetEnv("ARBORD_ADDR", ":8080", log),
    Postgres: Postgres{
      Host:     utils.GetEnv("POSTGRES_HOST", "localhost", log),
      Port:     utils.GetEnv("POSTGRES_PORT", "5432", log),
      User:     utils.GetEnv("POSTGRES_USER", "postgres", log),
      Password: utils.GetEnv("POSTGRES_PASSWORD", "", log),
      Name:     utils.GetEnv("POSTGRES_NAME", "arbor", log),
    },
  }

  if path == "" {
    return cfg, nil
  }

  raw, err := os.ReadFile(path)
  if err != nil {
    return Config{}, fmt.Errorf("read config file: %w", err)
  }
  if err := yaml.Unmarshal(raw, &cfg); err != nil {
    return Config{}, fmt.Errorf("parse config file: %w", err)
  }
  return cfg, nil
}
