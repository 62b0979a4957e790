package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// Environ returns the process environment after loading the given dotenv
// files. Missing files are ignored; variables already present in the process
// environment win over file values.
func Environ(dotenvPaths ...string) ([]string, error) {
	for _, path := range dotenvPaths {
		if path == "" {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("load dotenv %s: %w", path, err)
		}
	}
	return os.Environ(), nil
}

// LoadFile resolves configuration from an optional YAML file plus the
// environment. An empty or missing path means environment only.
func LoadFile(path string, environ []string) (*Config, error) {
	if path == "" {
		return Load(nil, environ)
	}
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Load(nil, environ)
		}
		return nil, fmt.Errorf("open config file: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()
	return Load(file, environ)
}
