package cmd

import (
	"github.com/spf13/viper"
)

// Config describes the CLI configuration.
type Config struct {
	// bug in viper? Need to keep names of fields the same as the serialized names..
	Backend     string `json:"backend" yaml:"backend"`         // Storage backend: local, objlocal, s3, gcs
	Root        string `json:"root" yaml:"root"`               // Directory holding repositories (local, objlocal)
	Bucket      string `json:"bucket" yaml:"bucket"`           // Bucket holding repositories (s3, gcs)
	Prefix      string `json:"prefix" yaml:"prefix"`           // Key prefix above all repositories (object backends)
	Region      string `json:"region" yaml:"region"`           // AWS region (s3)
	Endpoint    string `json:"endpoint" yaml:"endpoint"`       // Custom S3 endpoint, e.g. minio
	Credential  string `json:"credential" yaml:"credential"`   // Credentials to use for GCS
	LogLevel    string `json:"loglevel" yaml:"loglevel"`       // Log level: debug, info, warn, error
	MaxPushSize string `json:"maxpushsize" yaml:"maxpushsize"` // Byte budget per pushed payload, e.g. 512MiB
}

func newConfig() (*Config, error) {
	var config Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return nil, err
	}
	return &config, nil
}
