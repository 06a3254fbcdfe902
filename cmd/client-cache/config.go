package main

import (
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port     int    `yaml:"port"`
	Origin   string `yaml:"origin"`
	Store    string `yaml:"store"`
	DBPath   string `yaml:"dbPath"`
	Insecure bool   `yaml:"insecure"`
}

func getConfig(filename string) (Config, error) {
	var config Config
	configBytes, err := os.ReadFile(filename)
	if err != nil {
		return config, err
	}
	err = yaml.Unmarshal(configBytes, &config)
	return config, err
}
