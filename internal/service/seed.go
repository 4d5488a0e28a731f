package service

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed seed.yaml
var seedYAML []byte

type seedPlan struct {
	Title           string `yaml:"title"`
	Description     string `yaml:"description"`
	Currency        string `yaml:"currency"`
	PriceMinorUnits int    `yaml:"price_minor_units"`
	Credits         int    `yaml:"credits"`
}

type seedData struct {
	Content  map[string]string `yaml:"content"`
	Plans    []seedPlan        `yaml:"plans"`
	Activity struct {
		Names  []string `yaml:"names"`
		Cities []string `yaml:"cities"`
	} `yaml:"activity"`
}

func loadSeed() (*seedData, error) {
	var s seedData
	if err := yaml.Unmarshal(seedYAML, &s); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	return &s, nil
}
