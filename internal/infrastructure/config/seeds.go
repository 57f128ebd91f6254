package config

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed seeds.yaml
var seedsYAML []byte

// SeedGoal 首启播种的目标
type SeedGoal struct {
	Name        string  `yaml:"name"`
	Type        string  `yaml:"type"`
	Target      float64 `yaml:"target"`
	Description string  `yaml:"description"`
}

// SeedValue 首启播种的价值观
type SeedValue struct {
	Statement string  `yaml:"statement"`
	Priority  float64 `yaml:"priority"`
}

// Seeds 首启播种数据
type Seeds struct {
	Goals  []SeedGoal  `yaml:"goals"`
	Values []SeedValue `yaml:"values"`
}

// LoadSeeds 解析内嵌的播种数据
func LoadSeeds() (*Seeds, error) {
	var seeds Seeds
	if err := yaml.Unmarshal(seedsYAML, &seeds); err != nil {
		return nil, fmt.Errorf("parse seeds: %w", err)
	}
	return &seeds, nil
}
