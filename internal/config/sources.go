package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed sources.yaml
var defaultSources []byte

// Sources is the reference data each source adapter needs: endpoints,
// station and region mappings, and indicator definitions.
type Sources struct {
	MET    METSource    `yaml:"met"`
	Pollen PollenSource `yaml:"pollen"`
	FHI    FHISource    `yaml:"fhi"`
	SSB    SSBSource    `yaml:"ssb"`
	Trends TrendsSource `yaml:"trends"`
}

type METSource struct {
	BaseURL   string            `yaml:"base_url"`
	UserAgent string            `yaml:"user_agent"`
	Elements  []string          `yaml:"elements"`
	Stations  map[string]string `yaml:"stations"`

	ColdShockDropC       float64 `yaml:"cold_shock_drop_c"`
	FrontPressureDropHPa float64 `yaml:"front_pressure_drop_hpa"`
	FrontWindShiftDeg    float64 `yaml:"front_wind_shift_deg"`
}

type PollenRegion struct {
	Name string  `yaml:"name"`
	Lat  float64 `yaml:"lat"`
	Lon  float64 `yaml:"lon"`
}

type PollenSource struct {
	BaseURL  string         `yaml:"base_url"`
	Language string         `yaml:"language"`
	Regions  []PollenRegion `yaml:"regions"`
}

type FHISource struct {
	BaseURL     string            `yaml:"base_url"`
	Source      string            `yaml:"source"`
	Table       int               `yaml:"table"`
	MaxRowCount int               `yaml:"max_row_count"`
	Regions     map[string]string `yaml:"regions"`
}

// SSBIndicator names the cell whose non-time dimension codes equal Match.
type SSBIndicator struct {
	Name  string            `yaml:"name"`
	Match map[string]string `yaml:"match"`
}

type SSBTable struct {
	ID            string              `yaml:"id"`
	TimeDimension string              `yaml:"time_dimension"`
	Selections    map[string][]string `yaml:"selections"`
	Indicators    []SSBIndicator      `yaml:"indicators"`
}

type SSBSource struct {
	BaseURL string     `yaml:"base_url"`
	Region  string     `yaml:"region"`
	Tables  []SSBTable `yaml:"tables"`
}

type TrendsRegion struct {
	Code string `yaml:"code"`
	Name string `yaml:"name"`
}

type TrendsSource struct {
	BaseURL string         `yaml:"base_url"`
	Terms   []string       `yaml:"terms"`
	Regions []TrendsRegion `yaml:"regions"`
	YellowZ float64        `yaml:"yellow_z"`
	RedZ    float64        `yaml:"red_z"`
}

// LoadSources parses path, or the embedded defaults when path is empty.
func LoadSources(path string) (*Sources, error) {
	raw := defaultSources
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read SOURCES_FILE: %w", err)
		}
		raw = b
	}
	return ParseSources(raw)
}

// ParseSources decodes and validates a sources document.
func ParseSources(raw []byte) (*Sources, error) {
	var s Sources
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("parse sources: %w", err)
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Sources) validate() error {
	var errs []error
	if s.MET.BaseURL == "" || len(s.MET.Elements) == 0 {
		errs = append(errs, errors.New("sources: met.base_url and met.elements are required"))
	}
	if s.Pollen.BaseURL == "" {
		errs = append(errs, errors.New("sources: pollen.base_url is required"))
	}
	if s.FHI.BaseURL == "" || s.FHI.Source == "" || s.FHI.Table == 0 {
		errs = append(errs, errors.New("sources: fhi.base_url, fhi.source and fhi.table are required"))
	}
	if s.SSB.BaseURL == "" {
		errs = append(errs, errors.New("sources: ssb.base_url is required"))
	}
	for _, t := range s.SSB.Tables {
		if t.ID == "" || t.TimeDimension == "" {
			errs = append(errs, fmt.Errorf("sources: ssb table %q needs id and time_dimension", t.ID))
		}
	}
	if s.Trends.BaseURL == "" {
		errs = append(errs, errors.New("sources: trends.base_url is required"))
	}
	if s.Trends.RedZ < s.Trends.YellowZ {
		errs = append(errs, errors.New("sources: trends.red_z must not be below yellow_z"))
	}
	return errors.Join(errs...)
}
