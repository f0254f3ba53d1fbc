package profile

import (
	"fmt"

	"gopkg.in/ini.v1"

	"github.com/kanna-karuppasamy/smart-meter-bill-estimator/internal/models"
)

const sectionName = "profile"

// Load reads the household profile from the [profile] section of an INI
// file. An empty path yields an empty profile.
func Load(path string) (models.Profile, error) {
	if path == "" {
		return models.Profile{}, nil
	}

	cfg, err := ini.Load(path)
	if err != nil {
		return models.Profile{}, fmt.Errorf("load profile %s: %w", path, err)
	}
	return fromFile(cfg)
}

// Parse reads a profile from INI text
func Parse(data []byte) (models.Profile, error) {
	cfg, err := ini.Load(data)
	if err != nil {
		return models.Profile{}, fmt.Errorf("parse profile: %w", err)
	}
	return fromFile(cfg)
}

func fromFile(cfg *ini.File) (models.Profile, error) {
	section, err := cfg.GetSection(sectionName)
	if err != nil {
		return models.Profile{}, fmt.Errorf("profile section [%s] not found", sectionName)
	}

	return models.Profile{
		Name:          section.Key("name").String(),
		State:         section.Key("state").String(),
		Board:         section.Key("board").String(),
		ServiceNumber: section.Key("service_number").String(),
		Region:        section.Key("region").String(),
	}, nil
}
