package prompt

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	ErrInvalidRoomType = errors.New("invalid room type")
	ErrUnknownStyle    = errors.New("unknown style")
)

//go:embed catalog.yaml
var catalogYAML []byte

type RoomType struct {
	ID     string `yaml:"id"`
	Label  string `yaml:"label"`
	Phrase string `yaml:"phrase"`
}

type Style struct {
	ID     string `yaml:"id"`
	Label  string `yaml:"label"`
	Prompt string `yaml:"prompt"`
}

type Catalog struct {
	Rooms  []RoomType `yaml:"rooms"`
	Styles []Style    `yaml:"styles"`
}

// LoadCatalog parses the embedded room and style catalog.
func LoadCatalog() (*Catalog, error) {
	return ParseCatalog(catalogYAML)
}

func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(c.Rooms) == 0 || len(c.Styles) == 0 {
		return nil, fmt.Errorf("catalog needs at least one room and one style")
	}
	seen := make(map[string]bool)
	for _, r := range c.Rooms {
		if r.ID == "" || seen["room:"+r.ID] {
			return nil, fmt.Errorf("catalog room %q is empty or duplicated", r.ID)
		}
		seen["room:"+r.ID] = true
	}
	for _, s := range c.Styles {
		if s.ID == "" || s.Prompt == "" || seen["style:"+s.ID] {
			return nil, fmt.Errorf("catalog style %q is incomplete or duplicated", s.ID)
		}
		seen["style:"+s.ID] = true
	}
	return &c, nil
}

// ParseRoomType accepts only the enumerated room categories.
func (c *Catalog) ParseRoomType(raw string) (RoomType, error) {
	id := strings.ToLower(strings.TrimSpace(raw))
	for _, r := range c.Rooms {
		if r.ID == id {
			return r, nil
		}
	}
	return RoomType{}, fmt.Errorf("%w: %q", ErrInvalidRoomType, raw)
}

func (c *Catalog) Style(raw string) (Style, error) {
	id := strings.ToLower(strings.TrimSpace(raw))
	for _, s := range c.Styles {
		if s.ID == id {
			return s, nil
		}
	}
	return Style{}, fmt.Errorf("%w: %q", ErrUnknownStyle, raw)
}

// StylePrompt is the style part of the model instruction for a given room.
func StylePrompt(room RoomType, style Style) string {
	if room.Phrase == "" {
		return style.Prompt
	}
	return room.Phrase + " en " + style.Prompt
}
