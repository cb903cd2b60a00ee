package game

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"planpoker/internal/pkg/errs"
)

//go:embed presets.yaml
var builtinPresets []byte

// DefaultPresetKey is the estimate set games use until one is configured.
const DefaultPresetKey = "tshirt"

// Preset is a named, ready-made estimate set.
type Preset struct {
	Key   string `json:"key" yaml:"key"`
	Name  string `json:"name" yaml:"name"`
	Cards []Card `json:"cards" yaml:"cards"`
}

// CardSet returns the preset as an estimate set.
func (p Preset) CardSet() CardSet {
	return CardSet{Preset: p.Key, Cards: p.Cards}.clone()
}

type presetFile struct {
	Presets []Preset `yaml:"presets"`
}

// Presets is the catalogue of estimate-set presets with one of them chosen as default.
type Presets struct {
	list       []Preset
	byKey      map[string]Preset
	defaultKey string
}

// LoadPresets reads the preset catalogue from overridePath, or from the built-in catalogue
// when overridePath is empty, and selects defaultKey as the default set.
func LoadPresets(overridePath, defaultKey string) (*Presets, error) {
	data := builtinPresets

	if overridePath != "" {
		var err error
		data, err = os.ReadFile(overridePath)
		if err != nil {
			return nil, fmt.Errorf("read card presets %q: %w", overridePath, err)
		}
	}

	return ParsePresets(data, defaultKey)
}

// ParsePresets decodes a YAML preset catalogue. Every preset is normalized like a
// client-supplied set; keys must be unique and defaultKey must be present.
func ParsePresets(data []byte, defaultKey string) (*Presets, error) {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	var file presetFile
	if err := decoder.Decode(&file); err != nil {
		return nil, fmt.Errorf("decode card presets: %w", err)
	}

	if defaultKey == "" {
		defaultKey = DefaultPresetKey
	}

	p := &Presets{
		list:       make([]Preset, 0, len(file.Presets)),
		byKey:      make(map[string]Preset, len(file.Presets)),
		defaultKey: defaultKey,
	}

	for _, raw := range file.Presets {
		if raw.Key == "" || raw.Key == PresetCustom {
			return nil, fmt.Errorf("card preset key %q is reserved or empty", raw.Key)
		}
		if _, dup := p.byKey[raw.Key]; dup {
			return nil, fmt.Errorf("duplicate card preset %q", raw.Key)
		}

		set, err := NormalizeCardSet(CardSet{Preset: raw.Key, Cards: raw.Cards})
		if err != nil {
			return nil, fmt.Errorf("card preset %q: %w", raw.Key, err)
		}

		preset := Preset{Key: raw.Key, Name: raw.Name, Cards: set.Cards}
		if preset.Name == "" {
			preset.Name = raw.Key
		}

		p.list = append(p.list, preset)
		p.byKey[preset.Key] = preset
	}

	if _, ok := p.byKey[defaultKey]; !ok {
		return nil, errs.NewError(errs.ErrCardPresetUnknown, defaultKey)
	}

	return p, nil
}

// Default returns the default estimate set.
func (p *Presets) Default() CardSet {
	return p.byKey[p.defaultKey].CardSet()
}

// DefaultKey returns the key of the default preset.
func (p *Presets) DefaultKey() string {
	return p.defaultKey
}

// Get returns the preset estimate set named key.
func (p *Presets) Get(key string) (CardSet, bool) {
	preset, ok := p.byKey[key]
	if !ok {
		return CardSet{}, false
	}
	return preset.CardSet(), true
}

// List returns all presets in catalogue order.
func (p *Presets) List() []Preset {
	out := make([]Preset, len(p.list))
	for i, preset := range p.list {
		out[i] = Preset{Key: preset.Key, Name: preset.Name, Cards: preset.CardSet().Cards}
	}
	return out
}
