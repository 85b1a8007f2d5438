// Package gamedata resolves static facts about dungeon event objects.
package gamedata

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/verte-zerg/dungeonlog/internal/model"
)

// Info describes an event object by unique name.
type Info struct {
	IsBossChest bool
	Rarity      model.ChestRarity
	Faction     model.Faction
	Mode        model.Mode
}

// Catalog looks up event object facts.
type Catalog struct {
	overrides map[string]Info
}

// OverrideFile is the TOML layout of a catalog overrides file.
type OverrideFile struct {
	Objects []ObjectOverride `toml:"object"`
}

// ObjectOverride pins the facts for one unique name.
type ObjectOverride struct {
	Name    string `toml:"name"`
	Boss    bool   `toml:"boss"`
	Rarity  string `toml:"rarity"`
	Faction string `toml:"faction"`
	Mode    string `toml:"mode"`
}

// New returns a catalog that derives facts from unique names only.
func New() *Catalog {
	return &Catalog{overrides: map[string]Info{}}
}

// Load reads an overrides file. Missing file is not an error.
func Load(path string) (*Catalog, error) {
	c := New()
	if path == "" {
		return c, nil
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, fmt.Errorf("failed to stat game data: %w", err)
	}
	var file OverrideFile
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return nil, fmt.Errorf("failed to decode game data: %w", err)
	}
	for _, obj := range file.Objects {
		name := strings.ToUpper(strings.TrimSpace(obj.Name))
		if name == "" {
			return nil, fmt.Errorf("game data entry without name")
		}
		derived := derive(name)
		info := Info{
			IsBossChest: obj.Boss || derived.IsBossChest,
			Rarity:      derived.Rarity,
			Faction:     derived.Faction,
			Mode:        derived.Mode,
		}
		if obj.Rarity != "" {
			info.Rarity = model.ChestRarity(obj.Rarity)
		}
		if obj.Faction != "" {
			info.Faction = model.Faction(obj.Faction)
		}
		if obj.Mode != "" {
			info.Mode = model.Mode(obj.Mode)
		}
		c.overrides[name] = info
	}
	return c, nil
}

// Lookup returns the facts for uniqueName.
func (c *Catalog) Lookup(uniqueName string) Info {
	name := strings.ToUpper(strings.TrimSpace(uniqueName))
	if info, ok := c.overrides[name]; ok {
		return info
	}
	return derive(name)
}

var rarityTokens = []struct {
	token  string
	rarity model.ChestRarity
}{
	{"LEGENDARY", model.RarityLegendary},
	{"UNCOMMON", model.RarityUncommon},
	{"RARE", model.RarityRare},
	{"STANDARD", model.RarityStandard},
}

var factionTokens = []struct {
	token   string
	faction model.Faction
}{
	{"CORRUPTED", model.FactionCorrupted},
	{"HELLGATE", model.FactionHellGate},
	{"AVALON", model.FactionAvalonian},
	{"KEEPER", model.FactionKeeper},
	{"HERETIC", model.FactionHeretic},
	{"MORGANA", model.FactionMorgana},
	{"UNDEAD", model.FactionUndead},
}

var modeTokens = []struct {
	token string
	mode  model.Mode
}{
	{"CORRUPTED", model.ModeCorrupted},
	{"HELLGATE", model.ModeHellGate},
	{"EXPEDITION", model.ModeExpedition},
	{"AVALON", model.ModeAvalon},
	{"SOLO", model.ModeSolo},
}

// derive reads facts from naming conventions such as
// "DUNGEON_KEEPER_SOLO_CHEST_BOSS_RARE".
func derive(name string) Info {
	info := Info{
		IsBossChest: strings.Contains(name, "BOSS"),
		Rarity:      model.RarityUnknown,
		Faction:     model.FactionUnknown,
		Mode:        model.ModeUnknown,
	}
	if name == "" {
		return info
	}
	for _, t := range rarityTokens {
		if strings.Contains(name, t.token) {
			info.Rarity = t.rarity
			break
		}
	}
	if info.Rarity == model.RarityUnknown && strings.Contains(name, "CHEST") {
		info.Rarity = model.RarityStandard
	}
	for _, t := range factionTokens {
		if strings.Contains(name, t.token) {
			info.Faction = t.faction
			break
		}
	}
	for _, t := range modeTokens {
		if strings.Contains(name, t.token) {
			info.Mode = t.mode
			break
		}
	}
	if info.Mode == model.ModeUnknown && strings.Contains(name, "DUNGEON") {
		info.Mode = model.ModeStandard
	}
	return info
}
