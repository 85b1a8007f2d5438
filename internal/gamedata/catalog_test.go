package gamedata

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/verte-zerg/dungeonlog/internal/model"
)

func TestLookupDerivesFromName(t *testing.T) {
	c := New()
	info := c.Lookup("dungeon_keeper_solo_chest_boss_legendary")
	if !info.IsBossChest {
		t.Fatalf("expected boss chest")
	}
	if info.Rarity != model.RarityLegendary {
		t.Fatalf("expected legendary, got %s", info.Rarity)
	}
	if info.Faction != model.FactionKeeper {
		t.Fatalf("expected keeper, got %s", info.Faction)
	}
	if info.Mode != model.ModeSolo {
		t.Fatalf("expected solo, got %s", info.Mode)
	}

	plain := c.Lookup("SHRINE_FAME")
	if plain.IsBossChest || plain.Rarity != model.RarityUnknown || plain.Mode != model.ModeUnknown {
		t.Fatalf("unexpected facts for shrine: %+v", plain)
	}
}

func TestLoadOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gamedata.toml")
	data := `
[[object]]
name = "ODD_CHEST"
boss = true
rarity = "Rare"
mode = "Expedition"
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write overrides: %v", err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	info := c.Lookup("odd_chest")
	if !info.IsBossChest || info.Rarity != model.RarityRare || info.Mode != model.ModeExpedition {
		t.Fatalf("override not applied: %+v", info)
	}
}

func TestLoadMissingFile(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c == nil {
		t.Fatalf("expected catalog")
	}
}
