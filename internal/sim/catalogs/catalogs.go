package catalogs

import (
	"bytes"
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/VMF-HIBIKI/GAS-Learning/internal/ability"
	"github.com/VMF-HIBIKI/GAS-Learning/internal/sim/abilities"
)

//go:embed schema/*.json
var schemaFS embed.FS

type Catalogs struct {
	Abilities AbilityCatalog
	Effects   EffectCatalog
}

type AbilityCatalog struct {
	IDs    []string
	ByID   map[string]*ability.Definition
	Defs   map[string]AbilityDef
	Digest string
}

// AbilityDef is one catalog entry: the ability definition plus the script
// or native behavior that drives it.
type AbilityDef struct {
	ability.Definition
	abilities.Program

	// Behavior names a native behavior. Empty means the script.
	Behavior string `json:"behavior,omitempty"`
}

type EffectCatalog struct {
	ByID   map[string]abilities.EffectDef
	Digest string
}

// Load reads abilities.json, the optional abilities.d/ directory and the
// optional effects.json from configDir.
func Load(configDir string) (*Catalogs, error) {
	var c Catalogs
	if err := loadEffects(filepath.Join(configDir, "effects.json"), &c.Effects); err != nil {
		return nil, err
	}
	if err := loadAbilities(filepath.Join(configDir, "abilities.json"), filepath.Join(configDir, "abilities.d"), &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Lookup resolves an ability id. It has the shape snapshot import wants.
func (c *Catalogs) Lookup(id string) (*ability.Definition, bool) {
	d, ok := c.Abilities.ByID[id]
	return d, ok
}

func (c *Catalogs) Effect(id string) (abilities.EffectDef, bool) {
	d, ok := c.Effects.ByID[id]
	return d, ok
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func compileSchema(name string) (*jsonschema.Schema, error) {
	raw, err := schemaFS.ReadFile("schema/" + name)
	if err != nil {
		return nil, err
	}
	comp := jsonschema.NewCompiler()
	if err := comp.AddResource(name, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("schema %s: %w", name, err)
	}
	return comp.Compile(name)
}

func validate(schema, file string, raw []byte) error {
	s, err := compileSchema(schema)
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("%s: %w", file, err)
	}
	if err := s.Validate(v); err != nil {
		return fmt.Errorf("%s: %w", file, err)
	}
	return nil
}

func loadEffects(path string, out *EffectCatalog) error {
	out.ByID = map[string]abilities.EffectDef{}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			out.Digest = sha256Hex(nil)
			return nil
		}
		return err
	}
	out.Digest = sha256Hex(raw)
	if err := validate("effects.schema.json", "effects.json", raw); err != nil {
		return err
	}

	var defs []abilities.EffectDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("effects.json: %w", err)
	}
	for _, d := range defs {
		if _, dup := out.ByID[d.ID]; dup {
			return fmt.Errorf("effects.json: duplicate id %s", d.ID)
		}
		out.ByID[d.ID] = d
	}
	return nil
}

func loadAbilities(path, dir string, c *Catalogs) error {
	out := &c.Abilities
	out.ByID = map[string]*ability.Definition{}
	out.Defs = map[string]AbilityDef{}

	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	files := []string{path}
	blobs := [][]byte{raw}

	entries, err := os.ReadDir(dir)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	var extra []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			extra = append(extra, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(extra)
	for _, p := range extra {
		b, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		files = append(files, p)
		blobs = append(blobs, b)
	}

	var concat bytes.Buffer
	for i, b := range blobs {
		concat.Write(b)
		concat.WriteByte('\n')
		name := filepath.Base(files[i])
		if err := validate("abilities.schema.json", name, b); err != nil {
			return err
		}
		defs, err := decodeAbilities(b)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		for _, d := range defs {
			if _, dup := out.Defs[d.ID]; dup {
				return fmt.Errorf("%s: duplicate ability %s", name, d.ID)
			}
			if err := c.bind(&d); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			out.Defs[d.ID] = d
			def := d.Definition
			out.ByID[d.ID] = &def
			out.IDs = append(out.IDs, d.ID)
		}
	}
	sort.Strings(out.IDs)
	out.Digest = sha256Hex(concat.Bytes())
	return nil
}

// decodeAbilities decodes one file. Remote cancellation is respected unless
// an entry says otherwise.
func decodeAbilities(raw []byte) ([]AbilityDef, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, err
	}
	out := make([]AbilityDef, 0, len(items))
	for _, it := range items {
		var d AbilityDef
		d.ServerRespectsRemoteAbilityCancellation = true
		if err := json.Unmarshal(it, &d); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// bind normalizes d and attaches its behavior.
func (c *Catalogs) bind(d *AbilityDef) error {
	d.Definition.Normalize()
	if err := d.Definition.Validate(); err != nil {
		return err
	}
	if d.Behavior != "" {
		mk, ok := abilities.Native(d.Behavior)
		if !ok {
			return fmt.Errorf("ability %s: unknown behavior %q (have %s)", d.ID, d.Behavior, strings.Join(abilities.NativeNames(), ", "))
		}
		if len(d.Steps) > 0 {
			return fmt.Errorf("ability %s: both behavior and script", d.ID)
		}
		d.NewBehavior = mk
		return nil
	}
	hasEffect := func(id string) bool {
		_, ok := c.Effects.ByID[id]
		return ok
	}
	if err := d.Program.Validate(&d.Definition, hasEffect); err != nil {
		return err
	}
	d.NewBehavior = abilities.New(d.Program, c.Effect)
	return nil
}
