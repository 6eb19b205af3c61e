// Package blueprint loads named build recipes from YAML and resolves them
// against an anchor into absolute coordinates. The loader follows
// reinforcement.FromYaml's viper-then-yaml.v3 pattern exactly: viper reads
// the file, and the decoded section is re-marshaled through yaml.v3 into the
// strongly typed Definition so struct tags stay in one serialization
// library.
package blueprint

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"weltgrid/geom"
)

// PrimitiveDef is one blueprint-relative primitive: offset is relative to the
// blueprint's anchor, not an absolute world coordinate.
type PrimitiveDef struct {
	Shape    string    `yaml:"shape"`
	Offset   geom.Vec3 `yaml:"offset"`
	Rotation geom.Vec3 `yaml:"rotation"`
	Scale    geom.Vec3 `yaml:"scale"`
	Color    string    `yaml:"color"`
}

type PhaseDef struct {
	Name       string         `yaml:"name"`
	Primitives []PrimitiveDef `yaml:"primitives"`
}

// Definition is one catalog entry, as authored in config/blueprints/*.yaml.
type Definition struct {
	Name   string     `yaml:"name"`
	Phases []PhaseDef `yaml:"phases"`
}

// Catalog maps a blueprint name to its definition. Lookups are by the exact
// name an agent supplies to BUILD_BLUEPRINT_START.
type Catalog struct {
	definitions map[string]Definition
}

// Load reads a single blueprint definition file, the same way
// reinforcement.FromYaml reads one training config: one viper instance per
// file, config type fixed to yaml.
func Load(path string) (Definition, error) {
	vp := viper.New()
	vp.SetConfigFile(path)
	vp.SetConfigType("yaml")
	vp.AddConfigPath(filepath.Dir(path))
	if err := vp.ReadInConfig(); err != nil {
		return Definition{}, fmt.Errorf("blueprint: read %s: %w", path, err)
	}

	raw := map[string]any{}
	if err := vp.Unmarshal(&raw); err != nil {
		return Definition{}, fmt.Errorf("blueprint: decode %s: %w", path, err)
	}

	spec, err := yaml.Marshal(raw)
	if err != nil {
		return Definition{}, fmt.Errorf("blueprint: remarshal %s: %w", path, err)
	}

	var def Definition
	if err := yaml.Unmarshal(spec, &def); err != nil {
		return Definition{}, fmt.Errorf("blueprint: unmarshal %s: %w", path, err)
	}
	return def, nil
}

// LoadCatalog reads every *.yaml file in dir and indexes them by name.
func LoadCatalog(dir string) (*Catalog, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}

	cat := &Catalog{definitions: make(map[string]Definition, len(matches))}
	for _, path := range matches {
		def, err := Load(path)
		if err != nil {
			return nil, err
		}
		cat.definitions[def.Name] = def
	}
	return cat, nil
}

func (c *Catalog) Get(name string) (Definition, bool) {
	def, ok := c.definitions[name]
	return def, ok
}

// Resolved is a blueprint definition with every phase's primitive offsets
// applied against an anchor, producing absolute coordinates and per-phase
// counts ready to hand to worldstore.BlueprintPlan.
type Resolved struct {
	Name            string
	Phases          []ResolvedPhase
	AllPrimitives   []ResolvedPrimitive
	TotalPrimitives int
}

type ResolvedPhase struct {
	Name  string
	Count int
}

type ResolvedPrimitive struct {
	Shape    geom.Shape
	Position geom.Vec3
	Rotation geom.Vec3
	Scale    geom.Vec3
	Color    string
}

// Resolve applies anchor to every phase's relative offsets, producing the
// absolute-coordinate primitive list BUILD_BLUEPRINT_START needs. Unknown
// shape names are reported so the caller can surface
// validation/invalid-body rather than silently dropping a piece.
func (d Definition) Resolve(anchor geom.Vec2XZ) (Resolved, error) {
	out := Resolved{Name: d.Name}
	for _, phase := range d.Phases {
		rp := ResolvedPhase{Name: phase.Name, Count: len(phase.Primitives)}
		for _, p := range phase.Primitives {
			shape, ok := geom.ParseShape(p.Shape)
			if !ok {
				return Resolved{}, fmt.Errorf("blueprint: unknown shape %q in phase %q", p.Shape, phase.Name)
			}
			out.AllPrimitives = append(out.AllPrimitives, ResolvedPrimitive{
				Shape:    shape,
				Position: geom.Vec3{X: anchor.X + p.Offset.X, Y: p.Offset.Y, Z: anchor.Z + p.Offset.Z},
				Rotation: p.Rotation,
				Scale:    p.Scale,
				Color:    p.Color,
			})
		}
		out.Phases = append(out.Phases, rp)
	}
	out.TotalPrimitives = len(out.AllPrimitives)
	return out, nil
}

// Footprint computes the resolved plan's XZ bounding box, registered in the
// store as a reservation while the plan is active.
func (r Resolved) Footprint() geom.AABB {
	var box geom.AABB
	first := true
	for _, p := range r.AllPrimitives {
		b := geom.BoundingBox(p.Position, p.Scale)
		if first {
			box = b
			first = false
			continue
		}
		box = box.UnionXZ(b)
	}
	return box
}
