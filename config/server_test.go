package config

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"weltgrid/geom"
)

func TestFromYaml(t *testing.T) {
	Convey("Given a config.yaml overriding a few fields", t, func() {
		dir := t.TempDir()
		path := filepath.Join(dir, "config.yaml")
		contents := `
httpAddr: ":9090"
databasePath: "/var/lib/weltgrid/world.db"
policy:
  settlementThreshold: 8
`
		So(os.WriteFile(path, []byte(contents), 0o644), ShouldBeNil)

		Convey("Loading it overrides only the named fields", func() {
			cfg, err := FromYaml(path)
			So(err, ShouldBeNil)
			So(cfg.HTTPAddr, ShouldEqual, ":9090")
			So(cfg.DatabasePath, ShouldEqual, "/var/lib/weltgrid/world.db")
			So(cfg.Policy.SettlementThreshold, ShouldEqual, 8)

			Convey("Unset fields still carry their defaults", func() {
				So(cfg.BlueprintDir, ShouldEqual, Default().BlueprintDir)
				So(cfg.SoloRefill, ShouldEqual, 500)
			})
		})
	})
}

func TestPolicyOverridesApplyTo(t *testing.T) {
	Convey("Given the default policy", t, func() {
		base := geom.DefaultPolicy()

		Convey("An override with only one non-zero field changes only that field", func() {
			overrides := PolicyOverrides{SettlementThreshold: 12}
			effective := overrides.ApplyTo(base)

			So(effective.SettlementThreshold, ShouldEqual, 12)
			So(effective.PrimitiveCost, ShouldEqual, base.PrimitiveCost)
			So(effective.MaxBuildRange, ShouldEqual, base.MaxBuildRange)
		})

		Convey("A zero-value override changes nothing", func() {
			effective := PolicyOverrides{}.ApplyTo(base)
			So(effective, ShouldResemble, base)
		})
	})
}
