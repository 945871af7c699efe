// Completion: 100% - settings tests complete
package legalize

import "testing"

func TestSharedDefaults(t *testing.T) {
	flags := NewSharedFlags(NewSharedBuilder())
	if !flags.JumpTablesEnabled() {
		t.Error("jump_tables_enabled should default to true")
	}
	if flags.AvoidDivTraps() {
		t.Error("avoid_div_traps should default to false")
	}
	if got := flags.OptLevel(); got != "none" {
		t.Errorf("opt_level defaults to %q, want none", got)
	}
}

func TestSetEnum(t *testing.T) {
	b := NewSharedBuilder()
	if err := b.Set("opt_level", "speed"); err != nil {
		t.Fatalf("Set(opt_level, speed): %v", err)
	}
	flags := NewSharedFlags(b)
	if got := flags.OptLevel(); got != "speed" {
		t.Errorf("opt_level = %q, want speed", got)
	}
	if err := b.Set("opt_level", "fast"); err == nil {
		t.Error("expected error for unknown enum value")
	}
}

func TestSetBoolSpellings(t *testing.T) {
	for _, spelling := range []string{"true", "on", "yes", "1", "True", "ON"} {
		b := NewSharedBuilder()
		if err := b.Set("avoid_div_traps", spelling); err != nil {
			t.Errorf("Set(avoid_div_traps, %q): %v", spelling, err)
			continue
		}
		if !NewSharedFlags(b).AvoidDivTraps() {
			t.Errorf("spelling %q did not enable the setting", spelling)
		}
	}
	for _, spelling := range []string{"false", "off", "no", "0"} {
		b := NewSharedBuilder()
		if err := b.Set("jump_tables_enabled", spelling); err != nil {
			t.Errorf("Set(jump_tables_enabled, %q): %v", spelling, err)
			continue
		}
		if NewSharedFlags(b).JumpTablesEnabled() {
			t.Errorf("spelling %q did not disable the setting", spelling)
		}
	}
	b := NewSharedBuilder()
	if err := b.Set("avoid_div_traps", "maybe"); err == nil {
		t.Error("expected error for invalid bool value")
	}
}

func TestUnknownSettingName(t *testing.T) {
	b := NewSharedBuilder()
	if err := b.Set("no_such_setting", "true"); err == nil {
		t.Error("expected error for unknown setting name")
	}
}

func TestRiscvPredicates(t *testing.T) {
	// With everything at defaults, all full_* predicates hold.
	flags := RiscvSettings().Finish()
	pv := flags.PredicateView()
	for _, p := range []int{riscvFullM, riscvFullA, riscvFullF, riscvFullD} {
		if !pv.Test(p) {
			t.Errorf("predicate %d should hold by default", p)
		}
	}

	// Disabling the use of M kills full_m but not the others, and the
	// supports_m setting itself is untouched.
	b := RiscvSettings()
	if err := b.Set("enable_m", "false"); err != nil {
		t.Fatalf("Set(enable_m, false): %v", err)
	}
	flags = b.Finish()
	pv = flags.PredicateView()
	if pv.Test(riscvFullM) {
		t.Error("full_m should fail with enable_m off")
	}
	if !pv.Test(riscvFullA) || !pv.Test(riscvFullD) {
		t.Error("other predicates should be unaffected")
	}
	if !flags.Bool("supports_m") {
		t.Error("supports_m should still be set")
	}
}

func TestBoolPredicateNumbers(t *testing.T) {
	// Every bool setting doubles as a predicate under its own number.
	b := RiscvSettings()
	if err := b.Enable("enable_e"); err != nil {
		t.Fatalf("Enable(enable_e): %v", err)
	}
	flags := b.Finish()
	if !flags.Bool("enable_e") {
		t.Error("enable_e should be set")
	}
}
