package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/PeyaPeyaPeyang/LangJAL-sub000/verifier"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	tomlContent := `
[analysis]
max-iterations = 500
snapshots = false
parallelism = 2
log-level = "debug"
log-time-format = "%H:%M:%S"

[[class]]
name = "java/util/AbstractCollection"

[[class]]
name = "java/util/AbstractList"
super = "java/util/AbstractCollection"
interfaces = ["java/util/List"]

[[class]]
name = "java/util/ArrayList"
super = "java/util/AbstractList"

[[class]]
name = "java/util/LinkedList"
super = "java/util/AbstractSequentialList"

[[class]]
name = "java/util/AbstractSequentialList"
super = "java/util/AbstractList"

[[class]]
name = "java/util/List"
interface = true
`
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, []byte(tomlContent), 0644); err != nil {
		t.Fatal(err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if c.Path != path {
		t.Errorf("path = %q, want %q", c.Path, path)
	}
	if c.Analysis.MaxIterations != 500 {
		t.Errorf("max-iterations = %d, want 500", c.Analysis.MaxIterations)
	}
	if c.Analysis.Snapshots {
		t.Error("snapshots = true, want false")
	}
	if len(c.Classes) != 6 {
		t.Fatalf("classes count = %d, want 6", len(c.Classes))
	}

	opts := c.Options(verifier.DefaultOptions())
	if opts.MaxIterations != 500 || opts.KeepSnapshots || opts.Parallelism != 2 {
		t.Errorf("options = %+v", opts)
	}
	if opts.LogLevel != "debug" || opts.LogTimeFormat != "%H:%M:%S" {
		t.Errorf("log options = %q %q", opts.LogLevel, opts.LogTimeFormat)
	}
	if opts.Hierarchy == nil {
		t.Fatal("expected a hierarchy")
	}
	got := verifier.CommonSuperType(opts.Hierarchy, "java/util/ArrayList", "java/util/LinkedList")
	if got != "java/util/AbstractList" {
		t.Errorf("CommonSuperType = %s, want java/util/AbstractList", got)
	}
	if got := verifier.CommonSuperType(opts.Hierarchy, "java/lang/Integer", "java/lang/Long"); got != "java/lang/Number" {
		t.Errorf("default classes lost: CommonSuperType = %s", got)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	c, err := Parse(`
[analysis]
parallelism = 1
`)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	d := verifier.DefaultOptions()
	if c.Analysis.MaxIterations != d.MaxIterations {
		t.Errorf("max-iterations = %d, want %d", c.Analysis.MaxIterations, d.MaxIterations)
	}
	if !c.Analysis.Snapshots {
		t.Error("snapshots = false, want the default true")
	}
	if c.Analysis.LogTimeFormat != verifier.DefaultLogTimeFormat {
		t.Errorf("log-time-format = %q", c.Analysis.LogTimeFormat)
	}
	if opts := c.Options(d); opts.Hierarchy != nil {
		t.Errorf("hierarchy set without classes: %v", opts.Hierarchy)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		invalid bool
	}{
		{"syntax", "[analysis\n", false},
		{"unknown key", "[analysis]\nfoo = 1\n", true},
		{"zero iterations", "[analysis]\nmax-iterations = 0\n", true},
		{"negative parallelism", "[analysis]\nparallelism = -1\n", true},
		{"bad level", "[analysis]\nlog-level = \"loud\"\n", true},
		{"unnamed class", "[[class]]\nsuper = \"a/B\"\n", true},
		{"duplicate class", "[[class]]\nname = \"a/B\"\n[[class]]\nname = \"a/B\"\n", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.content)
			if err == nil {
				t.Fatal("expected an error")
			}
			if tt.invalid && !errors.Is(err, ErrInvalid) {
				t.Errorf("error = %v, want ErrInvalid", err)
			}
		})
	}
}

func TestFindAndLoad(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "src", "demo")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, FileName), []byte("[analysis]\nparallelism = 3\n"), 0644); err != nil {
		t.Fatal(err)
	}

	c, err := FindAndLoad(nested)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if c.Analysis.Parallelism != 3 {
		t.Errorf("parallelism = %d, want 3", c.Analysis.Parallelism)
	}
	if c.Path != filepath.Join(root, FileName) {
		t.Errorf("path = %q", c.Path)
	}
}
