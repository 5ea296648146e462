package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"

	"gopkg.in/yaml.v3"
)

// testElement is a minimal model element: the key comes from the map
// key in version 2 files and from the name field in version 1 files.
type testElement struct {
	Key   string `yaml:"-"`
	Label string `yaml:"label,omitempty"`
}

func (e testElement) ModelKey() string { return e.Key }

// recordingListener collects notifications as "verb model key=label"
// strings. Parse rejects elements labelled "explode" so tests can
// exercise error collection.
type recordingListener struct {
	kind     string
	versions []int

	mu     sync.Mutex
	events []string
}

func newRecordingListener(kind string) *recordingListener {
	return &recordingListener{kind: kind, versions: []int{1, 2}}
}

func (l *recordingListener) Kind() string             { return l.kind }
func (l *recordingListener) SupportedVersions() []int { return l.versions }

func (l *recordingListener) Parse(name string, node *yaml.Node, version int) (Element, []error, []string) {
	e := testElement{Key: name}
	if version == 1 {
		var id struct {
			Name string `yaml:"name"`
		}
		if err := node.Decode(&id); err != nil || id.Name == "" {
			return nil, []error{fmt.Errorf("%s entry has no name", l.kind)}, nil
		}
		e.Key = id.Name
	}
	if err := node.Decode(&e); err != nil {
		return nil, []error{fmt.Errorf("%s %q: %v", l.kind, e.Key, err)}, nil
	}
	if e.Label == "explode" {
		return nil, []error{fmt.Errorf("%s %q is broken", l.kind, e.Key)}, nil
	}
	return e, nil, nil
}

func (l *recordingListener) Added(modelName string, element Element) {
	l.record("added", modelName, element)
}

func (l *recordingListener) Updated(modelName string, element Element) {
	l.record("updated", modelName, element)
}

func (l *recordingListener) Removed(modelName string, element Element) {
	l.record("removed", modelName, element)
}

func (l *recordingListener) record(verb, modelName string, element Element) {
	e := element.(testElement)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, fmt.Sprintf("%s %s %s=%s", verb, modelName, e.Key, e.Label))
}

func (l *recordingListener) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

func (l *recordingListener) reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = nil
}

func (l *recordingListener) assert(t *testing.T, want ...string) {
	t.Helper()
	got := l.snapshot()
	if len(want) == 0 {
		if len(got) != 0 {
			t.Fatalf("events = %v, want none", got)
		}
		return
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
}

func TestRepository_ProcessFileNotifiesAdditions(t *testing.T) {
	repo := NewRepository(t.TempDir(), nil)
	l := newRecordingListener("widgets")
	repo.AddListener(l)

	err := repo.ProcessFile("home.yaml", []byte("version: 2\nwidgets:\n  b:\n    label: Fan\n  a:\n    label: Lamp\n"))
	if err != nil {
		t.Fatalf("ProcessFile() error = %v", err)
	}

	l.assert(t, "added home.yaml a=Lamp", "added home.yaml b=Fan")
	if names := repo.ModelNames(); !reflect.DeepEqual(names, []string{"home.yaml"}) {
		t.Fatalf("ModelNames() = %v", names)
	}
	if warns := repo.Warnings("home.yaml"); len(warns) != 0 {
		t.Fatalf("Warnings() = %v, want none", warns)
	}
}

func TestRepository_ProcessFileDiffsAgainstPrevious(t *testing.T) {
	repo := NewRepository(t.TempDir(), nil)
	l := newRecordingListener("widgets")
	repo.AddListener(l)

	if err := repo.ProcessFile("home.yaml", []byte("version: 2\nwidgets:\n  a:\n    label: Lamp\n  b:\n    label: Fan\n")); err != nil {
		t.Fatalf("ProcessFile() error = %v", err)
	}
	l.reset()

	// a changes, b disappears, c appears.
	if err := repo.ProcessFile("home.yaml", []byte("version: 2\nwidgets:\n  a:\n    label: Strip\n  c:\n    label: Plug\n")); err != nil {
		t.Fatalf("ProcessFile() error = %v", err)
	}

	l.assert(t, "added home.yaml c=Plug", "updated home.yaml a=Strip", "removed home.yaml b=Fan")
}

func TestRepository_ProcessFileUnchangedIsQuiet(t *testing.T) {
	repo := NewRepository(t.TempDir(), nil)
	l := newRecordingListener("widgets")
	repo.AddListener(l)

	content := []byte("version: 2\nwidgets:\n  a:\n    label: Lamp\n")
	if err := repo.ProcessFile("home.yaml", content); err != nil {
		t.Fatalf("ProcessFile() error = %v", err)
	}
	l.reset()

	if err := repo.ProcessFile("home.yaml", content); err != nil {
		t.Fatalf("ProcessFile() error = %v", err)
	}
	l.assert(t)
}

func TestRepository_EmptyFileIsValidAndEmpty(t *testing.T) {
	repo := NewRepository(t.TempDir(), nil)
	l := newRecordingListener("widgets")
	repo.AddListener(l)

	if err := repo.ProcessFile("home.yaml", []byte("version: 2\nwidgets:\n  a:\n    label: Lamp\n")); err != nil {
		t.Fatalf("ProcessFile() error = %v", err)
	}
	l.reset()

	if err := repo.ProcessFile("home.yaml", []byte("  \n\t\n")); err != nil {
		t.Fatalf("ProcessFile() error = %v", err)
	}

	l.assert(t, "removed home.yaml a=Lamp")
	if names := repo.ModelNames(); !reflect.DeepEqual(names, []string{"home.yaml"}) {
		t.Fatalf("ModelNames() = %v, want the empty model kept", names)
	}
	if errs := repo.Errors("home.yaml"); len(errs) != 0 {
		t.Fatalf("Errors() = %v, want none", errs)
	}
}

func TestRepository_BadVersionKeepsPreviousModel(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errText string
	}{
		{"unsupported", "version: 3\nwidgets:\n  a:\n    label: New\n", "model version 3 is not supported"},
		{"missing", "widgets:\n  a:\n    label: New\n", "model version is missing"},
		{"not a number", "version: soon\nwidgets:\n  a:\n    label: New\n", "model version is not a number"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := NewRepository(t.TempDir(), nil)
			l := newRecordingListener("widgets")
			repo.AddListener(l)

			if err := repo.ProcessFile("home.yaml", []byte("version: 2\nwidgets:\n  a:\n    label: Lamp\n")); err != nil {
				t.Fatalf("ProcessFile() error = %v", err)
			}
			l.reset()

			err := repo.ProcessFile("home.yaml", []byte(tt.content))
			if !errors.Is(err, ErrUnsupportedVersion) {
				t.Fatalf("ProcessFile() error = %v, want ErrUnsupportedVersion", err)
			}

			// The broken rewrite must not tear down the loaded elements.
			l.assert(t)
			if errs := repo.Errors("home.yaml"); !reflect.DeepEqual(errs, []string{tt.errText}) {
				t.Fatalf("Errors() = %v, want [%q]", errs, tt.errText)
			}

			// A subsequent good rewrite diffs against the kept snapshot.
			if err := repo.ProcessFile("home.yaml", []byte("version: 2\nwidgets:\n  a:\n    label: Strip\n")); err != nil {
				t.Fatalf("ProcessFile() error = %v", err)
			}
			l.assert(t, "updated home.yaml a=Strip")
			if errs := repo.Errors("home.yaml"); len(errs) != 0 {
				t.Fatalf("Errors() = %v, want cleared", errs)
			}
		})
	}
}

func TestRepository_MalformedFileKeepsPreviousModel(t *testing.T) {
	repo := NewRepository(t.TempDir(), nil)
	l := newRecordingListener("widgets")
	repo.AddListener(l)

	if err := repo.ProcessFile("home.yaml", []byte("version: 2\nwidgets:\n  a:\n    label: Lamp\n")); err != nil {
		t.Fatalf("ProcessFile() error = %v", err)
	}
	l.reset()

	if err := repo.ProcessFile("home.yaml", []byte("widgets: [a\n")); err == nil {
		t.Fatal("ProcessFile() error = nil, want parse error")
	}
	l.assert(t)
	if errs := repo.Errors("home.yaml"); len(errs) != 1 || !strings.Contains(errs[0], "parsing failed") {
		t.Fatalf("Errors() = %v, want a parse failure", errs)
	}

	if err := repo.ProcessFile("home.yaml", []byte("- just\n- a list\n")); !errors.Is(err, ErrInvalidModel) {
		t.Fatalf("ProcessFile() error = %v, want ErrInvalidModel", err)
	}
	l.assert(t)
}

func TestRepository_FailedFirstParseIsVisible(t *testing.T) {
	repo := NewRepository(t.TempDir(), nil)
	l := newRecordingListener("widgets")
	repo.AddListener(l)

	if err := repo.ProcessFile("home.yaml", []byte("version: 9\n")); !errors.Is(err, ErrUnsupportedVersion) {
		t.Fatalf("ProcessFile() error = %v, want ErrUnsupportedVersion", err)
	}
	if errs := repo.Errors("home.yaml"); !reflect.DeepEqual(errs, []string{"model version 9 is not supported"}) {
		t.Fatalf("Errors() = %v", errs)
	}

	// Fixing the file loads it like any new model.
	if err := repo.ProcessFile("home.yaml", []byte("version: 2\nwidgets:\n  a:\n    label: Lamp\n")); err != nil {
		t.Fatalf("ProcessFile() error = %v", err)
	}
	l.assert(t, "added home.yaml a=Lamp")
	if errs := repo.Errors("home.yaml"); len(errs) != 0 {
		t.Fatalf("Errors() = %v, want cleared", errs)
	}
}

func TestRepository_DuplicateKeyLastWins(t *testing.T) {
	repo := NewRepository(t.TempDir(), nil)
	l := newRecordingListener("widgets")
	repo.AddListener(l)

	content := "version: 2\nwidgets:\n  a:\n    label: First\n  a:\n    label: Second\n"
	if err := repo.ProcessFile("home.yaml", []byte(content)); err != nil {
		t.Fatalf("ProcessFile() error = %v", err)
	}

	l.assert(t, "added home.yaml a=Second")
	warns := repo.Warnings("home.yaml")
	found := false
	for _, w := range warns {
		if strings.Contains(w, "duplicate") {
			found = true
		}
	}
	if !found {
		t.Fatalf("Warnings() = %v, want a duplicate warning", warns)
	}
}

func TestRepository_ElementErrorSkipsElement(t *testing.T) {
	repo := NewRepository(t.TempDir(), nil)
	l := newRecordingListener("widgets")
	repo.AddListener(l)

	content := "version: 2\nwidgets:\n  a:\n    label: Lamp\n  b:\n    label: explode\n"
	if err := repo.ProcessFile("home.yaml", []byte(content)); err != nil {
		t.Fatalf("ProcessFile() error = %v", err)
	}

	l.assert(t, "added home.yaml a=Lamp")
	if errs := repo.Errors("home.yaml"); len(errs) != 1 || !strings.Contains(errs[0], `"b" is broken`) {
		t.Fatalf("Errors() = %v, want the broken element recorded", errs)
	}
}

func TestRepository_UnknownSectionWarns(t *testing.T) {
	repo := NewRepository(t.TempDir(), nil)
	l := newRecordingListener("widgets")
	repo.AddListener(l)

	content := "version: 2\ngadgets:\n  g:\n    label: Mystery\n"
	if err := repo.ProcessFile("home.yaml", []byte(content)); err != nil {
		t.Fatalf("ProcessFile() error = %v", err)
	}

	l.assert(t)
	warns := repo.Warnings("home.yaml")
	if len(warns) != 1 || !strings.Contains(warns[0], `"gadgets"`) {
		t.Fatalf("Warnings() = %v, want an unknown-section warning", warns)
	}
}

func TestRepository_AddListenerReplaysCachedModels(t *testing.T) {
	repo := NewRepository(t.TempDir(), nil)

	if err := repo.ProcessFile("home.yaml", []byte("version: 2\ngadgets:\n  g:\n    label: Found\n")); err != nil {
		t.Fatalf("ProcessFile() error = %v", err)
	}

	l := newRecordingListener("gadgets")
	repo.AddListener(l)
	l.assert(t, "added home.yaml g=Found")
}

func TestRepository_RemoveListenerStopsNotifications(t *testing.T) {
	repo := NewRepository(t.TempDir(), nil)
	l := newRecordingListener("widgets")
	repo.AddListener(l)
	repo.RemoveListener(l)

	if err := repo.ProcessFile("home.yaml", []byte("version: 2\nwidgets:\n  a:\n    label: Lamp\n")); err != nil {
		t.Fatalf("ProcessFile() error = %v", err)
	}
	l.assert(t)
}

func TestRepository_RemoveFileRemovesElements(t *testing.T) {
	repo := NewRepository(t.TempDir(), nil)
	l := newRecordingListener("widgets")
	repo.AddListener(l)

	if err := repo.ProcessFile("home.yaml", []byte("version: 2\nwidgets:\n  a:\n    label: Lamp\n  b:\n    label: Fan\n")); err != nil {
		t.Fatalf("ProcessFile() error = %v", err)
	}
	l.reset()

	repo.RemoveFile("home.yaml")
	l.assert(t, "removed home.yaml a=Lamp", "removed home.yaml b=Fan")
	if names := repo.ModelNames(); len(names) != 0 {
		t.Fatalf("ModelNames() = %v, want empty", names)
	}

	// Unknown models are a quiet no-op.
	repo.RemoveFile("gone.yaml")
}

func TestRepository_VersionOneParsesButRejectsEdits(t *testing.T) {
	repo := NewRepository(t.TempDir(), nil)
	l := newRecordingListener("widgets")
	repo.AddListener(l)

	content := "version: 1\nwidgets:\n  - name: a\n    label: Lamp\n  - name: b\n    label: Fan\n"
	if err := repo.ProcessFile("legacy.yaml", []byte(content)); err != nil {
		t.Fatalf("ProcessFile() error = %v", err)
	}
	l.assert(t, "added legacy.yaml a=Lamp", "added legacy.yaml b=Fan")

	err := repo.AddElement("legacy.yaml", "widgets", testElement{Key: "c", Label: "Plug"})
	if !errors.Is(err, ErrDeprecatedFormat) {
		t.Fatalf("AddElement() error = %v, want ErrDeprecatedFormat", err)
	}
}

func TestRepository_ReadOnlyModelRejectsEdits(t *testing.T) {
	repo := NewRepository(t.TempDir(), nil)
	l := newRecordingListener("widgets")
	repo.AddListener(l)

	content := "version: 2\nreadOnly: true\nwidgets:\n  a:\n    label: Lamp\n"
	if err := repo.ProcessFile("locked.yaml", []byte(content)); err != nil {
		t.Fatalf("ProcessFile() error = %v", err)
	}

	if err := repo.AddElement("locked.yaml", "widgets", testElement{Key: "b"}); !errors.Is(err, ErrModelReadOnly) {
		t.Fatalf("AddElement() error = %v, want ErrModelReadOnly", err)
	}
	if err := repo.UpdateElement("locked.yaml", "widgets", testElement{Key: "a"}); !errors.Is(err, ErrModelReadOnly) {
		t.Fatalf("UpdateElement() error = %v, want ErrModelReadOnly", err)
	}
	if err := repo.RemoveElement("locked.yaml", "widgets", "a"); !errors.Is(err, ErrModelReadOnly) {
		t.Fatalf("RemoveElement() error = %v, want ErrModelReadOnly", err)
	}
}

func TestRepository_AddElementCreatesAndWritesModel(t *testing.T) {
	dir := t.TempDir()
	repo := NewRepository(dir, nil)
	l := newRecordingListener("widgets")
	repo.AddListener(l)

	if err := repo.AddElement("custom.yaml", "widgets", testElement{Key: "a", Label: "Lamp"}); err != nil {
		t.Fatalf("AddElement() error = %v", err)
	}
	l.assert(t, "added custom.yaml a=Lamp")

	raw, err := os.ReadFile(filepath.Join(dir, "custom.yaml"))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	var file struct {
		Version int                       `yaml:"version"`
		Widgets map[string]map[string]any `yaml:"widgets"`
	}
	if err := yaml.Unmarshal(raw, &file); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if file.Version != 2 {
		t.Fatalf("written version = %d, want 2", file.Version)
	}
	if got := file.Widgets["a"]["label"]; got != "Lamp" {
		t.Fatalf("written label = %v, want Lamp", got)
	}

	if err := repo.AddElement("custom.yaml", "widgets", testElement{Key: "a", Label: "Twin"}); !errors.Is(err, ErrElementExists) {
		t.Fatalf("AddElement() error = %v, want ErrElementExists", err)
	}
}

func TestRepository_UpdateAndRemoveElement(t *testing.T) {
	dir := t.TempDir()
	repo := NewRepository(dir, nil)
	l := newRecordingListener("widgets")
	repo.AddListener(l)

	if err := repo.AddElement("custom.yaml", "widgets", testElement{Key: "a", Label: "Lamp"}); err != nil {
		t.Fatalf("AddElement() error = %v", err)
	}
	l.reset()

	if err := repo.UpdateElement("custom.yaml", "widgets", testElement{Key: "a", Label: "Strip"}); err != nil {
		t.Fatalf("UpdateElement() error = %v", err)
	}
	l.assert(t, "updated custom.yaml a=Strip")
	l.reset()

	if err := repo.RemoveElement("custom.yaml", "widgets", "a"); err != nil {
		t.Fatalf("RemoveElement() error = %v", err)
	}
	l.assert(t, "removed custom.yaml a=Strip")

	raw, err := os.ReadFile(filepath.Join(dir, "custom.yaml"))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if strings.Contains(string(raw), "a:") {
		t.Fatalf("written file still contains the removed element:\n%s", raw)
	}
}

func TestRepository_EditErrors(t *testing.T) {
	repo := NewRepository(t.TempDir(), nil)
	repo.AddListener(newRecordingListener("widgets"))

	if err := repo.UpdateElement("missing.yaml", "widgets", testElement{Key: "a"}); !errors.Is(err, ErrModelNotFound) {
		t.Fatalf("UpdateElement() error = %v, want ErrModelNotFound", err)
	}
	if err := repo.RemoveElement("missing.yaml", "widgets", "a"); !errors.Is(err, ErrModelNotFound) {
		t.Fatalf("RemoveElement() error = %v, want ErrModelNotFound", err)
	}

	if err := repo.AddElement("custom.yaml", "widgets", testElement{Key: "a", Label: "Lamp"}); err != nil {
		t.Fatalf("AddElement() error = %v", err)
	}
	if err := repo.UpdateElement("custom.yaml", "widgets", testElement{Key: "ghost"}); !errors.Is(err, ErrElementNotFound) {
		t.Fatalf("UpdateElement() error = %v, want ErrElementNotFound", err)
	}
	if err := repo.RemoveElement("custom.yaml", "widgets", "ghost"); !errors.Is(err, ErrElementNotFound) {
		t.Fatalf("RemoveElement() error = %v, want ErrElementNotFound", err)
	}
	if err := repo.RemoveElement("custom.yaml", "gadgets", "a"); !errors.Is(err, ErrElementNotFound) {
		t.Fatalf("RemoveElement() error = %v, want ErrElementNotFound", err)
	}
}

func TestRepository_EditPreservesUnknownSections(t *testing.T) {
	dir := t.TempDir()
	repo := NewRepository(dir, nil)
	l := newRecordingListener("widgets")
	repo.AddListener(l)

	content := "version: 2\ngadgets:\n  g:\n    label: Mystery\nwidgets:\n  a:\n    label: Lamp\n"
	if err := repo.ProcessFile("home.yaml", []byte(content)); err != nil {
		t.Fatalf("ProcessFile() error = %v", err)
	}

	if err := repo.AddElement("home.yaml", "widgets", testElement{Key: "b", Label: "Fan"}); err != nil {
		t.Fatalf("AddElement() error = %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, "home.yaml"))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	var file map[string]any
	if err := yaml.Unmarshal(raw, &file); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if _, ok := file["gadgets"]; !ok {
		t.Fatalf("written file lost the unhandled section:\n%s", raw)
	}
	gadgets := file["gadgets"].(map[string]any)
	if _, ok := gadgets["g"]; !ok {
		t.Fatalf("written file lost the unhandled element:\n%s", raw)
	}
}

func TestRepository_ListenerVersionGate(t *testing.T) {
	repo := NewRepository(t.TempDir(), nil)
	l := newRecordingListener("widgets")
	l.versions = []int{2}
	repo.AddListener(l)

	content := "version: 1\nwidgets:\n  - name: a\n    label: Lamp\n"
	if err := repo.ProcessFile("legacy.yaml", []byte(content)); err != nil {
		t.Fatalf("ProcessFile() error = %v", err)
	}
	l.assert(t)
}
