package pbxproj

import (
	"os"
	"sort"
	"strings"
)

// Document is a parsed project manifest. It keeps the raw lines of the file
// (terminators included) and an index of the recognized target
// build-configuration blocks; everything else is opaque text that Save
// reproduces untouched.
type Document struct {
	path  string
	lines []string
	idx   *index
}

// Load reads and parses the manifest at path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc, err := LoadBytes(data)
	if err != nil {
		if pe, ok := err.(*ParseError); ok {
			pe.Path = path
		}
		return nil, err
	}
	doc.path = path
	return doc, nil
}

// LoadBytes parses a manifest held in memory.
func LoadBytes(data []byte) (*Document, error) {
	lines := splitLines(string(data))
	idx, err := buildIndex(lines)
	if err != nil {
		return nil, err
	}
	return &Document{lines: lines, idx: idx}, nil
}

// Bytes serializes the document. With no mutations applied the result is
// byte-identical to the input.
func (d *Document) Bytes() []byte {
	return []byte(strings.Join(d.lines, ""))
}

// Save writes the document back to path.
func (d *Document) Save(path string) error {
	return os.WriteFile(path, d.Bytes(), 0644)
}

// Path returns the file the document was loaded from, if any.
func (d *Document) Path() string { return d.path }

// Targets returns the names of all targets that own a build-configuration
// list, sorted. The project-level configuration list is not a target.
func (d *Document) Targets() []string {
	var names []string
	for _, l := range d.idx.lists {
		if !l.project {
			names = append(names, l.target)
		}
	}
	sort.Strings(names)
	return names
}

// Configurations returns the configuration tier names of a target in
// manifest order.
func (d *Document) Configurations(target string) ([]string, error) {
	list := d.idx.listFor(target)
	if list == nil {
		return nil, &TargetNotFoundError{Target: target}
	}
	var names []string
	for _, id := range list.configIDs {
		if cfg := d.idx.configs[id]; cfg != nil {
			names = append(names, cfg.name)
		}
	}
	return names, nil
}

// Get returns the raw value of a setting in the named target and
// configuration tier, and whether the setting is present.
func (d *Document) Get(target, configuration, key string) (string, bool, error) {
	cfg, err := d.idx.configFor(target, configuration)
	if err != nil {
		return "", false, err
	}
	s, ok := cfg.settings[key]
	if !ok {
		return "", false, nil
	}
	return unquoteToken(settingValue(d.lines[s.start:s.end+1])), true, nil
}

// splitLines cuts data into lines, each retaining its own terminator. The
// final fragment is kept even without a trailing newline, so joining the
// slices reproduces the input exactly.
func splitLines(data string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(data); i++ {
		if data[i] == '\n' {
			lines = append(lines, data[start:i+1])
			start = i + 1
		}
	}
	if start < len(data) {
		lines = append(lines, data[start:])
	}
	return lines
}

// settingValue extracts the text between the first '=' and the trailing ';'
// of a (possibly multi-line) setting.
func settingValue(lines []string) string {
	joined := strings.Join(lines, "")
	eq := strings.Index(joined, "=")
	if eq < 0 {
		return ""
	}
	v := strings.TrimSpace(joined[eq+1:])
	v = strings.TrimSuffix(strings.TrimRight(v, "\r\n \t"), ";")
	return strings.TrimSpace(v)
}
