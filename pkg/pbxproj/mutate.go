package pbxproj

import (
	"fmt"
	"regexp"
	"strings"
)

// Set rewrites one build setting inside the named target's configuration
// tier. If the key already exists in that block its line(s) are replaced;
// otherwise a new line is inserted immediately before the block's closing
// brace. No byte outside that buildSettings block changes.
//
// Setting a key to the value it already has is a no-op, so repeated runs of
// the same mutation leave the file untouched.
func (d *Document) Set(target, configuration, key, value string) error {
	cfg, err := d.idx.configFor(target, configuration)
	if err != nil {
		return err
	}
	return d.applySetting(cfg, key, value)
}

// SetForAllConfigurations applies Set to every configuration tier of the
// target (the Debug/Profile/Release sweep the deployment-target and
// team-assignment fixes need).
func (d *Document) SetForAllConfigurations(target, key, value string) error {
	tiers, err := d.Configurations(target)
	if err != nil {
		return err
	}
	for _, tier := range tiers {
		if err := d.Set(target, tier, key, value); err != nil {
			return err
		}
	}
	return nil
}

func (d *Document) applySetting(cfg *buildConfig, key, value string) error {
	if cfg.bsClose <= cfg.bsOpen {
		return &ParseError{Path: d.path, Line: cfg.bsOpen + 1,
			Msg: fmt.Sprintf("configuration %q has no buildSettings block", cfg.name)}
	}

	if s, ok := cfg.settings[key]; ok {
		old := d.lines[s.start]
		line := leadingWhitespace(old) + formatToken(key) + " = " + formatToken(value) + ";" + lineTerminator(d.lines[s.end])
		if s.start == s.end && old == line {
			return nil
		}
		return d.splice(s.start, s.end+1, line)
	}

	indent := d.settingIndent(cfg)
	line := indent + formatToken(key) + " = " + formatToken(value) + ";" + lineTerminator(d.lines[cfg.bsOpen])
	return d.splice(cfg.bsClose, cfg.bsClose, line)
}

// splice replaces lines [start, end) with one replacement line and
// re-indexes the document. Mutations invalidate recorded line ranges, so
// the index is rebuilt from the spliced text.
func (d *Document) splice(start, end int, line string) error {
	lines := make([]string, 0, len(d.lines)+1-(end-start))
	lines = append(lines, d.lines[:start]...)
	lines = append(lines, line)
	lines = append(lines, d.lines[end:]...)

	idx, err := buildIndex(lines)
	if err != nil {
		return fmt.Errorf("pbxproj: document invalid after edit: %w", err)
	}
	d.lines = lines
	d.idx = idx
	return nil
}

// settingIndent picks the indentation for an inserted setting: the indent of
// an existing setting line in the same block, or one level deeper than the
// block opener for empty blocks.
func (d *Document) settingIndent(cfg *buildConfig) string {
	for _, s := range cfg.settings {
		return leadingWhitespace(d.lines[s.start])
	}
	return leadingWhitespace(d.lines[cfg.bsOpen]) + "\t"
}

func leadingWhitespace(line string) string {
	for i := 0; i < len(line); i++ {
		if line[i] != ' ' && line[i] != '\t' {
			return line[:i]
		}
	}
	return line
}

func lineTerminator(line string) string {
	if strings.HasSuffix(line, "\r\n") {
		return "\r\n"
	}
	if strings.HasSuffix(line, "\n") {
		return "\n"
	}
	return "\n"
}

// bareTokenRe matches values pbxproj can hold unquoted.
var bareTokenRe = regexp.MustCompile(`^[A-Za-z0-9_$/:.]+$`)

// formatToken renders a key or value in pbxproj syntax, quoting and
// escaping when the token cannot stand bare.
func formatToken(s string) string {
	if bareTokenRe.MatchString(s) {
		return s
	}
	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"', '\\':
			b.WriteByte('\\')
			b.WriteByte(s[i])
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteByte(s[i])
		}
	}
	b.WriteByte('"')
	return b.String()
}
