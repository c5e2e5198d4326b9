package pbxproj

import (
	"regexp"
	"strings"
)

// setting is the line range of one build setting, inclusive. Scalar settings
// span one line; list settings (OTHER_LDFLAGS and friends) span several.
type setting struct {
	start int
	end   int
}

// buildConfig is one XCBuildConfiguration object: a configuration tier of
// some target, holding a buildSettings block.
type buildConfig struct {
	id       string
	name     string
	bsOpen   int // line of "buildSettings = {"
	bsClose  int // line of its closing "};"
	settings map[string]setting
}

// configList is one XCConfigurationList object. The owning target is taken
// from the object annotation; project-level lists are marked so that a
// target named like the project never resolves to them.
type configList struct {
	id        string
	target    string
	project   bool
	configIDs []string
}

type index struct {
	configs map[string]*buildConfig
	lists   []*configList
	listsByID map[string]*configList
	// targetLists maps a target name to its buildConfigurationList object
	// ID, taken from the PBXNativeTarget (or aggregate/legacy) block itself.
	targetLists map[string]string
}

// listFor resolves a target name to its configuration list. The structural
// reference on the target block is tried first; the list annotation is the
// fallback when the target block carries no usable reference.
func (idx *index) listFor(target string) *configList {
	if id, ok := idx.targetLists[target]; ok {
		if l, ok := idx.listsByID[id]; ok {
			return l
		}
	}
	for _, l := range idx.lists {
		if !l.project && l.target == target {
			return l
		}
	}
	return nil
}

func (idx *index) configFor(target, configuration string) (*buildConfig, error) {
	list := idx.listFor(target)
	if list == nil {
		return nil, &TargetNotFoundError{Target: target}
	}
	for _, id := range list.configIDs {
		if cfg := idx.configs[id]; cfg != nil && cfg.name == configuration {
			return cfg, nil
		}
	}
	return nil, &ConfigurationNotFoundError{Target: target, Configuration: configuration}
}

// scanState carries string and comment state across lines, so braces inside
// multi-line quoted values (shell script phases) or comments never count as
// structure.
type scanState struct {
	inString  bool
	escaped   bool
	inComment bool
}

// maskLine blanks out string contents and comments, preserving byte
// positions, so structural characters can be located on the masked text and
// extracted from the raw text at the same offsets.
func maskLine(line string, st *scanState) string {
	out := make([]byte, len(line))
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case st.inComment:
			out[i] = ' '
			if c == '*' && i+1 < len(line) && line[i+1] == '/' {
				i++
				out[i] = ' '
				st.inComment = false
			}
		case st.inString:
			out[i] = ' '
			if st.escaped {
				st.escaped = false
			} else if c == '\\' {
				st.escaped = true
			} else if c == '"' {
				out[i] = '"'
				st.inString = false
			}
		default:
			switch {
			case c == '"':
				out[i] = '"'
				st.inString = true
				st.escaped = false
			case c == '/' && i+1 < len(line) && line[i+1] == '*':
				out[i] = ' '
				i++
				out[i] = ' '
				st.inComment = true
			default:
				out[i] = c
			}
		}
	}
	return string(out)
}

type frameKind byte

const (
	frameBlock frameKind = '{'
	frameList  frameKind = '('
)

// frame is one open brace or parenthesis block during the scan.
type frame struct {
	kind    frameKind
	key     string // header token before "= {" / "= ("
	comment string // header annotation text, if any
	open    int

	isa    string
	name   string
	fields map[string]string

	isSettings bool
	settings   map[string]setting

	// attached by child frames on pop
	bsOpen, bsClose int
	bsSettings      map[string]setting
	configIDs       []string
}

var listAnnotationRe = regexp.MustCompile(`Build configuration list for (\w+) "((?:[^"\\]|\\.)*)"`)

// buildIndex scans the manifest once, tracking brace depth and the stack of
// enclosing objects, and records every XCBuildConfiguration block together
// with the XCConfigurationList (and hence target) that owns it.
func buildIndex(lines []string) (*index, error) {
	idx := &index{
		configs:     make(map[string]*buildConfig),
		listsByID:   make(map[string]*configList),
		targetLists: make(map[string]string),
	}

	var st scanState
	var stack []*frame
	var pending bool // inside a multi-line scalar value

	top := func() *frame {
		if len(stack) == 0 {
			return nil
		}
		return stack[len(stack)-1]
	}

	for i, raw := range lines {
		masked := maskLine(raw, &st)
		t := strings.TrimSpace(masked)

		if pending {
			if !st.inString && strings.HasSuffix(t, ";") {
				pending = false
				if f := top(); f != nil && f.isSettings {
					// close the multi-line setting opened earlier
					for k, s := range f.settings {
						if s.end == -1 {
							s.end = i
							f.settings[k] = s
						}
					}
				}
			}
			continue
		}
		if st.inString || t == "" {
			continue
		}

		switch {
		case strings.HasPrefix(t, "}"):
			f := top()
			if f == nil || f.kind != frameBlock {
				return nil, &ParseError{Line: i + 1, Msg: "unbalanced closing brace"}
			}
			stack = stack[:len(stack)-1]
			finishFrame(idx, f, top(), i)

		case strings.HasPrefix(t, ")"):
			f := top()
			if f == nil || f.kind != frameList {
				return nil, &ParseError{Line: i + 1, Msg: "unbalanced closing parenthesis"}
			}
			stack = stack[:len(stack)-1]
			finishFrame(idx, f, top(), i)

		case t == "{" || strings.HasSuffix(t, "= {") || strings.HasSuffix(t, "={"):
			key, comment := headerOf(raw, masked, '{')
			parent := top()
			f := &frame{
				kind:    frameBlock,
				key:     key,
				comment: comment,
				open:    i,
				fields:  make(map[string]string),
			}
			if key == "buildSettings" && parent != nil {
				f.isSettings = true
				f.settings = make(map[string]setting)
			}
			stack = append(stack, f)

		case strings.HasSuffix(t, "= (") || strings.HasSuffix(t, "=("):
			key, comment := headerOf(raw, masked, '(')
			f := &frame{
				kind:    frameList,
				key:     key,
				comment: comment,
				open:    i,
				fields:  make(map[string]string),
			}
			stack = append(stack, f)

		case strings.Contains(t, "{") && strings.HasSuffix(t, "};"):
			// Single-line object (PBXBuildFile style): opaque, depth-neutral.

		case strings.Contains(t, "=") && strings.HasSuffix(t, ";"):
			recordField(top(), raw, masked, i)

		case strings.Contains(t, "="):
			// Assignment whose quoted value continues on following lines.
			if st.inString {
				pending = true
				if f := top(); f != nil && f.isSettings {
					key := fieldKey(raw, masked)
					f.settings[key] = setting{start: i, end: -1}
				}
			}

		default:
			f := top()
			if f != nil && f.kind == frameList {
				// list entry: "ID /* Debug */," or a bare literal
				entry := strings.TrimSuffix(strings.TrimSpace(raw), ",")
				if fields := strings.Fields(entry); len(fields) > 0 {
					f.configIDs = append(f.configIDs, fields[0])
				}
			}
		}
	}

	if len(stack) != 0 {
		return nil, &ParseError{Line: len(lines), Msg: "unexpected end of file: unclosed block"}
	}
	return idx, nil
}

// finishFrame folds a closed frame into its parent or the index.
func finishFrame(idx *index, f *frame, parent *frame, closeLine int) {
	switch {
	case f.isSettings && parent != nil:
		parent.bsOpen = f.open
		parent.bsClose = closeLine
		parent.bsSettings = f.settings

	case f.kind == frameList && parent != nil && !parent.isSettings && f.key == "buildConfigurations":
		parent.configIDs = append(parent.configIDs, f.configIDs...)

	case f.kind == frameBlock && parent != nil && parent.isSettings:
		// A dictionary-valued build setting: record it as an opaque range.
		parent.settings[unquoteToken(f.key)] = setting{start: f.open, end: closeLine}
	}

	switch f.isa {
	case "XCBuildConfiguration":
		id := firstToken(f.key)
		name := f.name
		if name == "" {
			name = f.comment
		}
		settings := f.bsSettings
		if settings == nil {
			settings = make(map[string]setting)
		}
		idx.configs[id] = &buildConfig{
			id:       id,
			name:     name,
			bsOpen:   f.bsOpen,
			bsClose:  f.bsClose,
			settings: settings,
		}

	case "XCConfigurationList":
		list := &configList{id: firstToken(f.key), configIDs: f.configIDs}
		if m := listAnnotationRe.FindStringSubmatch(f.comment); m != nil {
			list.project = m[1] == "PBXProject"
			list.target = m[2]
		}
		idx.lists = append(idx.lists, list)
		idx.listsByID[list.id] = list

	case "PBXNativeTarget", "PBXAggregateTarget", "PBXLegacyTarget":
		if f.name != "" {
			if ref, ok := f.fields["buildConfigurationList"]; ok {
				idx.targetLists[f.name] = firstToken(ref)
			}
		}
	}

	if f.kind == frameList && parent != nil && parent.isSettings {
		// A list-valued build setting spans open..close.
		parent.settings[unquoteToken(f.key)] = setting{start: f.open, end: closeLine}
	}
}

// recordField captures a single-line "key = value;" assignment on the
// current frame.
func recordField(f *frame, raw, masked string, line int) {
	if f == nil {
		return
	}
	key := fieldKey(raw, masked)
	if key == "" {
		return
	}
	if f.isSettings {
		f.settings[key] = setting{start: line, end: line}
		return
	}
	value := fieldValue(raw, masked)
	switch key {
	case "isa":
		f.isa = value
	case "name":
		f.name = value
	default:
		f.fields[key] = value
	}
}

// headerOf extracts the header token and annotation of a block-opening line:
// `97C146E9 /* Build configuration list ... */ = {` yields the ID and the
// annotation text.
func headerOf(raw, masked string, brace byte) (key, comment string) {
	pos := strings.LastIndexByte(masked, brace)
	if pos < 0 {
		return "", ""
	}
	head := raw[:pos]
	if eq := strings.LastIndex(masked[:pos], "="); eq >= 0 {
		head = raw[:eq]
	}
	head = strings.TrimSpace(head)
	if open := strings.Index(head, "/*"); open >= 0 {
		if close := strings.LastIndex(head, "*/"); close > open {
			comment = strings.TrimSpace(head[open+2 : close])
		}
		head = strings.TrimSpace(head[:open])
	}
	return unquoteToken(head), comment
}

// fieldKey returns the unquoted key of an assignment line.
func fieldKey(raw, masked string) string {
	eq := strings.Index(masked, "=")
	if eq < 0 {
		return ""
	}
	return unquoteToken(strings.TrimSpace(raw[:eq]))
}

// fieldValue returns the first value token of a single-line assignment,
// annotation comments stripped, quotes removed. The masked text locates the
// token boundaries; the raw text supplies its content.
func fieldValue(raw, masked string) string {
	eq := strings.Index(masked, "=")
	semi := strings.LastIndex(masked, ";")
	if eq < 0 || semi <= eq {
		return ""
	}
	vraw, vmasked := raw[eq+1:semi], masked[eq+1:semi]

	start := -1
	for j := 0; j < len(vmasked); j++ {
		if vmasked[j] != ' ' && vmasked[j] != '\t' {
			start = j
			break
		}
	}
	if start < 0 {
		return ""
	}
	if vmasked[start] == '"' {
		if close := strings.IndexByte(vmasked[start+1:], '"'); close >= 0 {
			return unquoteToken(vraw[start : start+close+2])
		}
		return unquoteToken(vraw[start:])
	}
	end := len(vmasked)
	for j := start; j < len(vmasked); j++ {
		if vmasked[j] == ' ' || vmasked[j] == '\t' {
			end = j
			break
		}
	}
	return vraw[start:end]
}

func firstToken(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// unquoteToken removes surrounding double quotes and unescapes the common
// pbxproj escapes. Unquoted tokens pass through.
func unquoteToken(s string) string {
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return s
	}
	body := s[1 : len(s)-1]
	var b strings.Builder
	b.Grow(len(body))
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c == '\\' && i+1 < len(body) {
			i++
			switch body[i] {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			default:
				b.WriteByte(body[i])
			}
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}
