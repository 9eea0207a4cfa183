package glsl

import "strings"

// NormalizeVersion makes TargetVersion the first directive of the source.
// An existing #version line is rewritten in place when nothing but comments
// precede it; otherwise it is dropped and the target line is prepended.
// Duplicate #version lines are removed.
func NormalizeVersion(src string) string {
	ts := Tokenize(src)
	first := -1
	directiveBefore := false
	for i, t := range ts {
		if t.Kind != Directive {
			continue
		}
		if t.DirectiveName() != "version" {
			if first < 0 {
				directiveBefore = true
			}
			continue
		}
		if first < 0 {
			first = i
			continue
		}
		removeLine(ts, i)
	}

	switch {
	case first < 0:
		return TargetVersion + "\n" + src
	case directiveBefore:
		removeLine(ts, first)
		return TargetVersion + "\n" + ts.String()
	}
	end := ts.DirectiveEnd(first)
	ts[first].Text = TargetVersion
	for i := first + 1; i <= end; i++ {
		ts[i].Text = ""
	}
	return ts.String()
}

// EnableIncludes inserts the include extension right after the version line
// unless the source already enables it.
func EnableIncludes(src string) string {
	ts := Tokenize(src)
	version := -1
	for i, t := range ts {
		if t.Kind != Directive {
			continue
		}
		switch t.DirectiveName() {
		case "extension":
			if n := ts.Next(i); n >= 0 && ts[n].InDirective && ts[n].Text == IncludeExtension {
				return src
			}
		case "version":
			if version < 0 {
				version = i
			}
		}
	}
	line := "#extension " + IncludeExtension + " : enable"
	if version < 0 {
		return line + "\n" + src
	}
	end := ts.DirectiveEnd(version)
	return ts[:end+1].String() + "\n" + line + ts[end+1:].String()
}

// NormalizeIncludes turns pack-root absolute includes ("/lib/common.glsl")
// into paths relative to the include search roots.
func NormalizeIncludes(src string) string {
	ts := Tokenize(src)
	changed := false
	for i, t := range ts {
		if t.Kind != Directive || t.DirectiveName() != "include" {
			continue
		}
		n := ts.Next(i)
		if n < 0 || ts[n].Kind != String || !strings.HasPrefix(ts[n].Text, `"/`) {
			continue
		}
		ts[n].Text = `"` + strings.TrimLeft(ts[n].Text[1:], "/")
		changed = true
	}
	if !changed {
		return src
	}
	return ts.String()
}

// removeLine blanks the directive line starting at i including its newline.
func removeLine(ts Tokens, i int) {
	end := ts.DirectiveEnd(i)
	for j := i; j <= end; j++ {
		ts[j].Text = ""
	}
	if end+1 < len(ts) && ts[end+1].Kind == Newline {
		ts[end+1].Text = ""
	}
}

// headerEnd returns the index of the last token of the leading run of
// #version and #extension lines, or -1 if the source has none.
func headerEnd(ts Tokens) int {
	end := -1
	for i := 0; i < len(ts); i++ {
		t := ts[i]
		if !t.Significant() {
			continue
		}
		if t.Kind != Directive {
			break
		}
		name := t.DirectiveName()
		if name != "version" && name != "extension" {
			break
		}
		end = ts.DirectiveEnd(i)
		i = end
	}
	return end
}

// insertAfterHeader places lines right below the version/extension header.
func insertAfterHeader(ts Tokens, lines []string) string {
	if len(lines) == 0 {
		return ts.String()
	}
	text := strings.Join(lines, "\n")
	h := headerEnd(ts)
	if h < 0 {
		return text + "\n" + ts.String()
	}
	return ts[:h+1].String() + "\n" + text + ts[h+1:].String()
}
