package scanner

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/HendryAvila/softdev/internal/metamemory"
)

// lookahead bounds how many lines a recognizer reads past a candidate line
// while deciding between a definition ('{') and a declaration (';').
const lookahead = 32

// File is the structural outline of one C source file.
type File struct {
	Path      string
	Hash      string
	Functions []Function
	Structs   []Struct
	// Includes lists quoted #include targets in order of appearance.
	Includes []string
}

// Function is a recognized function definition.
type Function struct {
	Name       string
	LineStart  int
	LineEnd    int
	Column     int
	Signature  string
	ReturnType string
	Params     []metamemory.Param
	Static     bool
	// Calls lists identifiers invoked in the body, in order of first use.
	Calls []string
}

// TypeRefs returns the identifiers named by the return type and parameter
// types, without C keywords.
func (f Function) TypeRefs() []string {
	var out []string
	seen := make(map[string]bool)
	add := func(typ string) {
		for _, id := range identifiers(typ) {
			if !seen[id] && !isKeyword(id) {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	add(f.ReturnType)
	for _, p := range f.Params {
		add(p.Type)
	}
	return out
}

// Struct is a recognized struct definition.
type Struct struct {
	Name      string
	LineStart int
	LineEnd   int
	Column    int
	Fields    []metamemory.Field
}

// Parse extracts function and struct definitions from C source. It is a
// line-oriented recognizer, not a C parser: exotic syntax is missed rather
// than misreported.
func Parse(src []byte) *File {
	lines := splitLines(string(src))
	code, includes := stripSource(lines)

	f := &File{Includes: includes}
	for i := 0; i < len(code); i++ {
		if strings.TrimSpace(code[i]) == "" {
			continue
		}
		if fn, ok := matchFunction(code, i); ok {
			f.Functions = append(f.Functions, fn)
			i = fn.LineEnd - 1
			continue
		}
		if st, end, ok := matchStruct(code, i); ok {
			if st.Name != "" {
				f.Structs = append(f.Structs, st)
			}
			i = end
			continue
		}
	}
	return f
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.Split(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

var includePattern = regexp.MustCompile(`^#\s*include\s*"([^"]+)"`)

// stripSource removes comments, blanks preprocessor lines and blanks the
// contents of string and character literals. Line numbering is preserved.
func stripSource(lines []string) ([]string, []string) {
	out := make([]string, len(lines))
	var includes []string
	inBlock := false
	continued := false

	for i, raw := range lines {
		line := stripComments(raw, &inBlock)
		trimmed := strings.TrimSpace(line)

		if continued || strings.HasPrefix(trimmed, "#") {
			if !continued {
				if m := includePattern.FindStringSubmatch(trimmed); m != nil {
					includes = append(includes, m[1])
				}
			}
			continued = strings.HasSuffix(strings.TrimRight(raw, " \t"), `\`)
			out[i] = ""
			continue
		}
		out[i] = blankLiterals(line)
	}
	return out, includes
}

// stripComments removes // and /* */ comments from one line, carrying the
// block-comment state across lines. Comment markers inside literals are
// kept as text.
func stripComments(line string, inBlock *bool) string {
	var b strings.Builder
	var quote byte
	escape := false

	for i := 0; i < len(line); i++ {
		c := line[i]
		if *inBlock {
			if c == '*' && i+1 < len(line) && line[i+1] == '/' {
				*inBlock = false
				b.WriteByte(' ')
				i++
			}
			continue
		}
		if quote != 0 {
			b.WriteByte(c)
			switch {
			case escape:
				escape = false
			case c == '\\':
				escape = true
			case c == quote:
				quote = 0
			}
			continue
		}
		switch {
		case c == '"' || c == '\'':
			quote = c
			b.WriteByte(c)
		case c == '/' && i+1 < len(line) && line[i+1] == '/':
			return b.String()
		case c == '/' && i+1 < len(line) && line[i+1] == '*':
			*inBlock = true
			i++
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// blankLiterals replaces string and character literals, quotes included,
// with spaces so braces and parentheses inside them are never counted.
func blankLiterals(line string) string {
	if !strings.ContainsAny(line, `"'`) {
		return line
	}
	b := []byte(line)
	var quote byte
	escape := false
	for i, c := range b {
		if quote == 0 {
			if c == '"' || c == '\'' {
				quote = c
				b[i] = ' '
			}
			continue
		}
		switch {
		case escape:
			escape = false
		case c == '\\':
			escape = true
		case c == quote:
			quote = 0
		}
		b[i] = ' '
	}
	return string(b)
}

// ─── Functions ───────────────────────────────────────────────────────────────

var storagePrefixes = []string{"static ", "inline ", "extern ", "__inline__ ", "__inline "}

// matchFunction recognizes `<type-tokens> <identifier> (` followed by a
// '{' before any ';'.
func matchFunction(lines []string, i int) (Function, bool) {
	raw := lines[i]
	rest := strings.TrimLeft(raw, " \t")
	static := false
	for stripped := true; stripped; {
		stripped = false
		for _, p := range storagePrefixes {
			if strings.HasPrefix(rest, p) {
				static = static || p == "static "
				rest = strings.TrimLeft(rest[len(p):], " \t")
				stripped = true
			}
		}
	}
	if rest == "" || !isIdentStart(rest[0]) {
		return Function{}, false
	}

	j := 0
	for j < len(rest) && (isIdentChar(rest[j]) || rest[j] == '*' || rest[j] == ' ' || rest[j] == '\t') {
		j++
	}
	if j >= len(rest) || rest[j] != '(' {
		return Function{}, false
	}

	head := rest[:j]
	end := len(strings.TrimRight(head, " \t"))
	start := end
	for start > 0 && isIdentChar(head[start-1]) {
		start--
	}
	name := head[start:end]
	typePart := strings.TrimSpace(head[:start])
	if name == "" || !isIdentStart(name[0]) || typePart == "" || isKeyword(name) {
		return Function{}, false
	}
	for _, tok := range strings.FieldsFunc(typePart, isTypeSep) {
		if statementKeywords[tok] {
			return Function{}, false
		}
	}

	offset := len(raw) - len(rest)
	open, ok := findOpenBrace(lines, i, offset+j)
	if !ok {
		return Function{}, false
	}

	fn := Function{
		Name:       name,
		LineStart:  i + 1,
		Column:     offset + start + 1,
		ReturnType: collapse(typePart),
		Static:     static,
	}
	fn.Signature = signature(lines, i, open)
	fn.Params = parseParams(fn.Signature)

	closeLine, body := braceBlock(lines, open)
	fn.LineEnd = closeLine + 1
	fn.Calls = callees(body, name)
	return fn, true
}

// position addresses a byte in the line slice.
type position struct{ line, col int }

// findOpenBrace scans forward from (i, col) for the first '{', ';' or '='.
// It reports the brace position only when the brace comes first.
func findOpenBrace(lines []string, i, col int) (position, bool) {
	for l := i; l < len(lines) && l <= i+lookahead; l++ {
		s := lines[l]
		from := 0
		if l == i {
			from = col
		}
		for c := from; c < len(s); c++ {
			switch s[c] {
			case '{':
				return position{l, c}, true
			case ';', '=':
				return position{}, false
			}
		}
	}
	return position{}, false
}

// signature joins the text from the start of line i up to the opening brace.
func signature(lines []string, i int, open position) string {
	var parts []string
	for l := i; l <= open.line; l++ {
		s := lines[l]
		if l == open.line {
			s = s[:open.col]
		}
		parts = append(parts, s)
	}
	return collapse(strings.Join(parts, " "))
}

// braceBlock returns the line of the brace closing the one at open and the
// text between them. An unclosed block extends to the last line.
func braceBlock(lines []string, open position) (int, string) {
	var body strings.Builder
	depth := 0
	for l := open.line; l < len(lines); l++ {
		s := lines[l]
		from := 0
		if l == open.line {
			from = open.col
		}
		for c := from; c < len(s); c++ {
			switch s[c] {
			case '{':
				depth++
				if depth == 1 {
					continue
				}
			case '}':
				depth--
				if depth == 0 {
					return l, body.String()
				}
			}
			body.WriteByte(s[c])
		}
		body.WriteByte('\n')
	}
	return len(lines) - 1, body.String()
}

func parseParams(sig string) []metamemory.Param {
	open := strings.IndexByte(sig, '(')
	if open < 0 {
		return nil
	}
	depth := 0
	closing := -1
	for i := open; i < len(sig) && closing < 0; i++ {
		switch sig[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				closing = i
			}
		}
	}
	if closing < 0 {
		return nil
	}
	inner := strings.TrimSpace(sig[open+1 : closing])
	if inner == "" || inner == "void" {
		return nil
	}

	var params []metamemory.Param
	for idx, piece := range splitTopLevel(inner, ',') {
		if len(params) >= metamemory.MaxParams {
			break
		}
		piece = strings.TrimSpace(piece)
		if piece == "" {
			continue
		}
		if piece == "..." {
			params = append(params, metamemory.Param{Name: "...", Type: "..."})
			continue
		}
		name, typ := parseDecl(piece)
		if name == "" {
			name = fmt.Sprintf("arg%d", idx+1)
			typ = collapse(piece)
		}
		params = append(params, metamemory.Param{Name: name, Type: typ})
	}
	return params
}

// callees returns identifiers followed by '(' in body, excluding keywords,
// member calls and the function itself.
func callees(body, self string) []string {
	var out []string
	seen := make(map[string]bool)
	for i := 0; i < len(body); {
		if !isIdentStart(body[i]) || (i > 0 && isIdentChar(body[i-1])) {
			i++
			continue
		}
		start := i
		for i < len(body) && isIdentChar(body[i]) {
			i++
		}
		name := body[start:i]
		j := i
		for j < len(body) && (body[j] == ' ' || body[j] == '\t') {
			j++
		}
		if j >= len(body) || body[j] != '(' {
			continue
		}
		if name == self || isKeyword(name) || seen[name] || memberAccess(body, start) {
			continue
		}
		if len(out) >= metamemory.MaxLinks {
			break
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

func memberAccess(s string, at int) bool {
	k := at - 1
	for k >= 0 && (s[k] == ' ' || s[k] == '\t') {
		k--
	}
	if k < 0 {
		return false
	}
	return s[k] == '.' || (s[k] == '>' && k > 0 && s[k-1] == '-')
}

// ─── Structs ─────────────────────────────────────────────────────────────────

// matchStruct recognizes `typedef struct [tag] {` and `struct tag {`. The
// returned end is the last consumed line. A recognized definition without a
// usable name yields a Struct with an empty Name.
func matchStruct(lines []string, i int) (Struct, int, bool) {
	raw := lines[i]
	line := strings.TrimLeft(raw, " \t")
	offset := len(raw) - len(line)

	var rest string
	typedef := false
	switch {
	case strings.HasPrefix(line, "typedef struct"):
		rest = line[len("typedef struct"):]
		if rest != "" && isIdentChar(rest[0]) {
			return Struct{}, i, false
		}
		typedef = true
	case strings.HasPrefix(line, "struct "):
		rest = line[len("struct "):]
	default:
		return Struct{}, i, false
	}

	trimmed := strings.TrimLeft(rest, " \t")
	tag := leadingIdent(trimmed)
	if !typedef && tag == "" {
		return Struct{}, i, false
	}

	afterTag := len(raw) - len(trimmed) + len(tag)
	open, ok := findOpenBrace(lines, i, afterTag)
	if !ok {
		return Struct{}, i, false
	}
	// `struct tag (` belongs to a prototype, not a definition.
	if strings.Contains(lines[i][afterTag:posCol(open, i, len(lines[i]))], "(") {
		return Struct{}, i, false
	}

	closeLine, body := braceBlock(lines, open)
	st := Struct{LineStart: i + 1, LineEnd: closeLine + 1}

	name := tag
	if name == "" {
		tail := ""
		if c := strings.LastIndexByte(lines[closeLine], '}'); c >= 0 {
			tail = lines[closeLine][c+1:]
		}
		name = leadingIdent(strings.TrimLeft(tail, " \t*"))
	}
	if name == "" || isKeyword(name) {
		return st, closeLine, true
	}
	st.Name = name
	if tag != "" {
		st.Column = afterTag - len(tag) + 1
	} else {
		st.Column = offset + 1
	}
	st.Fields = parseFields(body)
	return st, closeLine, true
}

func posCol(p position, line, fallback int) int {
	if p.line == line {
		return p.col
	}
	return fallback
}

// parseFields reads member declarations at the top level of a struct body.
func parseFields(body string) []metamemory.Field {
	var top strings.Builder
	depth := 0
	for i := 0; i < len(body); i++ {
		switch c := body[i]; c {
		case '{':
			depth++
		case '}':
			depth--
		default:
			if depth == 0 {
				top.WriteByte(c)
			}
		}
	}

	var fields []metamemory.Field
	for _, stmt := range strings.Split(top.String(), ";") {
		stmt = collapse(stmt)
		if stmt == "" {
			continue
		}
		pieces := splitTopLevel(stmt, ',')
		name, typ := parseDecl(pieces[0])
		if name == "" || typ == "" {
			continue
		}
		fields = append(fields, metamemory.Field{Name: name, Type: typ})

		base := typ
		if b := strings.IndexByte(base, '['); b >= 0 {
			base = base[:b]
		}
		base = strings.TrimRight(base, " *")
		for _, p := range pieces[1:] {
			p = strings.TrimSpace(p)
			stars := len(p) - len(strings.TrimLeft(p, "* "))
			n, declType := parseDecl("int " + p[stars:])
			if n == "" {
				continue
			}
			extra := strings.TrimPrefix(declType, "int")
			t := base
			if s := strings.Count(p[:stars], "*"); s > 0 {
				t += " " + strings.Repeat("*", s)
			}
			fields = append(fields, metamemory.Field{Name: n, Type: t + extra})
		}
	}
	return fields
}

// ─── Declarations ────────────────────────────────────────────────────────────

// parseDecl splits a single declaration such as `const char *name[4]` into
// its identifier and type. It returns an empty name when the declaration
// carries only a type.
func parseDecl(s string) (name, typ string) {
	s = strings.TrimSpace(s)
	if c := strings.IndexByte(s, ':'); c >= 0 {
		s = strings.TrimSpace(s[:c])
	}
	if s == "" {
		return "", ""
	}

	if p := strings.Index(s, "(*"); p >= 0 {
		n := leadingIdent(strings.TrimLeft(s[p+2:], " \t"))
		if n == "" {
			return "", collapse(s)
		}
		return n, collapse(strings.Replace(s, n, "", 1))
	}

	suffix := ""
	for strings.HasSuffix(s, "]") {
		b := strings.LastIndexByte(s, '[')
		if b < 0 {
			break
		}
		suffix = s[b:] + suffix
		s = strings.TrimSpace(s[:b])
	}

	end := len(s)
	start := end
	for start > 0 && isIdentChar(s[start-1]) {
		start--
	}
	name = s[start:end]
	typ = collapse(s[:start])
	if name == "" || isKeyword(name) || !namesType(typ) {
		return "", collapse(s) + suffix
	}
	return name, typ + suffix
}

// splitTopLevel splits s on sep outside parentheses and brackets.
func splitTopLevel(s string, sep byte) []string {
	var parts []string
	depth := 0
	last := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', '[':
			depth++
		case ')', ']':
			depth--
		case sep:
			if depth == 0 {
				parts = append(parts, s[last:i])
				last = i + 1
			}
		}
	}
	return append(parts, s[last:])
}

// ─── Lexical helpers ─────────────────────────────────────────────────────────

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

func isTypeSep(r rune) bool {
	return r == ' ' || r == '\t' || r == '*'
}

func leadingIdent(s string) string {
	if s == "" || !isIdentStart(s[0]) {
		return ""
	}
	i := 1
	for i < len(s) && isIdentChar(s[i]) {
		i++
	}
	return s[:i]
}

func identifiers(s string) []string {
	var out []string
	for i := 0; i < len(s); {
		if !isIdentStart(s[i]) {
			i++
			continue
		}
		start := i
		for i < len(s) && isIdentChar(s[i]) {
			i++
		}
		out = append(out, s[start:i])
	}
	return out
}

// namesType reports whether typ names a type on its own, so that the
// identifier following it is a declarator rather than part of the type.
func namesType(typ string) bool {
	for _, id := range identifiers(typ) {
		if !qualifiers[id] {
			return true
		}
	}
	return false
}

var qualifiers = map[string]bool{
	"struct": true, "union": true, "enum": true, "const": true,
	"volatile": true, "restrict": true, "register": true,
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

var keywords = map[string]bool{
	"auto": true, "break": true, "case": true, "char": true, "const": true,
	"continue": true, "default": true, "do": true, "double": true, "else": true,
	"enum": true, "extern": true, "float": true, "for": true, "goto": true,
	"if": true, "inline": true, "int": true, "long": true, "register": true,
	"restrict": true, "return": true, "short": true, "signed": true, "sizeof": true,
	"static": true, "struct": true, "switch": true, "typedef": true, "union": true,
	"unsigned": true, "void": true, "volatile": true, "while": true, "bool": true,
	"_Bool": true, "_Complex": true, "_Alignas": true, "_Alignof": true,
	"_Atomic": true, "_Generic": true, "_Noreturn": true, "_Static_assert": true,
	"_Thread_local": true, "defined": true,
}

var statementKeywords = map[string]bool{
	"return": true, "else": true, "case": true, "goto": true, "do": true,
	"if": true, "while": true, "for": true, "switch": true, "sizeof": true,
	"typedef": true,
}

func isKeyword(s string) bool { return keywords[s] }
