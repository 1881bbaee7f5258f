package alias

// Reference is a module reference found in compiled output.
type Reference struct {
	// Start and End delimit the literal's contents, excluding quotes.
	Start int
	End   int

	// Path is the referenced module as written.
	Path string

	// Quote is the quote character of the literal.
	Quote byte
}

// keywords after which a slash starts a regular expression.
var regexKeywords = map[string]bool{
	"return": true, "typeof": true, "instanceof": true, "in": true, "of": true,
	"new": true, "delete": true, "void": true, "throw": true, "case": true,
	"do": true, "else": true, "yield": true, "await": true,
}

// Scan locates require("...") calls in JavaScript source. Comments, string
// literals, template literals and regular expression literals are skipped, and
// require must be a standalone identifier (obj.require and myrequire do not
// match). Only plain literals without escapes are reported.
func Scan(src []byte) []Reference {
	s := &scanner{src: src}
	s.run()
	return s.refs
}

type scanner struct {
	src  []byte
	pos  int
	refs []Reference

	// prev is the last significant byte; 'a' stands for an identifier and
	// '0' for a number.
	prev     byte
	prevWord string

	// templates holds the open brace depth of each ${ } substitution.
	templates []int
}

func (s *scanner) run() {
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		switch {
		case isSpace(c):
			s.pos++

		case c == '/' && s.peek(1) == '/':
			s.skipLineComment()

		case c == '/' && s.peek(1) == '*':
			s.skipBlockComment()

		case c == '\'' || c == '"':
			s.skipString(c)
			s.mark(c)

		case c == '`':
			s.pos++
			s.templateBody()

		case c == '/':
			if s.regexAllowed() {
				s.skipRegex()
			} else {
				s.pos++
			}
			s.mark('/')

		case isIdentStart(c):
			start := s.pos
			for s.pos < len(s.src) && isIdentPart(s.src[s.pos]) {
				s.pos++
			}
			word := string(s.src[start:s.pos])
			if word == "require" && s.prev != '.' {
				s.matchRequire(s.pos)
			}
			s.prev = 'a'
			s.prevWord = word

		case isDigit(c):
			for s.pos < len(s.src) && (isIdentPart(s.src[s.pos]) || s.src[s.pos] == '.') {
				s.pos++
			}
			s.mark('0')

		case c == '{':
			if n := len(s.templates); n > 0 {
				s.templates[n-1]++
			}
			s.pos++
			s.mark(c)

		case c == '}':
			s.pos++
			if n := len(s.templates); n > 0 {
				if s.templates[n-1] == 0 {
					s.templates = s.templates[:n-1]
					s.templateBody()
					continue
				}
				s.templates[n-1]--
			}
			s.mark(c)

		default:
			s.pos++
			s.mark(c)
		}
	}
}

func (s *scanner) mark(c byte) {
	s.prev = c
	s.prevWord = ""
}

func (s *scanner) peek(n int) byte {
	if s.pos+n < len(s.src) {
		return s.src[s.pos+n]
	}
	return 0
}

// matchRequire records the literal of a require call whose name ends at i.
// The scan position is not advanced; the literal is consumed as a string.
func (s *scanner) matchRequire(i int) {
	i = s.skipSpaceFrom(i)
	if i >= len(s.src) || s.src[i] != '(' {
		return
	}
	i = s.skipSpaceFrom(i + 1)
	if i >= len(s.src) {
		return
	}
	quote := s.src[i]
	if quote != '\'' && quote != '"' {
		return
	}
	start := i + 1
	end := start
	for ; end < len(s.src); end++ {
		c := s.src[end]
		if c == quote {
			break
		}
		if c == '\\' || c == '\n' {
			return
		}
	}
	if end >= len(s.src) {
		return
	}
	after := s.skipSpaceFrom(end + 1)
	if after >= len(s.src) || s.src[after] != ')' {
		return
	}
	s.refs = append(s.refs, Reference{
		Start: start,
		End:   end,
		Path:  string(s.src[start:end]),
		Quote: quote,
	})
}

func (s *scanner) skipSpaceFrom(i int) int {
	for i < len(s.src) && isSpace(s.src[i]) {
		i++
	}
	return i
}

func (s *scanner) skipLineComment() {
	for s.pos < len(s.src) && s.src[s.pos] != '\n' {
		s.pos++
	}
}

func (s *scanner) skipBlockComment() {
	s.pos += 2
	for s.pos < len(s.src) {
		if s.src[s.pos] == '*' && s.peek(1) == '/' {
			s.pos += 2
			return
		}
		s.pos++
	}
}

func (s *scanner) skipString(quote byte) {
	s.pos++
	for s.pos < len(s.src) {
		switch s.src[s.pos] {
		case '\\':
			s.pos += 2
			continue
		case quote:
			s.pos++
			return
		case '\n':
			return
		}
		s.pos++
	}
}

// templateBody consumes template text up to the closing backtick or the next
// ${, which opens a substitution scanned as code.
func (s *scanner) templateBody() {
	for s.pos < len(s.src) {
		switch s.src[s.pos] {
		case '\\':
			s.pos += 2
			continue
		case '`':
			s.pos++
			s.mark('`')
			return
		case '$':
			if s.peek(1) == '{' {
				s.pos += 2
				s.templates = append(s.templates, 0)
				s.mark('{')
				return
			}
		}
		s.pos++
	}
}

func (s *scanner) regexAllowed() bool {
	switch s.prev {
	case 0, '(', ',', '=', ':', '[', '!', '&', '|', '?', '{', ';', '+', '-', '*', '%', '<', '>', '~', '^':
		return true
	case 'a':
		return regexKeywords[s.prevWord]
	}
	return false
}

// skipRegex consumes a regular expression literal and its flags. A literal
// that runs into a newline is treated as a division.
func (s *scanner) skipRegex() {
	start := s.pos
	s.pos++
	inClass := false
	for s.pos < len(s.src) {
		switch c := s.src[s.pos]; {
		case c == '\\':
			s.pos += 2
			continue
		case c == '\n':
			s.pos = start + 1
			return
		case c == '[':
			inClass = true
		case c == ']':
			inClass = false
		case c == '/' && !inClass:
			s.pos++
			for s.pos < len(s.src) && isIdentPart(s.src[s.pos]) {
				s.pos++
			}
			return
		}
		s.pos++
	}
	s.pos = start + 1
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}
