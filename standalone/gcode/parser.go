package gcode

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrChecksum is returned when a line's *checksum does not match
	ErrChecksum = errors.New("checksum mismatch")

	// ErrLineNumber is returned when an N line number is out of sequence
	ErrLineNumber = errors.New("line number is not last line number+1")
)

// Command is one parsed G-code line
type Command struct {
	Type       byte // 'G', 'M' or 'T'; 0 for parameter-only lines
	Number     int
	Parameters map[byte]float64
	Comment    string
}

// Parser splits G-code lines into commands. Hosts may prefix lines with
// N<line> and end them with *<checksum>; numbered lines must arrive in
// order, M110 resets the count.
type Parser struct {
	lastLine int
}

// NewParser creates a new G-code parser
func NewParser() *Parser {
	return &Parser{}
}

// LastLine returns the last accepted line number
func (p *Parser) LastLine() int {
	return p.lastLine
}

// ParseLine parses a single line of G-code. Empty lines give a nil command.
func (p *Parser) ParseLine(line string) (*Command, error) {
	line = strings.TrimLeft(line, " \t")
	if line == "" {
		return nil, nil
	}

	if line[0] == 'N' || line[0] == 'n' {
		var err error
		if line, err = p.checkFraming(line); err != nil {
			return nil, err
		}
	}

	cmd := &Command{Parameters: make(map[byte]float64)}
	rest := line
	if c := toUpper(rest[0]); c == 'G' || c == 'M' || c == 'T' {
		if n, w := leadingNumber(rest[1:], false); w > 0 {
			cmd.Type = c
			cmd.Number = int(n)
			rest = rest[1+w:]
		}
	}

	for rest != "" {
		c := rest[0]
		switch {
		case c == ';' || c == '(':
			cmd.Comment = rest
			rest = ""
		case isLetter(c):
			// A letter without a value is a flag and reads as 0
			v, w := leadingNumber(rest[1:], true)
			cmd.Parameters[toUpper(c)] = v
			rest = rest[1+w:]
		default:
			rest = rest[1:]
		}
	}

	// M110 N<n> sets the line number
	if cmd.Type == 'M' && cmd.Number == 110 && cmd.HasParameter('N') {
		p.lastLine = cmd.Int('N', 0)
	}
	return cmd, nil
}

// checkFraming verifies and strips the line number and checksum
func (p *Parser) checkFraming(line string) (string, error) {
	body := line
	if star := strings.LastIndexByte(line, '*'); star >= 0 {
		want, err := strconv.Atoi(strings.TrimSpace(line[star+1:]))
		if err != nil || want != int(checksum(line[:star])) {
			return "", fmt.Errorf("%w for line %d", ErrChecksum, p.lastLine+1)
		}
		body = line[:star]
	}

	n, w := leadingNumber(body[1:], false)
	if w == 0 {
		return "", fmt.Errorf("%w: %q", ErrLineNumber, line)
	}
	body = strings.TrimLeft(body[1+w:], " \t")

	if isLineReset(body) {
		p.lastLine = int(n)
		return body, nil
	}
	if int(n) != p.lastLine+1 {
		return "", fmt.Errorf("%w, last line: %d", ErrLineNumber, p.lastLine)
	}
	p.lastLine = int(n)
	return body, nil
}

// isLineReset reports an M110, which sets the line number it carries
func isLineReset(body string) bool {
	if len(body) < 4 || toUpper(body[0]) != 'M' || body[1:4] != "110" {
		return false
	}
	return len(body) == 4 || body[4] < '0' || body[4] > '9'
}

// checksum is the XOR of every byte before the '*'
func checksum(s string) byte {
	var cs byte
	for i := 0; i < len(s); i++ {
		cs ^= s[i]
	}
	return cs
}

// leadingNumber parses the number at the start of s and returns it with
// the number of bytes consumed, 0 when s does not start with one
func leadingNumber(s string, fraction bool) (float64, int) {
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	digits := 0
	for end < len(s) && (isDigit(s[end]) || (fraction && s[end] == '.')) {
		if isDigit(s[end]) {
			digits++
		}
		end++
	}
	if digits == 0 {
		return 0, 0
	}
	v, err := strconv.ParseFloat(s[:end], 64)
	if err != nil {
		return 0, 0
	}
	return v, end
}

func isDigit(c byte) bool  { return c >= '0' && c <= '9' }
func isLetter(c byte) bool { return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') }

func toUpper(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - ('a' - 'A')
	}
	return c
}

// HasParameter checks if a parameter exists in the command
func (cmd *Command) HasParameter(param byte) bool {
	_, ok := cmd.Parameters[param]
	return ok
}

// GetParameter gets a parameter value, or returns the default if not present
func (cmd *Command) GetParameter(param byte, defaultValue float64) float64 {
	if val, ok := cmd.Parameters[param]; ok {
		return val
	}
	return defaultValue
}

// Int returns a parameter truncated to an integer, or def
func (cmd *Command) Int(param byte, def int) int {
	if val, ok := cmd.Parameters[param]; ok {
		return int(val)
	}
	return def
}

// String renders the command the way it would be written, for messages
func (cmd *Command) String() string {
	if cmd.Type == 0 {
		return cmd.Comment
	}
	return string(cmd.Type) + strconv.Itoa(cmd.Number)
}
