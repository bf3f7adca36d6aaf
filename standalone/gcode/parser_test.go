package gcode

import (
	"errors"
	"fmt"
	"testing"
)

func TestParseBasicCommands(t *testing.T) {
	parser := NewParser()

	tests := []struct {
		input   string
		cmdType byte
		cmdNum  int
		params  map[byte]float64
	}{
		{
			input:   "G0 X10 Y20",
			cmdType: 'G',
			cmdNum:  0,
			params:  map[byte]float64{'X': 10, 'Y': 20},
		},
		{
			input:   "G1 X100.5 Y200.25 F3000",
			cmdType: 'G',
			cmdNum:  1,
			params:  map[byte]float64{'X': 100.5, 'Y': 200.25, 'F': 3000},
		},
		{
			input:   "G28",
			cmdType: 'G',
			cmdNum:  28,
			params:  map[byte]float64{},
		},
		{
			input:   "M104 S200",
			cmdType: 'M',
			cmdNum:  104,
			params:  map[byte]float64{'S': 200},
		},
		{
			input:   "G92 X0 Y0 Z0",
			cmdType: 'G',
			cmdNum:  92,
			params:  map[byte]float64{'X': 0, 'Y': 0, 'Z': 0},
		},
	}

	for _, test := range tests {
		cmd, err := parser.ParseLine(test.input)
		if err != nil {
			t.Errorf("Failed to parse '%s': %v", test.input, err)
			continue
		}

		if cmd == nil {
			t.Errorf("Got nil command for '%s'", test.input)
			continue
		}

		if cmd.Type != test.cmdType {
			t.Errorf("Expected type %c, got %c for '%s'", test.cmdType, cmd.Type, test.input)
		}

		if cmd.Number != test.cmdNum {
			t.Errorf("Expected number %d, got %d for '%s'", test.cmdNum, cmd.Number, test.input)
		}

		for param, value := range test.params {
			if !cmd.HasParameter(param) {
				t.Errorf("Missing parameter %c in '%s'", param, test.input)
			} else if cmd.GetParameter(param, 0) != value {
				t.Errorf("Expected %c=%f, got %c=%f in '%s'",
					param, value, param, cmd.GetParameter(param, 0), test.input)
			}
		}
	}
}

func TestParseNegativeNumbers(t *testing.T) {
	parser := NewParser()

	cmd, err := parser.ParseLine("G1 X-10.5 Y-20")
	if err != nil {
		t.Fatalf("Failed to parse: %v", err)
	}

	if cmd.GetParameter('X', 0) != -10.5 {
		t.Errorf("Expected X=-10.5, got X=%f", cmd.GetParameter('X', 0))
	}

	if cmd.GetParameter('Y', 0) != -20 {
		t.Errorf("Expected Y=-20, got Y=%f", cmd.GetParameter('Y', 0))
	}
}

func TestParseComments(t *testing.T) {
	parser := NewParser()

	tests := []string{
		"; This is a comment",
		"G0 X10 ; Move to X10",
		"(This is a comment)",
	}

	for _, test := range tests {
		cmd, err := parser.ParseLine(test)
		if err != nil {
			t.Errorf("Failed to parse '%s': %v", test, err)
		}

		if cmd == nil {
			t.Errorf("Got nil command for '%s'", test)
		}
	}
}

func TestParseLowercase(t *testing.T) {
	parser := NewParser()

	cmd, err := parser.ParseLine("g1 x10 y20")
	if err != nil {
		t.Fatalf("Failed to parse: %v", err)
	}

	if cmd.Type != 'G' {
		t.Errorf("Expected type G, got %c", cmd.Type)
	}

	if cmd.Number != 1 {
		t.Errorf("Expected number 1, got %d", cmd.Number)
	}

	if cmd.GetParameter('X', 0) != 10 {
		t.Errorf("Expected X=10, got X=%f", cmd.GetParameter('X', 0))
	}
}

func TestParseEmptyLine(t *testing.T) {
	parser := NewParser()

	cmd, err := parser.ParseLine("")
	if err != nil {
		t.Errorf("Empty line should not error: %v", err)
	}

	if cmd != nil {
		t.Errorf("Empty line should return nil command")
	}
}

func TestParseFlagParameters(t *testing.T) {
	parser := NewParser()

	cmd, err := parser.ParseLine("G28 X Y")
	if err != nil {
		t.Fatal(err)
	}
	if !cmd.HasParameter('X') || !cmd.HasParameter('Y') || cmd.HasParameter('Z') {
		t.Errorf("flags parsed as %v", cmd.Parameters)
	}
	if cmd.GetParameter('X', 5) != 0 {
		t.Errorf("flag value = %f, want 0", cmd.GetParameter('X', 5))
	}

	cmd, err = parser.ParseLine("M403 E2 F1")
	if err != nil {
		t.Fatal(err)
	}
	if cmd.Int('E', -1) != 2 || cmd.Int('F', -1) != 1 || cmd.Int('S', -1) != -1 {
		t.Errorf("M403 parameters %v", cmd.Parameters)
	}
	if cmd.String() != "M403" {
		t.Errorf("String() = %q", cmd.String())
	}
}

func framed(body string) string {
	return fmt.Sprintf("%s*%d", body, checksum(body))
}

func TestParseNumberedLines(t *testing.T) {
	parser := NewParser()

	cmd, err := parser.ParseLine(framed("N1 G28"))
	if err != nil {
		t.Fatal(err)
	}
	if cmd.Type != 'G' || cmd.Number != 28 || parser.LastLine() != 1 {
		t.Errorf("got %s, last line %d", cmd, parser.LastLine())
	}

	if _, err := parser.ParseLine(framed("N3 G1 X1")); !errors.Is(err, ErrLineNumber) {
		t.Errorf("skipped line: %v", err)
	}
	if parser.LastLine() != 1 {
		t.Errorf("last line moved to %d", parser.LastLine())
	}

	bad := fmt.Sprintf("N2 G1 X1*%d", checksum("N2 G1 X1")+1)
	if _, err := parser.ParseLine(bad); !errors.Is(err, ErrChecksum) {
		t.Errorf("bad checksum: %v", err)
	}

	cmd, err = parser.ParseLine(framed("N2 G1 X1"))
	if err != nil || cmd.GetParameter('X', 0) != 1 {
		t.Errorf("N2: %v %v", cmd, err)
	}

	// Unnumbered lines skip the sequence check
	if _, err := parser.ParseLine("G90"); err != nil {
		t.Error(err)
	}
}

func TestParseLineNumberReset(t *testing.T) {
	parser := NewParser()

	if _, err := parser.ParseLine(framed("N40 M110")); err != nil {
		t.Fatal(err)
	}
	if parser.LastLine() != 40 {
		t.Errorf("last line = %d after N40 M110", parser.LastLine())
	}

	if _, err := parser.ParseLine("M110 N7"); err != nil {
		t.Fatal(err)
	}
	if _, err := parser.ParseLine(framed("N8 G28")); err != nil {
		t.Errorf("N8 after M110 N7: %v", err)
	}
}
