package main

import (
	"testing"

	"github.com/srg/lifebox/internal/testutils"
	"github.com/stretchr/testify/suite"
)

type DecodeTestSuite struct {
	CommandTestSuite
}

func (s *DecodeTestSuite) TestParseFrameHex() {
	// GOAL: Verify hex frames are accepted with common separators
	//
	// TEST SCENARIO: Parse hex with different separators → decoded bytes → matches expected output

	tests := []struct {
		name     string
		input    string
		expected []byte
	}{
		{name: "plain", input: "aa8f1955", expected: []byte{0xAA, 0x8F, 0x19, 0x55}},
		{name: "upper case with colons", input: "AA:8E:32:55", expected: []byte{0xAA, 0x8E, 0x32, 0x55}},
		{name: "spaces and dashes", input: "aa 8e-80 55", expected: []byte{0xAA, 0x8E, 0x80, 0x55}},
		{name: "0x prefixes", input: "0xaa 0x8f 0x2d 0x55", expected: []byte{0xAA, 0x8F, 0x2D, 0x55}},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			data, err := parseFrameHex(tt.input)
			s.Require().NoError(err)
			s.Equal(tt.expected, data)
		})
	}

	_, err := parseFrameHex("aa8g")
	s.ErrorContains(err, "invalid hex data")
}

func (s *DecodeTestSuite) TestDecodeText() {
	// GOAL: Verify frames decode to readable lines and failures are listed with their reason
	//
	// TEST SCENARIO: Decode temperature, battery, bad framing and bad hex → one line each → error summary

	out, err := s.ExecuteCommand("decode", "aa8f1955", "AA:8E:B2:55", "ab8f1955", "zz")
	s.Require().EqualError(err, "2 of 4 frames could not be decoded")

	testutils.NewTextAsserter(s.T()).Assert(out, `
aa8f1955    temperature  2.5 °C / 37 °F
aa8eb255    battery      Charging 50 %
ab8f1955    error        invalid_framing: ab 8f 19 55
zz          error        invalid hex data: encoding/hex: invalid byte: U+007A 'z'
`)
}

func (s *DecodeTestSuite) TestDecodeJSON() {
	// GOAL: Verify --json emits one object per frame including rejected ones
	//
	// TEST SCENARIO: Decode mains-powered battery, discharging battery and short frame → three JSON lines

	out, err := s.ExecuteCommand("decode", "--json", "aa8e8055", "aa8e7f55", "aa8e55")
	s.Require().Error(err)

	testutils.NewJSONAsserter(s.T()).AssertLines(out,
		`{"frame":"aa8e8055","kind":"battery","status":"Plugged in main"}`,
		`{"frame":"aa8e7f55","kind":"battery","status":"Discharging","percent":100}`,
		`{"frame":"aa8e55","reason":"invalid_length","error":"invalid_length: aa 8e 55"}`,
	)
}

func (s *DecodeTestSuite) TestDecodeRequiresFrame() {
	_, err := s.ExecuteCommand("decode")
	s.Error(err)
}

func TestDecodeTestSuite(t *testing.T) {
	suite.Run(t, new(DecodeTestSuite))
}
