package main

import (
	"bytes"
	"testing"

	"github.com/srg/lifebox/internal/frame"
	"github.com/srg/lifebox/internal/session"
	"github.com/srg/lifebox/internal/testutils"
	"github.com/stretchr/testify/suite"
)

type PrinterTestSuite struct {
	CommandTestSuite
}

func (s *PrinterTestSuite) TestTextPrinter() {
	// GOAL: Verify plain text rendering of every measurement shape and state
	//
	// TEST SCENARIO: Print temperature, three battery shapes and two states without colors → lines match

	var buf bytes.Buffer
	p := newEventPrinter(&buf, "text")

	p.State(session.Connected, session.PeripheralInfo{Address: "C8:FD:19:AA:00:01", Name: "LifeinaBox"})
	p.Measurement(frame.Temperature{Celsius: 8})
	p.Measurement(frame.DecodeBattery(0x80))
	p.Measurement(frame.DecodeBattery(0x0A))
	p.Measurement(frame.DecodeBattery(0xE4))
	p.State(session.Idle, session.PeripheralInfo{})

	testutils.NewTextAsserter(s.T()).Assert(buf.String(), `
12:00:00  State        connected (C8:FD:19:AA:00:01)
12:00:00  Temperature  8.0 °C / 46 °F
12:00:00  Battery      Plugged in main
12:00:00  Battery      Discharging 10 %
12:00:00  Battery      Charging 100 %
12:00:00  State        idle
`)
}

func (s *PrinterTestSuite) TestTextPrinterColors() {
	var buf bytes.Buffer
	p := newTextPrinter(&buf, true)

	p.Measurement(frame.DecodeBattery(0x05))
	s.Contains(buf.String(), "\x1b[", "colored output MUST contain ANSI escapes")
	s.Contains(buf.String(), "Discharging 5 %")
}

func (s *PrinterTestSuite) TestJSONPrinter() {
	// GOAL: Verify JSON records keep a stable key order
	//
	// TEST SCENARIO: Print temperature and battery → raw lines are byte-identical to expected

	var buf bytes.Buffer
	p := newEventPrinter(&buf, "json")

	p.Measurement(frame.Temperature{Celsius: -1.5})
	p.Measurement(frame.DecodeBattery(0x32))
	p.State(session.Disconnecting, session.PeripheralInfo{Address: "C8:FD:19:AA:00:01"})

	s.Equal(
		`{"time":"2026-03-14T12:00:00Z","kind":"temperature","celsius":-1.5,"fahrenheit":29}`+"\n"+
			`{"time":"2026-03-14T12:00:00Z","kind":"battery","status":"Discharging","percent":50}`+"\n"+
			`{"time":"2026-03-14T12:00:00Z","state":"disconnecting"}`+"\n",
		buf.String())
}

func TestPrinterTestSuite(t *testing.T) {
	suite.Run(t, new(PrinterTestSuite))
}
