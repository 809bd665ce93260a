package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/srg/lifebox/internal/frame"
	"github.com/srg/lifebox/internal/session"
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"golang.org/x/term"
)

// now is replaced in tests for stable timestamps.
var now = time.Now

const textTimeLayout = "15:04:05"

// eventPrinter renders monitor events on stdout.
type eventPrinter interface {
	Measurement(m frame.Measurement)
	State(st session.State, peripheral session.PeripheralInfo)
}

func newEventPrinter(w io.Writer, format string) eventPrinter {
	if format == "json" {
		return &jsonPrinter{w: w}
	}
	return newTextPrinter(w, isTerminal(w))
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

type textPrinter struct {
	w       io.Writer
	label   *color.Color
	value   *color.Color
	state   *color.Color
	warning *color.Color
}

func newTextPrinter(w io.Writer, colored bool) *textPrinter {
	p := &textPrinter{
		w:       w,
		label:   color.New(color.FgCyan),
		value:   color.New(color.Bold),
		state:   color.New(color.FgYellow),
		warning: color.New(color.FgRed),
	}
	for _, c := range []*color.Color{p.label, p.value, p.state, p.warning} {
		if colored {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

func (p *textPrinter) Measurement(m frame.Measurement) {
	ts := now().Format(textTimeLayout)
	switch v := m.(type) {
	case frame.Temperature:
		fmt.Fprintf(p.w, "%s  %s  %s\n", ts, p.label.Sprintf("%-11s", "Temperature"), p.value.Sprint(v))
	case frame.Battery:
		text := p.value.Sprint(v)
		if v.HasPercent && v.Status == frame.Discharging && v.Percent <= lowBatteryPercent {
			text = p.warning.Sprint(v)
		}
		fmt.Fprintf(p.w, "%s  %s  %s\n", ts, p.label.Sprintf("%-11s", "Battery"), text)
	}
}

func (p *textPrinter) State(st session.State, peripheral session.PeripheralInfo) {
	ts := now().Format(textTimeLayout)
	if st == session.Connected && peripheral.Address != "" {
		fmt.Fprintf(p.w, "%s  %s  %s (%s)\n", ts, p.label.Sprintf("%-11s", "State"), p.state.Sprint(st), peripheral.Address)
		return
	}
	fmt.Fprintf(p.w, "%s  %s  %s\n", ts, p.label.Sprintf("%-11s", "State"), p.state.Sprint(st))
}

// lowBatteryPercent highlights a discharging box that needs charging soon.
const lowBatteryPercent = 20

// jsonPrinter writes one JSON object per line with a stable key order.
type jsonPrinter struct {
	w io.Writer
}

func (p *jsonPrinter) Measurement(m frame.Measurement) {
	p.write(measurementRecord(now(), m))
}

func (p *jsonPrinter) State(st session.State, peripheral session.PeripheralInfo) {
	rec := orderedmap.New[string, any]()
	rec.Set("time", now().UTC().Format(time.RFC3339))
	rec.Set("state", st.String())
	if st == session.Connected && peripheral.Address != "" {
		rec.Set("address", peripheral.Address)
	}
	p.write(rec)
}

func (p *jsonPrinter) write(rec *orderedmap.OrderedMap[string, any]) {
	data, err := json.Marshal(rec)
	if err != nil {
		fmt.Fprintf(p.w, "{\"error\":%q}\n", err.Error())
		return
	}
	fmt.Fprintf(p.w, "%s\n", data)
}

// measurementRecord flattens a measurement into an ordered JSON record.
// A zero ts omits the time key.
func measurementRecord(ts time.Time, m frame.Measurement) *orderedmap.OrderedMap[string, any] {
	rec := orderedmap.New[string, any]()
	if !ts.IsZero() {
		rec.Set("time", ts.UTC().Format(time.RFC3339))
	}
	rec.Set("kind", m.Kind().String())
	switch v := m.(type) {
	case frame.Temperature:
		rec.Set("celsius", v.Celsius)
		rec.Set("fahrenheit", v.Fahrenheit())
	case frame.Battery:
		rec.Set("status", v.Status.String())
		if v.HasPercent {
			rec.Set("percent", v.Percent)
		}
	}
	return rec
}
