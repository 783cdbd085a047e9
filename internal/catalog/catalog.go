// Package catalog holds the fixed tables of hardware lines, buzzer sounds and
// sensors exposed by the QNAP TVS-663 mainboard. Everything here is immutable;
// runtime state lives with the handlers that own it.
package catalog

import (
	"errors"
	"fmt"
)

// ErrUnknownLine is returned when a name is not present in a catalog.
var ErrUnknownLine = errors.New("unknown line")

// Line is one digital line on the Super I/O chip, addressed by the selector
// written to the index register and the bit inside the data byte.
type Line struct {
	Name string
	Port uint8
	Bit  uint8
}

func (l Line) String() string {
	return fmt.Sprintf("%s(0x%02X:%d)", l.Name, l.Port, l.Bit)
}

// Sound is a buzzer pattern understood by the vendor HAL binary.
type Sound struct {
	Name string
	ID   int
}

// Sensor is a value reported by lm-sensors, identified by chip and key.
type Sensor struct {
	Name string
	Chip string
	Key  string
}

// The first two disks also have a blinking LED reachable over I2C; it is not
// part of this table.
var leds = [...]Line{
	{Name: "Status_Green", Port: 0x91, Bit: 2},
	{Name: "Status_Red", Port: 0x91, Bit: 3},
	{Name: "Front_USB", Port: 0xE1, Bit: 7},
	{Name: "Disk1_Present", Port: 0xB1, Bit: 2},
	{Name: "Disk2_Present", Port: 0xB1, Bit: 3},
	{Name: "Disk1_Error", Port: 0x81, Bit: 0},
	{Name: "Disk2_Error", Port: 0x81, Bit: 1},
	{Name: "Disk3_Error", Port: 0x81, Bit: 2},
	{Name: "Disk4_Error", Port: 0x81, Bit: 3},
	{Name: "Disk5_Error", Port: 0x81, Bit: 4},
	{Name: "Disk6_Error", Port: 0x81, Bit: 5},
}

var buttons = [...]Line{
	{Name: "Reset", Port: 0x92, Bit: 1},
	{Name: "USB_Copy", Port: 0xE2, Bit: 2},
}

var sounds = [...]Sound{
	{Name: "Beep", ID: 0},
	{Name: "Online", ID: 1},
	{Name: "Ready", ID: 2},
	{Name: "Alert", ID: 3},
	{Name: "Outage", ID: 8},
	{Name: "Completed", ID: 12},
	{Name: "Error", ID: 14},
}

const superIOChip = "f71869a-isa-0a20"

var temps = [...]Sensor{
	{Name: "CPU", Chip: "k10temp-pci-00c3", Key: "temp1_input"},
	{Name: "Eth2", Chip: "eth2-pci-0300", Key: "temp1_input"},
	{Name: "Temp1", Chip: superIOChip, Key: "temp1_input"},
	{Name: "Temp2", Chip: superIOChip, Key: "temp2_input"},
	{Name: "Temp3", Chip: superIOChip, Key: "temp3_input"},
}

var fans = [...]Sensor{
	{Name: "Fan1", Chip: superIOChip, Key: "fan1_input"},
	{Name: "Fan2", Chip: superIOChip, Key: "fan2_input"},
}

// LEDs returns the LED lines in catalog order. The slice is a copy.
func LEDs() []Line { return append([]Line(nil), leds[:]...) }

// Buttons returns the button lines in catalog order. The slice is a copy.
func Buttons() []Line { return append([]Line(nil), buttons[:]...) }

// Sounds returns the buzzer sounds.
func Sounds() []Sound { return append([]Sound(nil), sounds[:]...) }

// Temps returns the temperature sensors.
func Temps() []Sensor { return append([]Sensor(nil), temps[:]...) }

// Fans returns the fan speed sensors.
func Fans() []Sensor { return append([]Sensor(nil), fans[:]...) }

// LED looks up an LED by name.
func LED(name string) (Line, error) { return find(leds[:], "LED", name) }

// Button looks up a button by name.
func Button(name string) (Line, error) { return find(buttons[:], "button", name) }

// SoundByName looks up a buzzer sound by name.
func SoundByName(name string) (Sound, error) {
	for _, s := range sounds {
		if s.Name == name {
			return s, nil
		}
	}
	return Sound{}, fmt.Errorf("sound %q: %w", name, ErrUnknownLine)
}

// Temp looks up a temperature sensor by name.
func Temp(name string) (Sensor, error) { return findSensor(temps[:], "temperature sensor", name) }

// Fan looks up a fan sensor by name.
func Fan(name string) (Sensor, error) { return findSensor(fans[:], "fan", name) }

// Names returns the names of the given lines, in order.
func Names(lines []Line) []string {
	names := make([]string, len(lines))
	for i, l := range lines {
		names[i] = l.Name
	}
	return names
}

func find(lines []Line, kind, name string) (Line, error) {
	for _, l := range lines {
		if l.Name == name {
			return l, nil
		}
	}
	return Line{}, fmt.Errorf("%s %q: %w", kind, name, ErrUnknownLine)
}

func findSensor(sensors []Sensor, kind, name string) (Sensor, error) {
	for _, s := range sensors {
		if s.Name == name {
			return s, nil
		}
	}
	return Sensor{}, fmt.Errorf("%s %q: %w", kind, name, ErrUnknownLine)
}
