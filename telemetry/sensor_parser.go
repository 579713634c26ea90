package telemetry

import (
	"encoding/json"
	"time"

	"github.com/northlane/tasmoctl/state"
	"github.com/northlane/tasmoctl/tasmoerr"
)

// tasmotaTimeLayout matches Tasmota's ISO-8601-without-timezone datetime
// strings, e.g. "2024-01-15T10:30:00".
const tasmotaTimeLayout = "2006-01-02T15:04:05"

// EnergyReading is Tasmota's ENERGY telemetry block. Every field is optional
// since not all devices report every value.
type EnergyReading struct {
	TotalStartTime *string  `json:"TotalStartTime,omitempty"`
	Today          *float32 `json:"Today,omitempty"`
	Yesterday      *float32 `json:"Yesterday,omitempty"`
	Total          *float32 `json:"Total,omitempty"`
	Power          *uint32  `json:"Power,omitempty"`
	ApparentPower  *uint32  `json:"ApparentPower,omitempty"`
	ReactivePower  *uint32  `json:"ReactivePower,omitempty"`
	Factor         *float32 `json:"Factor,omitempty"`
	Voltage        *uint16  `json:"Voltage,omitempty"`
	Current        *float32 `json:"Current,omitempty"`
	Frequency      *float32 `json:"Frequency,omitempty"`
}

// HasPowerData reports whether any instantaneous power-related field is set.
func (e EnergyReading) HasPowerData() bool {
	return e.Power != nil || e.Voltage != nil || e.Current != nil
}

// HasConsumptionData reports whether any cumulative consumption field is set.
func (e EnergyReading) HasConsumptionData() bool {
	return e.Today != nil || e.Yesterday != nil || e.Total != nil
}

// TemperatureSensor is a single-value temperature probe (e.g. DS18B20).
type TemperatureSensor struct {
	Temperature *float32 `json:"Temperature,omitempty"`
	ID          *string  `json:"Id,omitempty"`
}

// DhtSensor is a DHT11/DHT21/AM2301-family temperature+humidity sensor.
type DhtSensor struct {
	Temperature *float32 `json:"Temperature,omitempty"`
	Humidity    *float32 `json:"Humidity,omitempty"`
	DewPoint    *float32 `json:"DewPoint,omitempty"`
}

// Bme280Sensor adds atmospheric pressure on top of DhtSensor's fields.
type Bme280Sensor struct {
	Temperature *float32 `json:"Temperature,omitempty"`
	Humidity    *float32 `json:"Humidity,omitempty"`
	DewPoint    *float32 `json:"DewPoint,omitempty"`
	Pressure    *float32 `json:"Pressure,omitempty"`
}

// Sensor is the parsed shape of a tele/<topic>/SENSOR message.
type Sensor struct {
	Time        *string        `json:"Time,omitempty"`
	Energy      *EnergyReading `json:"ENERGY,omitempty"`
	Temperature *float32       `json:"Temperature,omitempty"`
	Humidity    *float32       `json:"Humidity,omitempty"`
	Pressure    *float32       `json:"Pressure,omitempty"`
	DS18B20     *TemperatureSensor `json:"DS18B20,omitempty"`
	DHT11       *DhtSensor         `json:"DHT11,omitempty"`
	AM2301      *DhtSensor         `json:"AM2301,omitempty"`
	BME280      *Bme280Sensor      `json:"BME280,omitempty"`
}

// ParseSensor parses a SENSOR telemetry JSON payload.
func ParseSensor(payload []byte) (Sensor, error) {
	var s Sensor
	if err := json.Unmarshal(payload, &s); err != nil {
		return Sensor{}, tasmoerr.Json(err)
	}
	return s, nil
}

// TemperatureValue returns the best available temperature reading, checking
// in order: the direct field, DS18B20, DHT11, AM2301, BME280.
func (s Sensor) TemperatureValue() (float32, bool) {
	if s.Temperature != nil {
		return *s.Temperature, true
	}
	if s.DS18B20 != nil && s.DS18B20.Temperature != nil {
		return *s.DS18B20.Temperature, true
	}
	if s.DHT11 != nil && s.DHT11.Temperature != nil {
		return *s.DHT11.Temperature, true
	}
	if s.AM2301 != nil && s.AM2301.Temperature != nil {
		return *s.AM2301.Temperature, true
	}
	if s.BME280 != nil && s.BME280.Temperature != nil {
		return *s.BME280.Temperature, true
	}
	return 0, false
}

// HumidityValue returns the best available humidity reading: direct field,
// DHT11, AM2301, BME280.
func (s Sensor) HumidityValue() (float32, bool) {
	if s.Humidity != nil {
		return *s.Humidity, true
	}
	if s.DHT11 != nil && s.DHT11.Humidity != nil {
		return *s.DHT11.Humidity, true
	}
	if s.AM2301 != nil && s.AM2301.Humidity != nil {
		return *s.AM2301.Humidity, true
	}
	if s.BME280 != nil && s.BME280.Humidity != nil {
		return *s.BME280.Humidity, true
	}
	return 0, false
}

// PressureValue returns the best available pressure reading: direct field,
// BME280.
func (s Sensor) PressureValue() (float32, bool) {
	if s.Pressure != nil {
		return *s.Pressure, true
	}
	if s.BME280 != nil && s.BME280.Pressure != nil {
		return *s.BME280.Pressure, true
	}
	return 0, false
}

// ToStateChanges reduces the sensor message to state changes. Only energy
// readings feed DeviceState today; temperature/humidity/pressure are exposed
// via the accessors above for callers that want raw environmental data
// without growing DeviceState's update-callback surface.
func (s Sensor) ToStateChanges() []state.Change {
	var changes []state.Change
	if s.Energy == nil {
		return changes
	}
	e := *s.Energy
	if !e.HasPowerData() && !e.HasConsumptionData() {
		return changes
	}

	energy := state.Energy{
		Current:         e.Current,
		PowerFactor:     e.Factor,
		EnergyToday:     e.Today,
		EnergyYesterday: e.Yesterday,
		EnergyTotal:     e.Total,
	}
	if e.Power != nil {
		p := float32(*e.Power)
		energy.Power = &p
	}
	if e.Voltage != nil {
		v := float32(*e.Voltage)
		energy.Voltage = &v
	}
	if e.ApparentPower != nil {
		v := float32(*e.ApparentPower)
		energy.ApparentPower = &v
	}
	if e.ReactivePower != nil {
		v := float32(*e.ReactivePower)
		energy.ReactivePower = &v
	}
	if e.TotalStartTime != nil {
		if t, err := time.Parse(tasmotaTimeLayout, *e.TotalStartTime); err == nil {
			energy.TotalStartTime = &t
		}
	}

	changes = append(changes, state.EnergyChange(energy))
	return changes
}

// ToSystemInfo always returns an empty SystemInfo: tele/SENSOR carries
// environmental and energy readings only, never uptime, Wi-Fi, or heap
// diagnostics. It exists so the router's dispatch path can treat STATE and
// SENSOR uniformly.
func (s Sensor) ToSystemInfo() state.SystemInfo {
	return state.SystemInfo{}
}

// StatusSns is the response wrapper for the Status 10 command, which returns
// sensor data nested under a StatusSNS key.
type StatusSns struct {
	StatusSNS *Sensor `json:"StatusSNS,omitempty"`
}

// ParseStatusSns parses a Status 10 response payload.
func ParseStatusSns(payload []byte) (StatusSns, error) {
	var s StatusSns
	if err := json.Unmarshal(payload, &s); err != nil {
		return StatusSns{}, tasmoerr.Json(err)
	}
	return s, nil
}

// ToStateChanges delegates to the wrapped Sensor, if present.
func (s StatusSns) ToStateChanges() []state.Change {
	if s.StatusSNS == nil {
		return nil
	}
	return s.StatusSNS.ToStateChanges()
}
