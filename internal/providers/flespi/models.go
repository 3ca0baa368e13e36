package flespi

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"simfleet-svr/internal/operator"
)

type Device struct {
	ID           int64      `json:"id"`
	Name         string     `json:"name"`
	DeviceTypeID int64      `json:"device_type_id,omitempty"`
	IMEI         string     `json:"imei,omitempty"`
	Phone        string     `json:"phone,omitempty"`
	Connected    bool       `json:"connected"`
	LastActive   *time.Time `json:"last_active,omitempty"`
}

type TelemetryValue struct {
	Value json.RawMessage `json:"value"`
	TS    float64         `json:"ts"`
}

// Telemetry es param → último valor, tal como lo da /telemetry/all.
type Telemetry map[string]TelemetryValue

func (t Telemetry) Text(key string) (string, bool) {
	v, ok := t[key]
	if !ok || len(v.Value) == 0 {
		return "", false
	}
	var s string
	if err := json.Unmarshal(v.Value, &s); err == nil {
		return s, true
	}
	var n json.Number
	if err := json.Unmarshal(v.Value, &n); err == nil {
		return n.String(), true
	}
	return "", false
}

func (t Telemetry) Float(key string) (float64, bool) {
	s, ok := t.Text(key)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	return f, err == nil
}

// ICCID busca el ICCID en los parámetros habituales y, si no está, lo
// reconstruye desde io.219..io.221 (Teltonika).
func (t Telemetry) ICCID() string {
	for _, key := range []string{"gsm.sim.iccid", "sim.iccid", "iccid", "modem.iccid"} {
		if s, ok := t.Text(key); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	params := map[string]any{}
	for _, id := range []int{operator.ICCIDPart1, operator.ICCIDPart2, operator.ICCIDPart3} {
		key := "io." + strconv.Itoa(id)
		s, ok := t.Text(key)
		if !ok {
			return ""
		}
		params[key] = s
	}
	return operator.DecodeICCIDFromParams(params)
}

func (t Telemetry) IMSI() string {
	for _, key := range []string{"gsm.sim.imsi", "sim.imsi", "imsi"} {
		if s, ok := t.Text(key); ok && s != "" {
			return s
		}
	}
	return ""
}

// Position es la última posición reportada.
type Position struct {
	Lat        float64    `json:"lat"`
	Lon        float64    `json:"lon"`
	Speed      float64    `json:"speed"`
	Satellites int        `json:"satellites"`
	Fix        int        `json:"fix"` // 1 si sats>3 y coords válidas
	Timestamp  *time.Time `json:"ts,omitempty"`
}

func (t Telemetry) Position() (Position, bool) {
	lat, okLat := t.Float("position.latitude")
	lon, okLon := t.Float("position.longitude")
	if !okLat || !okLon {
		return Position{}, false
	}
	p := Position{Lat: lat, Lon: lon}
	if spd, ok := t.Float("position.speed"); ok {
		p.Speed = spd
	}
	if sats, ok := t.Float("position.satellites"); ok {
		p.Satellites = int(sats)
	}
	p.Fix = CalcFix(p.Satellites, lat, lon)
	if v, ok := t["position.latitude"]; ok && v.TS > 0 {
		ts := unixFloat(v.TS)
		p.Timestamp = &ts
	}
	return p, true
}

func coordsValid(lat, lon float64) bool {
	if lat == 0 && lon == 0 {
		return false
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return false
	}
	return true
}

func CalcFix(sats int, lat, lon float64) int {
	if sats > 3 && coordsValid(lat, lon) {
		return 1
	}
	return 0
}

type AssetKind string

const (
	KindClient  AssetKind = "client"
	KindVehicle AssetKind = "vehicle"
	KindDriver  AssetKind = "driver"
	KindOther   AssetKind = "other"
)

type Asset struct {
	ID       int64          `json:"id"`
	Name     string         `json:"name"`
	Kind     AssetKind      `json:"kind"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// KindFromMetadata lee metadata.type (o "kind"/"category"); acepta los
// nombres en francés que usan algunas cuentas.
func KindFromMetadata(md map[string]any) AssetKind {
	for _, key := range []string{"type", "kind", "category"} {
		v, ok := md[key].(string)
		if !ok {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "client", "customer":
			return KindClient
		case "vehicle", "véhicule", "vehicule", "car", "truck":
			return KindVehicle
		case "driver", "chauffeur", "conducteur":
			return KindDriver
		}
	}
	return KindOther
}

type Interval struct {
	ID       int64     `json:"id"`
	DeviceID int64     `json:"device_id"`
	Begin    time.Time `json:"begin"`
	End      time.Time `json:"end,omitempty"` // cero = abierto
}

// Active: begin en el pasado y end abierto o en el futuro.
func (iv Interval) Active(now time.Time) bool {
	if iv.Begin.After(now) {
		return false
	}
	return iv.End.IsZero() || iv.End.After(now)
}

// CurrentDevice devuelve el device del intervalo activo más reciente.
func CurrentDevice(intervals []Interval, now time.Time) (int64, bool) {
	var best *Interval
	for i := range intervals {
		iv := &intervals[i]
		if !iv.Active(now) {
			continue
		}
		if best == nil || iv.Begin.After(best.Begin) {
			best = iv
		}
	}
	if best == nil {
		return 0, false
	}
	return best.DeviceID, true
}
