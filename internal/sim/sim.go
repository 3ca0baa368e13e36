package sim

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrNotFound     = errors.New("sim not found")
	ErrInvalidICCID = errors.New("invalid iccid")
	ErrUnsupported  = errors.New("operation not supported by provider")
)

type Provider string

const (
	ProviderThingsMobile Provider = "thingsmobile"
	ProviderPhenix       Provider = "phenix"
	ProviderTruphone     Provider = "truphone"
	ProviderFlespi       Provider = "flespi"
	ProviderUnknown      Provider = ""
)

func ParseProvider(s string) (Provider, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "thingsmobile", "things_mobile", "things-mobile", "tm":
		return ProviderThingsMobile, true
	case "phenix":
		return ProviderPhenix, true
	case "truphone", "1global", "oneglobal":
		return ProviderTruphone, true
	case "flespi":
		return ProviderFlespi, true
	}
	return ProviderUnknown, false
}

// Operator identifica la red que emitió la SIM.
type Operator struct {
	Name    string `json:"name,omitempty"`
	Country string `json:"country,omitempty"` // ISO 3166 alpha-2
	MCC     string `json:"mcc,omitempty"`
	MNC     string `json:"mnc,omitempty"`
	// Platform es el proveedor de gestión que emite ese rango, si lo conocemos.
	Platform Provider `json:"platform,omitempty"`
	Source   string   `json:"source,omitempty"`
}

func (o Operator) Known() bool { return o.Name != "" || o.Country != "" }

// SIM es la vista unificada, independiente del proveedor.
type SIM struct {
	ICCID          string     `json:"iccid"`
	MSISDN         string     `json:"msisdn,omitempty"`
	IMSI           string     `json:"imsi,omitempty"`
	IMEI           string     `json:"imei,omitempty"`
	Provider       Provider   `json:"provider"`
	Operator       Operator   `json:"operator"`
	Status         Status     `json:"status"`
	RawStatus      string     `json:"raw_status,omitempty"`
	Label          string     `json:"label,omitempty"`
	Tags           []string   `json:"tags,omitempty"`
	DataUsageBytes int64      `json:"data_usage_bytes,omitempty"`
	DataLimitBytes int64      `json:"data_limit_bytes,omitempty"`
	Balance        float64    `json:"balance,omitempty"`
	LastSeen       *time.Time `json:"last_seen,omitempty"`
}

// Merge completa a con lo que b sabe del mismo ICCID. El proveedor de a manda.
func Merge(a, b SIM) SIM {
	out := a
	if out.ICCID == "" {
		out.ICCID = b.ICCID
	}
	if out.MSISDN == "" {
		out.MSISDN = b.MSISDN
	}
	if out.IMSI == "" {
		out.IMSI = b.IMSI
	}
	if out.IMEI == "" {
		out.IMEI = b.IMEI
	}
	if out.Provider == ProviderUnknown {
		out.Provider = b.Provider
	}
	if !out.Operator.Known() {
		out.Operator = b.Operator
	}
	if out.Status == "" || out.Status == StatusUnknown {
		if b.Status != "" {
			out.Status = b.Status
			out.RawStatus = b.RawStatus
		}
	}
	if out.Label == "" {
		out.Label = b.Label
	}
	if len(out.Tags) == 0 && len(b.Tags) > 0 {
		out.Tags = append([]string(nil), b.Tags...)
	}
	if out.DataUsageBytes == 0 {
		out.DataUsageBytes = b.DataUsageBytes
	}
	if out.DataLimitBytes == 0 {
		out.DataLimitBytes = b.DataLimitBytes
	}
	if out.Balance == 0 {
		out.Balance = b.Balance
	}
	if b.LastSeen != nil && (out.LastSeen == nil || b.LastSeen.After(*out.LastSeen)) {
		ts := *b.LastSeen
		out.LastSeen = &ts
	}
	return out
}

// MergeAll agrupa por ICCID conservando el orden de primera aparición.
func MergeAll(lists ...[]SIM) []SIM {
	idx := make(map[string]int)
	var out []SIM
	for _, list := range lists {
		for _, s := range list {
			key := s.ICCID
			if key == "" {
				out = append(out, s)
				continue
			}
			if i, ok := idx[key]; ok {
				out[i] = Merge(out[i], s)
				continue
			}
			idx[key] = len(out)
			out = append(out, s)
		}
	}
	return out
}

// NormalizeICCID deja sólo dígitos y quita el padding 'F' final que algunos
// módems reportan. Devuelve ErrInvalidICCID si no quedan 18-22 dígitos.
func NormalizeICCID(raw string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = strings.TrimRight(s, "F")
	var sb strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			sb.WriteRune(r)
		case r == ' ' || r == '-' || r == '.':
		default:
			return "", ErrInvalidICCID
		}
	}
	out := sb.String()
	if len(out) < 18 || len(out) > 22 {
		return "", ErrInvalidICCID
	}
	return out, nil
}

// NormalizeMSISDN quita '+', espacios, guiones y el prefijo internacional 00.
func NormalizeMSISDN(raw string) string {
	var sb strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		if r >= '0' && r <= '9' {
			sb.WriteRune(r)
		}
	}
	return strings.TrimPrefix(sb.String(), "00")
}
