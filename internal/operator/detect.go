// Package operator resuelve la red emisora de una SIM a partir de su ICCID,
// IMSI o MSISDN, sin llamar a ningún proveedor.
package operator

import (
	"strings"

	"simfleet-svr/internal/sim"
)

const (
	SourceIMSI     = "imsi"
	SourceICCID    = "iccid"
	SourceMSISDN   = "msisdn"
	SourceProvider = "provider"
	SourceNone     = "none"
)

// ValidICCID verifica el dígito de control Luhn. Los ICCID de 18 dígitos
// vienen sin dígito de control y se aceptan tal cual.
func ValidICCID(iccid string) bool {
	if len(iccid) < 18 || len(iccid) > 22 || !allDigits(iccid) {
		return false
	}
	if !strings.HasPrefix(iccid, "89") {
		return false
	}
	if len(iccid) == 18 {
		return true
	}
	return luhn(iccid)
}

func luhn(s string) bool {
	sum := 0
	double := false
	for i := len(s) - 1; i >= 0; i-- {
		d := int(s[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

// LuhnDigit calcula el dígito de control para un ICCID sin él.
func LuhnDigit(partial string) byte {
	for d := byte('0'); d <= '9'; d++ {
		if luhn(partial + string(d)) {
			return d
		}
	}
	return '0'
}

// DetectFromICCID busca el prefijo de emisor más largo y, si no hay, al menos
// el país por el código E.164 que sigue al "89".
func DetectFromICCID(iccid string) (sim.Operator, bool) {
	if len(iccid) < 4 || !strings.HasPrefix(iccid, "89") || !allDigits(iccid) {
		return sim.Operator{}, false
	}
	for n := 8; n >= 5; n-- {
		if n > len(iccid) {
			continue
		}
		if is, ok := iccidIssuers[iccid[:n]]; ok {
			return sim.Operator{
				Name: is.Name, Country: is.Country, MCC: is.MCC, MNC: is.MNC,
				Platform: is.Platform, Source: SourceICCID,
			}, true
		}
	}
	// Norteamérica usa "01" tras el 89
	if cc, ok := countryFromCallingCode(strings.TrimPrefix(iccid[2:], "0")); ok {
		return sim.Operator{Country: cc, Source: SourceICCID}, true
	}
	return sim.Operator{}, false
}

// SplitIMSI separa MCC y MNC; el largo del MNC depende del MCC.
func SplitIMSI(imsi string) (mcc, mnc string, ok bool) {
	if len(imsi) < 6 || !allDigits(imsi) {
		return "", "", false
	}
	mcc = imsi[:3]
	if threeDigitMNC[mcc] {
		return mcc, imsi[3:6], true
	}
	return mcc, imsi[3:5], true
}

func DetectFromIMSI(imsi string) (sim.Operator, bool) {
	mcc, mnc, ok := SplitIMSI(imsi)
	if !ok {
		return sim.Operator{}, false
	}
	op := sim.Operator{
		Name:     networks[mcc+mnc],
		Country:  mccCountries[mcc],
		MCC:      mcc,
		MNC:      mnc,
		Platform: networkPlatforms[mcc+mnc],
		Source:   SourceIMSI,
	}
	if !op.Known() {
		return sim.Operator{}, false
	}
	return op, true
}

func DetectFromMSISDN(msisdn string) (sim.Operator, bool) {
	digits := sim.NormalizeMSISDN(msisdn)
	if len(digits) < 6 {
		return sim.Operator{}, false
	}
	cc, ok := countryFromCallingCode(digits)
	if !ok {
		return sim.Operator{}, false
	}
	return sim.Operator{Country: cc, Source: SourceMSISDN}, true
}

// Detect combina las fuentes: IMSI > emisor ICCID > país del MSISDN. Si nada
// resuelve y la SIM vino de un proveedor conocido, queda la plataforma.
func Detect(s sim.SIM) sim.Operator {
	if op, ok := DetectFromIMSI(s.IMSI); ok {
		if op.Name == "" {
			if byICCID, ok := DetectFromICCID(s.ICCID); ok && byICCID.Country == op.Country {
				op.Name = byICCID.Name
			}
		}
		if op.Platform == "" {
			op.Platform = platformFor(s)
		}
		return op
	}
	if op, ok := DetectFromICCID(s.ICCID); ok {
		if op.Platform == "" {
			op.Platform = platformFor(s)
		}
		return op
	}
	if op, ok := DetectFromMSISDN(s.MSISDN); ok {
		op.Platform = platformFor(s)
		return op
	}
	if p := platformFor(s); p != sim.ProviderUnknown {
		return sim.Operator{Platform: p, Source: SourceProvider}
	}
	return sim.Operator{Source: SourceNone}
}

// WithPlatform completa la plataforma con el proveedor de la SIM cuando el
// emisor del ICCID no la fija.
func WithPlatform(op sim.Operator, s sim.SIM) sim.Operator {
	if op.Platform == "" {
		op.Platform = platformFor(s)
	}
	return op
}

// PlatformForICCID dice qué proveedor de gestión emite ese ICCID, si se sabe.
func PlatformForICCID(iccid string) sim.Provider {
	op, ok := DetectFromICCID(iccid)
	if !ok {
		return sim.ProviderUnknown
	}
	return op.Platform
}

func platformFor(s sim.SIM) sim.Provider {
	if s.Provider == sim.ProviderFlespi {
		return sim.ProviderUnknown
	}
	return s.Provider
}

func countryFromCallingCode(digits string) (string, bool) {
	for n := 3; n >= 1; n-- {
		if len(digits) < n {
			continue
		}
		if cc, ok := callingCodes[digits[:n]]; ok {
			return cc, true
		}
	}
	return "", false
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
