package siv

import (
	"errors"
	"regexp"
	"strings"
)

var ErrInvalidPlate = errors.New("invalid registration plate")

var (
	// SIV (desde 2009): AA-123-AA
	reSIV = regexp.MustCompile(`^([A-Z]{2})([0-9]{3})([A-Z]{2})$`)
	// FNI (antiguo): 1-4 dígitos, 1-3 letras, departamento (2 dígitos, 2A/2B, o 97x)
	reFNI = regexp.MustCompile(`^([0-9]{1,4})([A-Z]{1,3})(97[1-6]|2A|2B|[0-9]{2})$`)
)

// NormalizePlate devuelve la matrícula en forma canónica ("AB-123-CD" o
// "123 ABC 75"). Acepta espacios, guiones o nada como separadores.
func NormalizePlate(raw string) (string, error) {
	var sb strings.Builder
	for _, r := range strings.ToUpper(strings.TrimSpace(raw)) {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		case r == ' ' || r == '-' || r == '.':
		default:
			return "", ErrInvalidPlate
		}
	}
	s := sb.String()
	if m := reSIV.FindStringSubmatch(s); m != nil {
		// I, O y U no se usan; SS tampoco como primer bloque
		if strings.ContainsAny(m[1]+m[3], "IOU") || m[1] == "SS" {
			return "", ErrInvalidPlate
		}
		return m[1] + "-" + m[2] + "-" + m[3], nil
	}
	if m := reFNI.FindStringSubmatch(s); m != nil {
		return m[1] + " " + m[2] + " " + m[3], nil
	}
	return "", ErrInvalidPlate
}
