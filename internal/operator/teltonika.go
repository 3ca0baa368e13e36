package operator

import (
	"encoding/binary"
	"strconv"
	"strings"
)

// Parámetros AVL de Teltonika donde el equipo guarda el ICCID, 8 dígitos ASCII por parte.
const (
	ICCIDPart1 = 219
	ICCIDPart2 = 220
	ICCIDPart3 = 221
)

// Cada chunk es un uint64 que, en memoria, son 8 bytes big-endian.
// Esos 8 bytes contienen dígitos ASCII ('0'–'9') o padding.
// Ejemplo: 4051327829469704249 → bytes → "89520209"
func decodeICCIDChunk(u uint64) string {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], u)

	var sb strings.Builder
	for _, b := range buf {
		if b >= '0' && b <= '9' {
			sb.WriteByte(b)
		}
	}
	return sb.String()
}

// DecodeICCIDParts une las 3 partes (219,220,221) en un ICCID ASCII.
// Devuelve "" si el resultado no tiene pinta de ICCID.
func DecodeICCIDParts(p1, p2, p3 uint64) string {
	iccid := decodeICCIDChunk(p1) + decodeICCIDChunk(p2) + decodeICCIDChunk(p3)
	if len(iccid) < 18 {
		return ""
	}
	return iccid
}

// DecodeICCIDFromParams acepta los valores tal como llegan en telemetría
// (número JSON o string decimal) bajo las claves io.219..io.221.
func DecodeICCIDFromParams(params map[string]any) string {
	parts := [3]uint64{}
	for i, id := range []int{ICCIDPart1, ICCIDPart2, ICCIDPart3} {
		v, ok := params["io."+strconv.Itoa(id)]
		if !ok {
			return ""
		}
		u, ok := toUint64(v)
		if !ok {
			return ""
		}
		parts[i] = u
	}
	return DecodeICCIDParts(parts[0], parts[1], parts[2])
}

func toUint64(v any) (uint64, bool) {
	switch x := v.(type) {
	case uint64:
		return x, true
	case int64:
		return uint64(x), x >= 0
	case int:
		return uint64(x), x >= 0
	case float64:
		// los enteros de 19 dígitos pierden precisión en float64; sólo sirve si vino exacto
		if x < 0 {
			return 0, false
		}
		return uint64(x), true
	case string:
		u, err := strconv.ParseUint(strings.TrimSpace(x), 10, 64)
		return u, err == nil
	case interface{ String() string }:
		u, err := strconv.ParseUint(x.String(), 10, 64)
		return u, err == nil
	}
	return 0, false
}

// ParseCommandReply extrae el ICCID de la respuesta a un comando SMS/GPRS.
// Soporta "ICCID: 8952..." (getimeiccid) y "Param values: 219:...,220:...,221:..." (getparam).
func ParseCommandReply(text string) string {
	t := strings.TrimSpace(text)
	lt := strings.ToLower(t)

	if i := strings.Index(lt, "iccid:"); i >= 0 {
		val := strings.TrimSpace(t[i+len("iccid:"):])
		if f := strings.Fields(val); len(f) > 0 {
			val = f[0]
		}
		if len(val) >= 18 && allDigits(val) {
			return val
		}
		return ""
	}

	if strings.Contains(lt, "param values") {
		m := parseParamValues(t)
		var parts [3]uint64
		for i, id := range []int{ICCIDPart1, ICCIDPart2, ICCIDPart3} {
			s, ok := m[id]
			if !ok {
				return ""
			}
			u, err := strconv.ParseUint(s, 10, 64)
			if err != nil {
				return ""
			}
			parts[i] = u
		}
		return DecodeICCIDParts(parts[0], parts[1], parts[2])
	}
	return ""
}

// extrae map[ID]valueDecimal de la respuesta de getparam
func parseParamValues(s string) map[int]string {
	out := map[int]string{}
	idx := strings.Index(strings.ToLower(s), "param values:")
	if idx >= 0 {
		s = s[idx+len("param values:"):]
	}
	for _, c := range strings.Split(s, ",") {
		c = strings.TrimSpace(c)
		id, val, ok := strings.Cut(c, ":")
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(id))
		if err != nil {
			continue
		}
		out[n] = strings.TrimSpace(val)
	}
	return out
}
