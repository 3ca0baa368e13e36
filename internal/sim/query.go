package sim

import (
	"sort"
	"strings"
)

const (
	DefaultPageSize = 25
	MaxPageSize     = 500
)

type SortKey string

const (
	SortICCID    SortKey = "iccid"
	SortMSISDN   SortKey = "msisdn"
	SortLabel    SortKey = "label"
	SortLastSeen SortKey = "lastSeen"
	SortProvider SortKey = "provider"
)

type Query struct {
	Text     string
	Provider Provider
	Status   Status
	Sort     SortKey
	Desc     bool
}

func (q Query) matches(s SIM) bool {
	if q.Provider != ProviderUnknown && s.Provider != q.Provider {
		return false
	}
	if q.Status != "" && s.Status != q.Status {
		return false
	}
	text := strings.ToLower(strings.TrimSpace(q.Text))
	if text == "" {
		return true
	}
	fields := []string{s.ICCID, s.MSISDN, s.IMEI, s.IMSI, s.Label, s.Operator.Name}
	for _, f := range fields {
		if f != "" && strings.Contains(strings.ToLower(f), text) {
			return true
		}
	}
	// "+33 6 12..." contra un MSISDN normalizado
	if digits := NormalizeMSISDN(text); digits != "" && digits != text && strings.Contains(s.MSISDN, digits) {
		return true
	}
	return false
}

// Filter no modifica items.
func Filter(items []SIM, q Query) []SIM {
	out := make([]SIM, 0, len(items))
	for _, s := range items {
		if q.matches(s) {
			out = append(out, s)
		}
	}
	return out
}

// Sort ordena en sitio de forma estable. Una clave vacía o desconocida deja el orden.
func Sort(items []SIM, key SortKey, desc bool) {
	var less func(a, b SIM) bool
	switch key {
	case SortICCID:
		less = func(a, b SIM) bool { return a.ICCID < b.ICCID }
	case SortMSISDN:
		less = func(a, b SIM) bool { return a.MSISDN < b.MSISDN }
	case SortLabel:
		less = func(a, b SIM) bool { return strings.ToLower(a.Label) < strings.ToLower(b.Label) }
	case SortProvider:
		less = func(a, b SIM) bool { return a.Provider < b.Provider }
	case SortLastSeen:
		less = func(a, b SIM) bool {
			switch {
			case a.LastSeen == nil:
				return b.LastSeen != nil
			case b.LastSeen == nil:
				return false
			}
			return a.LastSeen.Before(*b.LastSeen)
		}
	default:
		return
	}
	sort.SliceStable(items, func(i, j int) bool {
		if desc {
			return less(items[j], items[i])
		}
		return less(items[i], items[j])
	})
}

func ParseSortKey(s string) SortKey {
	switch strings.ToLower(s) {
	case "iccid":
		return SortICCID
	case "msisdn":
		return SortMSISDN
	case "label", "name":
		return SortLabel
	case "lastseen", "last_seen":
		return SortLastSeen
	case "provider":
		return SortProvider
	}
	return ""
}

type Page[T any] struct {
	Items      []T `json:"items"`
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// Paginate corta items en páginas 1-based. Una página fuera de rango
// devuelve Items vacío pero con los totales correctos.
func Paginate[T any](items []T, page, size int) Page[T] {
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	if page < 1 {
		page = 1
	}
	total := len(items)
	pages := (total + size - 1) / size
	out := Page[T]{Items: []T{}, Page: page, PageSize: size, Total: total, TotalPages: pages}
	// comparar antes de multiplicar: (page-1)*size desborda con page enorme
	if page > pages {
		return out
	}
	start := (page - 1) * size
	end := start + size
	if end > total {
		end = total
	}
	out.Items = items[start:end]
	return out
}
