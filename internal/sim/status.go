package sim

import "strings"

type Status string

const (
	StatusActive      Status = "active"
	StatusSuspended   Status = "suspended"
	StatusDeactivated Status = "deactivated"
	StatusInventory   Status = "inventory"
	StatusTest        Status = "test"
	StatusUnknown     Status = "unknown"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusSuspended, StatusDeactivated, StatusInventory, StatusTest, StatusUnknown:
		return true
	}
	return false
}

// Vocabulario de cada proveedor. Claves en minúsculas y sin espacios extremos.
var statusTables = map[Provider]map[string]Status{
	ProviderThingsMobile: {
		"active":      StatusActive,
		"activated":   StatusActive,
		"blocked":     StatusSuspended,
		"suspended":   StatusSuspended,
		"not active":  StatusInventory,
		"notactive":   StatusInventory,
		"to activate": StatusInventory,
		"deactivated": StatusDeactivated,
		"terminated":  StatusDeactivated,
		"test":        StatusTest,
	},
	ProviderPhenix: {
		"active":     StatusActive,
		"actif":      StatusActive,
		"activee":    StatusActive,
		"activée":    StatusActive,
		"suspendu":   StatusSuspended,
		"suspendue":  StatusSuspended,
		"suspended":  StatusSuspended,
		"resilie":    StatusDeactivated,
		"résilié":    StatusDeactivated,
		"resiliee":   StatusDeactivated,
		"résiliée":   StatusDeactivated,
		"terminated": StatusDeactivated,
		"stock":      StatusInventory,
		"inactive":   StatusInventory,
		"en attente": StatusInventory,
	},
	ProviderTruphone: {
		"active":             StatusActive,
		"activated":          StatusActive,
		"suspended":          StatusSuspended,
		"barred":             StatusSuspended,
		"deactivated":        StatusDeactivated,
		"retired":            StatusDeactivated,
		"inventory":          StatusInventory,
		"ready":              StatusInventory,
		"activation_ready":   StatusInventory,
		"test":               StatusTest,
		"test_ready":         StatusTest,
		"activation_pending": StatusInventory,
	},
	ProviderFlespi: {
		"active":    StatusActive,
		"connected": StatusActive,
		"disabled":  StatusSuspended,
	},
}

// ParseStatus traduce el estado crudo del proveedor. Nunca falla: lo que no
// reconoce queda en StatusUnknown.
func ParseStatus(p Provider, raw string) Status {
	key := strings.ToLower(strings.TrimSpace(raw))
	if key == "" {
		return StatusUnknown
	}
	if tbl, ok := statusTables[p]; ok {
		if st, ok := tbl[key]; ok {
			return st
		}
		if st, ok := tbl[strings.ReplaceAll(key, "_", " ")]; ok {
			return st
		}
	}
	if st := Status(key); st.Valid() {
		return st
	}
	return StatusUnknown
}
