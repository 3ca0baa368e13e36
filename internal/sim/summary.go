package sim

import "time"

// Summary resume un inventario para el forwarder gRPC y el link.
type Summary struct {
	GeneratedAt time.Time         `json:"generated_at"`
	Total       int               `json:"total"`
	ByProvider  map[string]int    `json:"by_provider"`
	ByStatus    map[string]int    `json:"by_status"`
	ByOperator  map[string]int    `json:"by_operator"`
	Errors      map[string]string `json:"errors,omitempty"`
}

func Summarize(items []SIM, at time.Time) Summary {
	s := Summary{
		GeneratedAt: at,
		Total:       len(items),
		ByProvider:  map[string]int{},
		ByStatus:    map[string]int{},
		ByOperator:  map[string]int{},
	}
	for _, it := range items {
		p := string(it.Provider)
		if p == "" {
			p = "unknown"
		}
		s.ByProvider[p]++
		s.ByStatus[string(it.Status)]++
		op := it.Operator.Name
		if op == "" {
			op = "unknown"
		}
		s.ByOperator[op]++
	}
	return s
}
