package link

import (
	"time"
)

// sim_status
type simStatusPayload struct {
	SIMStatus bool      `json:"sim_status"`
	ICCID     string    `json:"iccid"`
	Provider  string    `json:"provider"`
	Status    string    `json:"status"`
	Previous  string    `json:"previous,omitempty"`
	At        time.Time `json:"at"`
}

// inventory_refresh
type inventoryRefreshPayload struct {
	InventoryRefresh bool              `json:"inventory_refresh"`
	Total            int               `json:"total"`
	ByProvider       map[string]int    `json:"by_provider"`
	Errors           map[string]string `json:"errors,omitempty"`
	At               time.Time         `json:"at"`
}

// SendSIMStatus se llama tras un cambio de estado aceptado por el proveedor.
func (c *Client) SendSIMStatus(iccid, provider, status, previous string) {
	c.send("sim_status", simStatusPayload{
		SIMStatus: true,
		ICCID:     iccid,
		Provider:  provider,
		Status:    status,
		Previous:  previous,
		At:        time.Now().UTC(),
	})
}

// SendInventoryRefresh resume un inventario recién cargado de los proveedores.
func (c *Client) SendInventoryRefresh(total int, byProvider map[string]int, errs map[string]string) {
	c.send("inventory_refresh", inventoryRefreshPayload{
		InventoryRefresh: true,
		Total:            total,
		ByProvider:       byProvider,
		Errors:           errs,
		At:               time.Now().UTC(),
	})
}
