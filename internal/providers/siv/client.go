// Package siv consulta el registro de vehículos francés (SIV) a través del
// proxy de Auto Ways Network.
package siv

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"simfleet-svr/internal/providers/httpx"
)

var ErrVehicleNotFound = errors.New("vehicle not found")

type Vehicle struct {
	Plate             string     `json:"plate"`
	Make              string     `json:"make,omitempty"`
	Model             string     `json:"model,omitempty"`
	Version           string     `json:"version,omitempty"`
	VIN               string     `json:"vin,omitempty"`
	FirstRegistration *time.Time `json:"first_registration,omitempty"`
	Fuel              string     `json:"fuel,omitempty"`
	FiscalPower       int        `json:"fiscal_power,omitempty"`
	CO2               int        `json:"co2,omitempty"`
	Color             string     `json:"color,omitempty"`
	BodyType          string     `json:"body_type,omitempty"`
	Seats             int        `json:"seats,omitempty"`
}

type Client struct {
	baseURL string
	apiKey  string
	http    *httpx.Client
}

func New(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    httpx.New("siv", timeout),
	}
}

// respuesta del proxy: todo en strings y con claves en francés
type awnResponse struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	Vehicule *struct {
		Immat        string `json:"immat"`
		Marque       string `json:"marque"`
		Modele       string `json:"modele"`
		Version      string `json:"version"`
		VIN          string `json:"vin"`
		Date1erCir   string `json:"date1erCir_fr"`
		Date1erCirUS string `json:"date1erCir_us"`
		Energie      string `json:"energieNGC"`
		PuisFisc     string `json:"puisFisc"`
		CO2          string `json:"co2"`
		Couleur      string `json:"couleur"`
		Carrosserie  string `json:"carrosserieCG"`
		NbPlaces     string `json:"nr_passagers"`
	} `json:"vehicule"`
}

// Lookup normaliza la matrícula antes de cualquier llamada de red.
func (c *Client) Lookup(ctx context.Context, plate string) (Vehicle, error) {
	norm, err := NormalizePlate(plate)
	if err != nil {
		return Vehicle{}, err
	}
	q := url.Values{}
	q.Set("plaque", norm)
	resp, err := c.http.Do(ctx, "lookup", func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/immat?"+q.Encode(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("X-Api-Key", c.apiKey)
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
	if err != nil {
		if httpx.IsNotFound(err) {
			return Vehicle{}, ErrVehicleNotFound
		}
		return Vehicle{}, err
	}
	var out awnResponse
	if err := httpx.DecodeJSON(resp, &out); err != nil {
		return Vehicle{}, fmt.Errorf("siv lookup: %w", err)
	}
	switch strings.ToLower(out.Status) {
	case "not_found", "notfound", "introuvable":
		return Vehicle{}, ErrVehicleNotFound
	case "error", "erreur":
		return Vehicle{}, fmt.Errorf("siv lookup: %s", out.Message)
	}
	if out.Vehicule == nil {
		return Vehicle{}, ErrVehicleNotFound
	}

	v := out.Vehicule
	veh := Vehicle{
		Plate:       norm,
		Make:        strings.TrimSpace(v.Marque),
		Model:       strings.TrimSpace(v.Modele),
		Version:     strings.TrimSpace(v.Version),
		VIN:         strings.ToUpper(strings.TrimSpace(v.VIN)),
		Fuel:        fuelName(v.Energie),
		FiscalPower: atoi(v.PuisFisc),
		CO2:         atoi(v.CO2),
		Color:       strings.TrimSpace(v.Couleur),
		BodyType:    strings.TrimSpace(v.Carrosserie),
		Seats:       atoi(v.NbPlaces),
	}
	if t, ok := parseFrenchDate(v.Date1erCir, v.Date1erCirUS); ok {
		veh.FirstRegistration = &t
	}
	return veh, nil
}

func parseFrenchDate(fr, us string) (time.Time, bool) {
	if t, err := time.Parse("02/01/2006", strings.TrimSpace(fr)); err == nil {
		return t, true
	}
	if t, err := time.Parse("2006-01-02", strings.TrimSpace(us)); err == nil {
		return t, true
	}
	return time.Time{}, false
}

var fuels = map[string]string{
	"ES": "petrol", "ESSENCE": "petrol",
	"GO": "diesel", "GAZOLE": "diesel", "DIESEL": "diesel",
	"EL": "electric", "ELECTRIC": "electric", "ELECTRIQUE": "electric",
	"EE": "hybrid", "EH": "hybrid", "GH": "hybrid", "HYBRIDE": "hybrid",
	"GP": "lpg", "GPL": "lpg",
	"GN": "cng", "GNV": "cng",
	"FE": "e85", "ETHANOL": "e85",
}

func fuelName(raw string) string {
	key := strings.ToUpper(strings.TrimSpace(raw))
	if f, ok := fuels[key]; ok {
		return f
	}
	return strings.ToLower(key)
}

func atoi(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}
