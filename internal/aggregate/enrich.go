package aggregate

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"simfleet-svr/internal/observability"
	"simfleet-svr/internal/providers/flespi"
	"simfleet-svr/internal/sim"
)

const deviceICCIDTTL = 30 * 24 * time.Hour

func deviceICCIDKey(imei string) string { return "dev:" + imei + ":iccid" }

// Device es un dispositivo Flespi con su SIM resuelta.
type Device struct {
	flespi.Device
	ICCID    string           `json:"iccid,omitempty"`
	IMSI     string           `json:"imsi,omitempty"`
	Position *flespi.Position `json:"position,omitempty"`
	SIM      *sim.SIM         `json:"sim,omitempty"`
	Error    string           `json:"error,omitempty"`
}

// EnrichDevices lee la telemetría de cada dispositivo (con tope de
// concurrencia y limiter) y le asocia la SIM del inventario. Un fallo de
// telemetría queda en Device.Error y no corta el resto.
func (s *Service) EnrichDevices(ctx context.Context) ([]Device, error) {
	if s.deps.Devices == nil {
		return nil, ErrNoDeviceSource
	}
	start := time.Now()
	defer observability.ObserveEnrichLatency(start)

	devs, err := s.deps.Devices.Devices(ctx)
	if err != nil {
		return nil, err
	}

	index := map[string]sim.SIM{}
	if len(s.order) > 0 {
		inv, err := s.Inventory(ctx, false)
		if err != nil {
			s.logger.Warn("enrich without inventory", "err", err)
		}
		for _, it := range inv.SIMs {
			if it.ICCID != "" {
				index[it.ICCID] = it
			}
		}
	}

	known := s.knownICCIDs(ctx, devs)

	out := make([]Device, len(devs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.MaxConcurrency)
	for i, d := range devs {
		i, d := i, d
		out[i] = Device{Device: d}
		g.Go(func() error {
			if err := s.limiter.Wait(gctx); err != nil {
				return err
			}
			tel, err := s.deps.Devices.Telemetry(gctx, d.ID)
			if err != nil {
				out[i].Error = err.Error()
				return nil
			}
			s.enrichOne(gctx, &out[i], tel, index, known[d.IMEI])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// enrichOne usa el ICCID de la telemetría y, si no viene, el último conocido
// para ese IMEI.
func (s *Service) enrichOne(ctx context.Context, d *Device, tel flespi.Telemetry, index map[string]sim.SIM, known string) {
	if pos, ok := tel.Position(); ok {
		d.Position = &pos
	}
	d.IMSI = tel.IMSI()
	iccid, err := sim.NormalizeICCID(tel.ICCID())
	switch {
	case err == nil && iccid != known:
		s.RememberICCID(ctx, d.IMEI, iccid)
	case err != nil && known == "":
		return
	case err != nil:
		iccid = known
	}
	d.ICCID = iccid

	if it, ok := index[iccid]; ok {
		if it.IMEI == "" {
			it.IMEI = d.IMEI
		}
		d.SIM = &it
		return
	}
	// fuera del inventario: proveedor directo si el rango es conocido
	if len(s.providers) > 0 {
		got, err := s.getDirect(ctx, iccid)
		if err == nil {
			if got.IMEI == "" {
				got.IMEI = d.IMEI
			}
			d.SIM = &got
			return
		}
		if !errors.Is(err, sim.ErrNotFound) {
			s.logger.Debug("direct sim lookup failed", "iccid", iccid, "err", err)
		}
	}
	bare := sim.SIM{ICCID: iccid, IMSI: d.IMSI, MSISDN: d.Phone, IMEI: d.IMEI, Status: sim.StatusUnknown}
	bare.Operator = s.Detect(ctx, bare)
	d.SIM = &bare
}

// RememberICCID guarda el ICCID visto para un IMEI, ya sea por telemetría o
// por la respuesta a un comando. Devuelve false si no hay cache o los datos no sirven.
func (s *Service) RememberICCID(ctx context.Context, imei, iccid string) bool {
	imei = strings.TrimSpace(imei)
	norm, err := sim.NormalizeICCID(iccid)
	if s.deps.Cache == nil || imei == "" || err != nil {
		return false
	}
	s.deps.Cache.SaveStringSafe(ctx, deviceICCIDKey(imei), norm, deviceICCIDTTL)
	return true
}

// knownICCIDs lee en un solo MGET los ICCID guardados, indexados por IMEI.
func (s *Service) knownICCIDs(ctx context.Context, devs []flespi.Device) map[string]string {
	out := map[string]string{}
	if s.deps.Cache == nil {
		return out
	}
	keys := make([]string, 0, len(devs))
	for _, d := range devs {
		if d.IMEI != "" {
			keys = append(keys, deviceICCIDKey(d.IMEI))
		}
	}
	if len(keys) == 0 {
		return out
	}
	for k, v := range s.deps.Cache.GetStrings(ctx, keys) {
		imei := strings.TrimSuffix(strings.TrimPrefix(k, "dev:"), ":iccid")
		out[imei] = v
	}
	return out
}

// AssetView es un asset Flespi con el dispositivo vinculado ahora mismo.
type AssetView struct {
	flespi.Asset
	DeviceID int64   `json:"device_id,omitempty"`
	Device   *Device `json:"device,omitempty"`
	Error    string  `json:"error,omitempty"`
}

func (s *Service) Assets(ctx context.Context) ([]AssetView, error) {
	if s.deps.Devices == nil {
		return nil, ErrNoDeviceSource
	}
	assets, err := s.deps.Devices.Assets(ctx)
	if err != nil {
		return nil, err
	}
	devs, err := s.EnrichDevices(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]*Device, len(devs))
	for i := range devs {
		byID[devs[i].ID] = &devs[i]
	}

	now := s.now()
	out := make([]AssetView, len(assets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.MaxConcurrency)
	for i, a := range assets {
		i, a := i, a
		out[i] = AssetView{Asset: a}
		g.Go(func() error {
			if err := s.limiter.Wait(gctx); err != nil {
				return err
			}
			ivs, err := s.deps.Devices.AssetIntervals(gctx, a.ID)
			if err != nil {
				out[i].Error = err.Error()
				return nil
			}
			if id, ok := flespi.CurrentDevice(ivs, now); ok {
				out[i].DeviceID = id
				out[i].Device = byID[id]
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
