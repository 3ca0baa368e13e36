package main

import (
	"context"
	"encoding/json"
	"log/slog"

	"simfleet-svr/internal/aggregate"
	"simfleet-svr/internal/operator"
)

type linkTarget interface {
	Inventory(ctx context.Context, refresh bool) (aggregate.Inventory, error)
	RememberICCID(ctx context.Context, imei, iccid string) bool
}

// linkMessage son las líneas que manda el proxy:
//
//	{"refresh_inventory":true}
//	{"imei":"356307042441013","command_reply":"ICCID: 89520209..."}
type linkMessage struct {
	RefreshInventory bool   `json:"refresh_inventory"`
	IMEI             string `json:"imei"`
	CommandReply     string `json:"command_reply"`
}

func linkLineHandler(ctx context.Context, svc linkTarget, logger *slog.Logger) func([]byte) {
	return func(line []byte) {
		var msg linkMessage
		if err := json.Unmarshal(line, &msg); err != nil {
			logger.Info("link: incoming line", "line", string(line))
			return
		}
		switch {
		case msg.CommandReply != "":
			iccid := operator.ParseCommandReply(msg.CommandReply)
			if iccid == "" {
				logger.Debug("link: command reply without ICCID", "imei", msg.IMEI)
				return
			}
			if svc.RememberICCID(ctx, msg.IMEI, iccid) {
				logger.Info("link: ICCID from command reply", "imei", msg.IMEI, "iccid", iccid)
			}
		case msg.RefreshInventory:
			go func() {
				if _, err := svc.Inventory(ctx, true); err != nil {
					logger.Warn("link: inventory refresh failed", "error", err)
				}
			}()
		default:
			logger.Info("link: incoming line", "line", string(line))
		}
	}
}
