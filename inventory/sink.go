package inventory

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/DomeLiquid/federation/core"
	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
)

// Sink pushes inventory state to the game backend.
type Sink struct {
	http *resty.Client
	log  core.Log
}

func NewSink(baseUrl, token string, log core.Log) *Sink {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseUrl, "/")).
		SetTimeout(30 * time.Second)
	if token != "" {
		client.SetAuthToken(token)
	}
	return &Sink{http: client, log: log}
}

func (s *Sink) ReplaceState(ctx context.Context, playerId int64, state *core.InventoryState) error {
	resp, err := s.http.R().
		SetContext(ctx).
		SetPathParam("playerId", strconv.FormatInt(playerId, 10)).
		SetBody(state).
		Put("/object/inventory/{playerId}/proxy/state")
	if err != nil {
		return errors.Wrapf(err, "replace inventory state of player %d", playerId)
	}
	if resp.IsError() {
		return errors.Errorf("replace inventory state of player %d: status %d: %s", playerId, resp.StatusCode(), resp.String())
	}
	s.log.Debug().
		Int64("player", playerId).
		Int("currencies", len(state.Currencies)).
		Int("items", len(state.Items)).
		Msg("inventory state replaced")
	return nil
}
