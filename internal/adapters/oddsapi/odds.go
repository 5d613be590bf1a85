package oddsapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/alejandrodnm/fairline/internal/domain"
)

// Sport es un deporte disponible en la API.
type Sport struct {
	Key          string
	Group        string
	Title        string
	Active       bool
	HasOutrights bool
}

// FetchOdds implementa ports.OddsProvider.
func (c *Client) FetchOdds(ctx context.Context, req domain.OddsRequest) (domain.OddsBatch, error) {
	if req.Sport == "" {
		return domain.OddsBatch{}, fmt.Errorf("oddsapi.FetchOdds: empty sport")
	}

	params := url.Values{}
	params.Set("regions", strings.Join(req.Regions, ","))
	params.Set("markets", strings.Join(req.Markets, ","))
	params.Set("oddsFormat", "american")
	params.Set("dateFormat", "iso")

	start := time.Now()
	var raw []eventResponse
	header, err := c.get(ctx, "/sports/"+url.PathEscape(req.Sport)+"/odds", params, &raw)
	if err != nil {
		return domain.OddsBatch{}, fmt.Errorf("oddsapi.FetchOdds: %s: %w", req.Sport, err)
	}
	elapsed := time.Since(start)

	events := make([]domain.Event, 0, len(raw))
	for _, r := range raw {
		events = append(events, toEvent(r))
	}

	quota := domain.Quota{
		Remaining: headerInt(header, "x-requests-remaining"),
		Used:      headerInt(header, "x-requests-used"),
		Last:      headerInt(header, "x-requests-last"),
	}

	slog.Debug("fetched odds",
		"sport", req.Sport,
		"events", len(events),
		"requests_remaining", quota.Remaining,
		"duration", elapsed.Round(time.Millisecond),
	)

	return domain.OddsBatch{Events: events, Quota: quota, ResponseTime: elapsed}, nil
}

// FetchSports devuelve los deportes disponibles. No consume cuota.
func (c *Client) FetchSports(ctx context.Context) ([]Sport, error) {
	var raw []sportResponse
	if _, err := c.get(ctx, "/sports", nil, &raw); err != nil {
		return nil, fmt.Errorf("oddsapi.FetchSports: %w", err)
	}
	sports := make([]Sport, 0, len(raw))
	for _, s := range raw {
		sports = append(sports, Sport{
			Key:          s.Key,
			Group:        s.Group,
			Title:        s.Title,
			Active:       s.Active,
			HasOutrights: s.HasOutrights,
		})
	}
	return sports, nil
}
