package oddsapi

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
)

func TestToEvent(t *testing.T) {
	point := -3.5
	ev := toEvent(eventResponse{
		ID:           "abc",
		SportKey:     "basketball_nba",
		CommenceTime: "2026-03-01T00:30:00Z",
		HomeTeam:     "Boston Celtics",
		AwayTeam:     "Miami Heat",
		Bookmakers: []bookmakerResponse{{
			Key:        "fanduel",
			Title:      "FanDuel",
			LastUpdate: "not-a-time",
			Markets: []marketResponse{{
				Key: "spreads",
				Outcomes: []outcomeResponse{
					{Name: "Boston Celtics", Price: -109.6, Point: &point},
					{Name: "Miami Heat", Price: 0},
				},
			}},
		}},
	})

	assert.Equal(t, "abc", ev.ExternalID)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 30, 0, 0, time.UTC), ev.CommenceTime)
	assert.True(t, ev.Books[0].LastUpdate.IsZero())

	outs := ev.Books[0].Markets[0].Outcomes
	assert.Len(t, outs, 1)
	assert.Equal(t, -110, outs[0].Price)
	assert.Equal(t, -3.5, *outs[0].Point)
}

func TestHeaderInt(t *testing.T) {
	h := http.Header{}
	h.Set("x-requests-remaining", "480.5")
	assert.Equal(t, 480, headerInt(h, "x-requests-remaining"))
	assert.Equal(t, -1, headerInt(h, "x-requests-used"))
	h.Set("x-requests-used", "abc")
	assert.Equal(t, -1, headerInt(h, "x-requests-used"))
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	b := newBreaker("test")
	boom := &APIError{StatusCode: 502}
	for i := 0; i < 3; i++ {
		_, err := b.Execute(func() (interface{}, error) { return nil, boom })
		assert.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, b.State())

	_, err := b.Execute(func() (interface{}, error) { return "ok", nil })
	assert.True(t, errors.Is(err, gobreaker.ErrOpenState))
}

func TestBreaker_ClientErrorsDoNotTrip(t *testing.T) {
	b := newBreaker("test")
	for i := 0; i < 5; i++ {
		_, _ = b.Execute(func() (interface{}, error) { return nil, &APIError{StatusCode: 401} })
	}
	assert.Equal(t, gobreaker.StateClosed, b.State())
}
