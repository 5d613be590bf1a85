package oddsapi

// DTOs raw de The Odds API v4. Solo se usan dentro de este paquete.
// La conversión a domain entities se hace en mapping.go.

// eventResponse es un item de GET /sports/{sport}/odds.
type eventResponse struct {
	ID           string              `json:"id"`
	SportKey     string              `json:"sport_key"`
	SportTitle   string              `json:"sport_title"`
	CommenceTime string              `json:"commence_time"`
	Completed    bool                `json:"completed"`
	HomeTeam     string              `json:"home_team"`
	AwayTeam     string              `json:"away_team"`
	Bookmakers   []bookmakerResponse `json:"bookmakers"`
}

// bookmakerResponse son los mercados de una casa para el evento.
type bookmakerResponse struct {
	Key        string           `json:"key"`
	Title      string           `json:"title"`
	LastUpdate string           `json:"last_update"`
	Markets    []marketResponse `json:"markets"`
}

// marketResponse es un mercado (h2h, spreads, totals).
type marketResponse struct {
	Key        string            `json:"key"`
	LastUpdate string            `json:"last_update"`
	Outcomes   []outcomeResponse `json:"outcomes"`
}

// outcomeResponse usa float64 para el precio: con oddsFormat=american llegan
// enteros, pero la API no lo garantiza en el schema.
type outcomeResponse struct {
	Name  string   `json:"name"`
	Price float64  `json:"price"`
	Point *float64 `json:"point,omitempty"`
}

// sportResponse es un item de GET /sports.
type sportResponse struct {
	Key          string `json:"key"`
	Group        string `json:"group"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	Active       bool   `json:"active"`
	HasOutrights bool   `json:"has_outrights"`
}
