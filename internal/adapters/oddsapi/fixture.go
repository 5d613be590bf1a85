package oddsapi

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/alejandrodnm/fairline/internal/domain"
)

// FileProvider implementa ports.OddsProvider leyendo una respuesta guardada
// de /sports/{sport}/odds. Se usa con -dry-run.
type FileProvider struct {
	path string
}

// NewFileProvider crea un provider sobre el archivo JSON dado.
func NewFileProvider(path string) *FileProvider {
	return &FileProvider{path: path}
}

// FetchOdds ignora regiones y mercados; filtra solo por deporte si el evento lo trae.
func (p *FileProvider) FetchOdds(_ context.Context, req domain.OddsRequest) (domain.OddsBatch, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return domain.OddsBatch{}, fmt.Errorf("oddsapi.FileProvider: read %q: %w", p.path, err)
	}
	var raw []eventResponse
	if err := json.Unmarshal(data, &raw); err != nil {
		return domain.OddsBatch{}, fmt.Errorf("oddsapi.FileProvider: parse %q: %w", p.path, err)
	}

	events := make([]domain.Event, 0, len(raw))
	for _, r := range raw {
		if req.Sport != "" && r.SportKey != "" && r.SportKey != req.Sport {
			continue
		}
		events = append(events, toEvent(r))
	}
	return domain.OddsBatch{Events: events, Quota: domain.Quota{Remaining: -1, Used: -1, Last: -1}}, nil
}
