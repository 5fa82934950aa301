package router

import (
	"context"
	"testing"

	"flightscout-service/internal/domain/entity"
	"flightscout-service/internal/scraper"
	"flightscout-service/pkg/logger"
)

type namedSource string

func (n namedSource) Name() string { return string(n) }

func (n namedSource) ExecutePhase1(context.Context, entity.FlightSearchParams) (*scraper.Session, error) {
	return &scraper.Session{}, nil
}

func (n namedSource) ExecutePhase2(context.Context, entity.FlightSearchParams, *scraper.Session) (*entity.ScrapeResult, error) {
	return &entity.ScrapeResult{}, nil
}

func TestSourceRegistry(t *testing.T) {
	tests := []struct {
		name    string
		enabled []string
		want    []string
	}{
		{"all enabled by default", nil, []string{"kiwi", "skyscanner"}},
		{"only kiwi", []string{"kiwi"}, []string{"kiwi"}},
		{"names are normalized", []string{" Skyscanner "}, []string{"skyscanner"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewSourceRegistry(tt.enabled, logger.NewNop())
			r.Register(namedSource("kiwi"))
			r.Register(namedSource("skyscanner"))
			r.Register(namedSource("kiwi"))

			got := r.Names()
			if len(got) != len(tt.want) {
				t.Fatalf("Expected %v, got %v", tt.want, got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Expected %v, got %v", tt.want, got)
				}
			}
		})
	}
}

func TestSourceRegistryGet(t *testing.T) {
	r := NewSourceRegistry(nil, logger.NewNop())
	r.Register(namedSource("kiwi"))

	if r.Get("kiwi") == nil {
		t.Error("Expected kiwi to be found")
	}
	if r.Get("skyscanner") != nil {
		t.Error("Expected skyscanner to be missing")
	}
}
