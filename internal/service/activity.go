package service

import (
	"math/rand/v2"
	"time"

	"github.com/digkill/InteriorAI/internal/prompt"
)

// Activity is one entry of the "recently generated" ticker on the landing page.
type Activity struct {
	Name       string `json:"name"`
	City       string `json:"city"`
	Room       string `json:"room"`
	Style      string `json:"style"`
	MinutesAgo int    `json:"minutes_ago"`
	At         string `json:"at"`
}

type ActivityFeed struct {
	names   []string
	cities  []string
	catalog *prompt.Catalog
	rnd     func(n int) int
	now     func() time.Time
}

func NewActivityFeed(catalog *prompt.Catalog) (*ActivityFeed, error) {
	seed, err := loadSeed()
	if err != nil {
		return nil, err
	}
	return &ActivityFeed{
		names:   seed.Activity.Names,
		cities:  seed.Activity.Cities,
		catalog: catalog,
		rnd:     rand.IntN,
		now:     time.Now,
	}, nil
}

func (f *ActivityFeed) Next() Activity {
	room := f.catalog.Rooms[f.rnd(len(f.catalog.Rooms))]
	style := f.catalog.Styles[f.rnd(len(f.catalog.Styles))]
	minutes := 1 + f.rnd(30)
	return Activity{
		Name:       f.pick(f.names, "Alguien"),
		City:       f.pick(f.cities, "España"),
		Room:       room.Label,
		Style:      style.Label,
		MinutesAgo: minutes,
		At:         f.now().Add(-time.Duration(minutes) * time.Minute).UTC().Format(time.RFC3339),
	}
}

func (f *ActivityFeed) pick(values []string, fallback string) string {
	if len(values) == 0 {
		return fallback
	}
	return values[f.rnd(len(values))]
}
