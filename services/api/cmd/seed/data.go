package main

import (
	"crypto/sha256"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/bookineo/bookineo/pkg/slug"
	"github.com/bookineo/bookineo/pkg/subscription"
)

type seedUser struct {
	ID        string
	Email     string
	Username  string
	FirstName string
	LastName  string
	Tier      subscription.Tier
}

type seedBox struct {
	ID              string
	Name            string
	Description     string
	Latitude        float64
	Longitude       float64
	CreatorID       string
	CreatorUsername string
	CreatedAt       time.Time
}

type seedFavorite struct {
	UserID string
	BoxID  string
}

type seedVisit struct {
	ID        string
	BoxID     string
	VisitorID string
	Rating    int
	Comment   *string
	VisitedAt time.Time
}

type dataset struct {
	Users     []seedUser
	Boxes     []seedBox
	Favorites []seedFavorite
	Visits    []seedVisit
}

type city struct {
	Name     string
	Lat, Lng float64
}

var (
	cities = []city{
		{"Paris", 48.8566, 2.3522},
		{"Lyon", 45.7640, 4.8357},
		{"Marseille", 43.2965, 5.3698},
		{"Bordeaux", 44.8378, -0.5792},
		{"Lille", 50.6292, 3.0573},
		{"Nantes", 47.2184, -1.5536},
		{"Strasbourg", 48.5734, 7.7521},
		{"Toulouse", 43.6047, 1.4442},
	}

	firstNames = []string{"Camille", "Louis", "Chloé", "Hugo", "Léa", "Jules", "Manon", "Arthur", "Inès", "Gabriel"}
	lastNames  = []string{"Martin", "Bernard", "Dubois", "Thomas", "Robert", "Richard", "Petit", "Durand", "Leroy", "Moreau"}
	places     = []string{"Park", "Station", "Library", "Market", "Square", "Riverside", "School", "Church", "Garden", "Harbour"}
	comments   = []string{
		"Lovely selection of novels.",
		"Mostly children's books, great for families.",
		"A bit empty today, left two books.",
		"Well sheltered from the rain.",
		"Found a rare first edition!",
	}
)

// deterministicUUID derives a stable UUID from a namespace and an index.
func deterministicUUID(namespace string, index int) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s:%d", namespace, index)))
	return uuid.NewSHA1(uuid.NameSpaceOID, h[:]).String()
}

// generate builds the demo dataset. The first user is premium and owns more
// boxes than the freemium limit; everyone else stays within it.
func generate(users, boxesPerUser int, seed int64) dataset {
	rng := rand.New(rand.NewSource(seed))
	base := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	freemiumLimit, _ := subscription.LimitFor(subscription.Freemium, subscription.KindBox)

	var d dataset
	for i := 0; i < users; i++ {
		first := firstNames[i%len(firstNames)]
		last := lastNames[(i/len(firstNames)+i)%len(lastNames)]
		username := slug.Truncate(slug.Generate(fmt.Sprintf("%s %s %d", first, last, i)), 30)

		tier := subscription.Freemium
		if i == 0 {
			tier = subscription.Premium
		}
		d.Users = append(d.Users, seedUser{
			ID:        deterministicUUID("user", i),
			Email:     fmt.Sprintf("%s@example.com", username),
			Username:  username,
			FirstName: first,
			LastName:  last,
			Tier:      tier,
		})
	}

	for ui, u := range d.Users {
		n := boxesPerUser
		if u.Tier == subscription.Freemium && n > freemiumLimit {
			n = freemiumLimit
		}
		if u.Tier == subscription.Premium {
			n = boxesPerUser + freemiumLimit
		}

		for j := 0; j < n; j++ {
			c := cities[rng.Intn(len(cities))]
			place := places[rng.Intn(len(places))]
			d.Boxes = append(d.Boxes, seedBox{
				ID:              deterministicUUID("box", ui*1000+j),
				Name:            fmt.Sprintf("%s %s box", c.Name, place),
				Description:     fmt.Sprintf("Book box near the %s in %s.", place, c.Name),
				Latitude:        c.Lat + (rng.Float64()-0.5)*0.08,
				Longitude:       c.Lng + (rng.Float64()-0.5)*0.08,
				CreatorID:       u.ID,
				CreatorUsername: u.Username,
				CreatedAt:       base.Add(time.Duration(rng.Intn(300*24)) * time.Hour),
			})
		}
	}

	if len(d.Boxes) == 0 {
		return d
	}

	visitIdx := 0
	for _, u := range d.Users {
		seen := make(map[string]bool)
		for k := 0; k < 3; k++ {
			b := d.Boxes[rng.Intn(len(d.Boxes))]
			if b.CreatorID == u.ID || seen[b.ID] {
				continue
			}
			seen[b.ID] = true
			d.Favorites = append(d.Favorites, seedFavorite{UserID: u.ID, BoxID: b.ID})

			var comment *string
			if rng.Intn(2) == 0 {
				c := comments[rng.Intn(len(comments))]
				comment = &c
			}
			d.Visits = append(d.Visits, seedVisit{
				ID:        deterministicUUID("visit", visitIdx),
				BoxID:     b.ID,
				VisitorID: u.ID,
				Rating:    1 + rng.Intn(5),
				Comment:   comment,
				VisitedAt: b.CreatedAt.Add(time.Duration(1+rng.Intn(60*24)) * time.Hour),
			})
			visitIdx++
		}
	}

	return d
}
