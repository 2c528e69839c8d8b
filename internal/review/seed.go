package review

import "time"

// Demo identifiers used by Seed.
const (
	SeedAuthorAna     = "a1000000-0000-0000-0000-000000000001"
	SeedAuthorLuis    = "a1000000-0000-0000-0000-000000000002"
	SeedPlaceSoda     = "p1000000-0000-0000-0000-000000000001"
	SeedPlaceMirador  = "p1000000-0000-0000-0000-000000000002"
	SeedPlaceNoCoords = "p1000000-0000-0000-0000-000000000003"
)

// Seed fills s with a small demo dataset around San José, Costa Rica, for
// running the server without a database.
func Seed(s *InMemoryStore) {
	ptr := func(v float64) *float64 { return &v }
	base := time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)

	ana := Author{ID: SeedAuthorAna, DisplayName: "Ana Mora", Handle: "@anamora", AvatarURL: "avatars/ana.jpg"}
	luis := Author{ID: SeedAuthorLuis, Handle: "@luisviaja"}
	s.PutProfile(ana)
	s.PutProfile(luis)

	soda := Place{ID: SeedPlaceSoda, Name: "Soda La Esquina", Address: "Barrio Escalante", Latitude: ptr(9.9337), Longitude: ptr(-84.0596)}
	mirador := Place{ID: SeedPlaceMirador, Name: "Mirador Tiquicia", Address: "Escazú", Latitude: ptr(9.8938), Longitude: ptr(-84.1237)}
	noCoords := Place{ID: SeedPlaceNoCoords, Name: "Café sin mapa"}
	s.PutPlace(soda)
	s.PutPlace(mirador)
	s.PutPlace(noCoords)

	s.PutReview(Review{
		Content:   "Los mejores tacos de chicharrón del barrio.",
		Rating:    4.5,
		CreatedAt: base,
		Author:    ana,
		Place:     soda,
		Hashtags:  []string{"tacos", "comida"},
		Images:    []string{"review-images/soda/cover.jpg"},
		Votes: []Vote{
			{UserID: SeedAuthorLuis, Type: ReactionLike},
		},
		Comments: []Comment{
			{UserID: SeedAuthorLuis, Content: "Confirmo, muy buenos.", CreatedAt: base.Add(time.Hour)},
		},
	})
	s.PutReview(Review{
		Content:   "Vista increíble al atardecer.",
		Rating:    5,
		CreatedAt: base.Add(24 * time.Hour),
		Author:    luis,
		Place:     mirador,
		Hashtags:  []string{"vista", "atardecer"},
		Votes: []Vote{
			{UserID: SeedAuthorAna, Type: ReactionLike},
		},
	})
	s.PutReview(Review{
		Rating:    3,
		CreatedAt: base.Add(48 * time.Hour),
		Author:    ana,
		Place:     noCoords,
	})
}
