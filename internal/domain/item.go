package domain

import "time"

type Item struct {
	ID          int
	Name        string
	Description string
	Category    string
	Price       int
	IsActive    bool
	Exclusive   bool
}

// OwnedItem is a user's ownership row joined with its catalog fields.
type OwnedItem struct {
	Item
	Equipped   bool
	AcquiredAt time.Time
}

// DefaultCatalog seeds the items table when it is empty. Categories other
// than "badge" are exclusive: equipping an item unequips the rest of its
// category for that user.
var DefaultCatalog = []Item{
	{Name: "Midnight Theme", Description: "Dark blue app theme", Category: "theme", Price: 150, IsActive: true, Exclusive: true},
	{Name: "Sunrise Theme", Description: "Warm orange app theme", Category: "theme", Price: 150, IsActive: true, Exclusive: true},
	{Name: "Forest Theme", Description: "Green nature app theme", Category: "theme", Price: 200, IsActive: true, Exclusive: true},
	{Name: "Robot Avatar", Description: "Retro robot profile avatar", Category: "avatar", Price: 100, IsActive: true, Exclusive: true},
	{Name: "Astronaut Avatar", Description: "Spacefaring profile avatar", Category: "avatar", Price: 120, IsActive: true, Exclusive: true},
	{Name: "Fox Avatar", Description: "Clever fox profile avatar", Category: "avatar", Price: 120, IsActive: true, Exclusive: true},
	{Name: "Early Bird Badge", Description: "Complete a goal before 7 AM", Category: "badge", Price: 60, IsActive: true, Exclusive: false},
	{Name: "Streak Master Badge", Description: "Keep a 30-day streak", Category: "badge", Price: 80, IsActive: true, Exclusive: false},
	{Name: "Founder Badge", Description: "For early FutureMove supporters", Category: "badge", Price: 250, IsActive: true, Exclusive: false},
}
