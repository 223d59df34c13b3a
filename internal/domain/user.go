package domain

// User identifiers are opaque strings issued by the auth provider; the shop
// never creates them, only bootstraps a balance row on first contact.
type User struct {
	ID          string
	FutureCoins int
}
