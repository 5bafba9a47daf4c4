package entity

import "maps"

// Well known attribute keys carried by directory users.
const (
	AttrInstagram = "instagram"
	AttrSnapchat  = "snapchat"
)

// User is a point-located entity considered for proximity inclusion. Its
// attributes are opaque to the radar and only travel to presenters.
type User struct {
	id         string
	position   Position
	attributes map[string]string
}

func NewUser(id string, position Position, attributes map[string]string) (User, error) {
	if id == "" {
		return User{}, ErrIDIsRequired
	}
	if err := position.Validate(); err != nil {
		return User{}, err
	}
	return User{id: id, position: position, attributes: maps.Clone(attributes)}, nil
}

func (u User) ID() string {
	return u.id
}

func (u User) Position() Position {
	return u.position
}

// Attributes returns a copy; mutating it does not affect the user.
func (u User) Attributes() map[string]string {
	return maps.Clone(u.attributes)
}

func (u User) Attribute(key string) (string, bool) {
	v, ok := u.attributes[key]
	return v, ok
}
