package domain

// Entity is implemented by every synchronized collection element.
// EntityID must be stable across fetches; collections never hold two
// elements with the same id.
type Entity interface {
	EntityID() string
}
