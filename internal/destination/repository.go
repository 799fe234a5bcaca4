package destination

import (
	"context"
	"errors"
)

// ErrInvalidSeed is returned when a seed file holds an unusable destination.
var ErrInvalidSeed = errors.New("invalid destination seed")

// Repository lists destinations, featured first.
type Repository interface {
	List(ctx context.Context) ([]Destination, error)
}
