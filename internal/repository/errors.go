package repository

import (
	"errors"

	"github.com/jackc/pgx/v5"
)

var (
	// ErrNotFound is returned when the referenced row does not exist.
	ErrNotFound = errors.New("repository: not found")
	// ErrStaleTicket is returned when a conditional update lost its compare-and-swap.
	ErrStaleTicket = errors.New("repository: ticket changed since it was read")
	// ErrShiftAlreadyOpen is returned when an open shift exists for the pair.
	ErrShiftAlreadyOpen = errors.New("repository: shift already open")
	// ErrNoOpenShift is returned when check-out finds no open shift.
	ErrNoOpenShift = errors.New("repository: no open shift")
)

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
