package orders

import (
	"fmt"

	"gigmarket/backend/internal/models"
)

// transitions maps current status -> requested status -> the only role allowed
// to perform that move. Anything absent is not a transition.
var transitions = map[models.OrderStatus]map[models.OrderStatus]models.Role{
	models.StatusPending: {
		models.StatusAccepted: models.RoleSeller,
		models.StatusRejected: models.RoleSeller,
	},
	models.StatusAccepted: {
		models.StatusPaid: models.RoleSystem,
	},
	models.StatusPaid: {
		models.StatusInProgress: models.RoleSeller,
	},
	models.StatusInProgress: {
		models.StatusCompleted: models.RoleSeller,
	},
}

// CheckTransition decides whether role may move an order from current to
// requested. It has no side effects.
func CheckTransition(current models.OrderStatus, role models.Role, requested models.OrderStatus) error {
	if !requested.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, requested)
	}
	if role == models.RoleNone {
		return ErrUnauthorized
	}

	allowed, ok := transitions[current][requested]
	if !ok {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, requested)
	}
	if allowed != role {
		return fmt.Errorf("%w: %s cannot move order %s -> %s", ErrUnauthorized, role, current, requested)
	}
	return nil
}

// AllowedTransitions lists the statuses role may move an order to from current.
func AllowedTransitions(current models.OrderStatus, role models.Role) []models.OrderStatus {
	next := []models.OrderStatus{}
	for _, s := range models.AllStatuses {
		if transitions[current][s] == role && role != models.RoleNone {
			next = append(next, s)
		}
	}
	return next
}
