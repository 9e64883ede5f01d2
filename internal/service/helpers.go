package service

import "github.com/spec-kit/support-engine/internal/domain"

// actorRef converts an actor to the nullable ID stored in audit rows.
func actorRef(actor domain.Actor) *string {
	if actor.System() {
		return nil
	}
	id := actor.ID
	return &id
}

func intRef(v int) *int {
	return &v
}
