package worker

import (
	"github.com/facilityops/facility-service/internal/events"
	"github.com/facilityops/facility-service/internal/service"
)

// StartNotificationWorker registers the event handlers that fan out
// notifications and reconcile the waitlist.
func StartNotificationWorker(dispatcher events.Dispatcher, notifications *service.NotificationService, assignments *service.AssignmentService) {
	if dispatcher == nil {
		return
	}
	if notifications != nil {
		notifications.RegisterHandlers(dispatcher)
	}
	if assignments != nil {
		assignments.RegisterHandlers(dispatcher)
	}
}
