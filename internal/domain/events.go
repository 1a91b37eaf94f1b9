package domain

import "fmt"

// NotificationKind identifies what a notification tells its recipient.
type NotificationKind string

const (
	NotifyRequestCreated  NotificationKind = "adoption_request"
	NotifyRequestApproved NotificationKind = "adoption_approved"
	NotifyRequestRejected NotificationKind = "adoption_rejected"
)

// Notification is the message a sink delivers for a request event.
type Notification struct {
	Kind        NotificationKind
	RecipientID string
	PetID       string
	PetName     string
	RequestID   string
	AdopterID   string
	Message     string
}

// NewNotification builds the notification for kind. New requests go to the
// pet owner; decisions go to the adopter.
func NewNotification(kind NotificationKind, req AdoptionRequest, pet Pet) Notification {
	n := Notification{
		Kind:        kind,
		RecipientID: req.AdopterID,
		PetID:       pet.ID,
		PetName:     pet.Name,
		RequestID:   req.ID,
		AdopterID:   req.AdopterID,
	}

	switch kind {
	case NotifyRequestCreated:
		n.RecipientID = pet.OwnerID
		n.Message = fmt.Sprintf("New adoption request for %s from %s", pet.Name, req.Adopter.Name)
	case NotifyRequestApproved:
		n.Message = fmt.Sprintf("Your adoption request for %s was approved", pet.Name)
	case NotifyRequestRejected:
		n.Message = fmt.Sprintf("Your adoption request for %s was not accepted", pet.Name)
	}

	return n
}
