package users

import "time"

// User is an account record with its denormalized subscription snapshot.
// Billing webhooks maintain the subscription fields elsewhere; this service
// only reads them.
type User struct {
	ID                    string     `json:"id"`
	Email                 string     `json:"email"`
	FullName              string     `json:"fullName"`
	PictureURL            string     `json:"pictureUrl"`
	SubscriptionPlan      string     `json:"subscriptionPlan"`
	SubscriptionActive    bool       `json:"subscriptionActive"`
	SubscriptionExpiresAt *time.Time `json:"subscriptionExpiresAt,omitempty"`
	IsAdmin               bool       `json:"isAdmin"`
	CreatedAt             time.Time  `json:"createdAt"`
	UpdatedAt             time.Time  `json:"updatedAt"`
}
