package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Role identifies the kind of participant performing an operation.
type Role string

const (
	RoleUser       Role = "user"
	RoleTechnician Role = "technician"
	RoleAdmin      Role = "admin"
)

// KnownRole reports whether the role is one of the closed set.
func KnownRole(r Role) bool {
	switch r {
	case RoleUser, RoleTechnician, RoleAdmin:
		return true
	}
	return false
}

// Category is the kind of equipment an intervention concerns.
type Category string

const (
	CategoryPhone    Category = "phone"
	CategoryComputer Category = "computer"
)

// ServiceMode distinguishes remote from onsite interventions.
type ServiceMode string

const (
	ModeRemote ServiceMode = "remote"
	ModeOnsite ServiceMode = "onsite"
)

// Urgency is the requester-declared urgency tier.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// InterventionStatus tracks an intervention through its lifecycle.
type InterventionStatus string

const (
	StatusPending         InterventionStatus = "pending"
	StatusAssigned        InterventionStatus = "assigned"
	StatusInProgress      InterventionStatus = "in_progress"
	StatusCompleted       InterventionStatus = "completed"
	StatusCancelled       InterventionStatus = "cancelled"
	StatusResolvedByAdmin InterventionStatus = "resolved_by_admin"
)

// forwardTransitions is the closed transition table. pending -> assigned is
// reserved for the claim path and never reachable through UpdateStatus;
// resolved_by_admin bypasses the table entirely.
var forwardTransitions = map[InterventionStatus][]InterventionStatus{
	StatusPending:    {StatusAssigned, StatusCancelled},
	StatusAssigned:   {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted, StatusCancelled},
}

// CanTransitionTo reports whether moving from s to next is in the table.
func (s InterventionStatus) CanTransitionTo(next InterventionStatus) bool {
	for _, candidate := range forwardTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// Terminal reports whether ordinary participants can no longer move the
// intervention forward.
func (s InterventionStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusResolvedByAdmin:
		return true
	}
	return false
}

// PaymentStatus mirrors the processor's settlement states.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentPaid      PaymentStatus = "paid"
	PaymentFailed    PaymentStatus = "failed"
	PaymentCancelled PaymentStatus = "cancelled"
)

// User is a marketplace participant. Technicians additionally carry
// coordinates, skills, an hourly rate and an availability flag.
type User struct {
	ID        uuid.UUID
	Email     string
	Name      string
	Phone     string
	Role      Role
	Address   string
	Latitude  *float64
	Longitude *float64

	Skills          []string
	HourlyRateCents *int64
	Available       bool

	Rating             float64
	TotalInterventions int
	Active             bool
	CreatedAt          time.Time
}

// Intervention is a repair request tracked from creation to settlement.
// TechnicianID is set exactly once, by the claim transition.
type Intervention struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	TechnicianID *uuid.UUID

	Title       string
	Description string
	Category    Category
	Mode        ServiceMode
	Urgency     Urgency

	BudgetMinCents  int64
	BudgetMaxCents  int64
	FinalPriceCents *int64

	Status    InterventionStatus
	Address   string
	Latitude  *float64
	Longitude *float64

	CreatedAt   time.Time
	AssignedAt  *time.Time
	CompletedAt *time.Time
	CancelledAt *time.Time

	AdminResolution *string
	ResolvedBy      *uuid.UUID
	ResolvedAt      *time.Time

	Version int64
}

// PaymentTransaction records one checkout attempt for an intervention.
// CommissionCents + TechnicianCents == AmountCents at creation time.
type PaymentTransaction struct {
	ID             uuid.UUID
	InterventionID uuid.UUID
	UserID         uuid.UUID
	TechnicianID   *uuid.UUID

	SessionID       string
	AmountCents     int64
	CommissionCents int64
	TechnicianCents int64
	Currency        string

	Status    PaymentStatus
	Metadata  map[string]string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Message is an immutable per-intervention chat entry.
type Message struct {
	ID             uuid.UUID
	InterventionID uuid.UUID
	SenderID       uuid.UUID
	SenderRole     Role
	Content        string
	CreatedAt      time.Time
}

// Notification is a stored, per-user notice.
type Notification struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Title     string
	Body      string
	Kind      string
	Data      map[string]string
	Read      bool
	CreatedAt time.Time
}

// InterventionEventType enumerates published lifecycle events.
type InterventionEventType string

const (
	EventInterventionCreated InterventionEventType = "InterventionCreated"
	EventInterventionClaimed InterventionEventType = "InterventionClaimed"
	EventStatusChanged       InterventionEventType = "InterventionStatusChanged"
	EventAdminResolved       InterventionEventType = "InterventionAdminResolved"
	EventCheckoutCreated     InterventionEventType = "CheckoutCreated"
	EventPaymentReconciled   InterventionEventType = "PaymentReconciled"
)

// InterventionEvent is emitted on every state transition.
type InterventionEvent struct {
	ID             int64
	InterventionID uuid.UUID
	Type           InterventionEventType
	Payload        map[string]any
	CreatedAt      time.Time
}

// InterventionRepository is the store collaborator for interventions.
// ClaimPending is the single conditional write in the system: it must
// succeed only if the record is still pending at write time.
type InterventionRepository interface {
	Create(ctx context.Context, iv Intervention) (Intervention, error)
	GetByID(ctx context.Context, id uuid.UUID) (Intervention, error)
	Update(ctx context.Context, iv Intervention) (Intervention, error)
	ClaimPending(ctx context.Context, id, technicianID uuid.UUID, at time.Time) (Intervention, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]Intervention, error)
	ListForTechnician(ctx context.Context, technicianID uuid.UUID) ([]Intervention, error)
	ListAll(ctx context.Context, status *InterventionStatus, skip, limit int) ([]Intervention, error)
	Count(ctx context.Context, status *InterventionStatus) (int, error)
}

// UserDirectory is the store collaborator for participants.
type UserDirectory interface {
	Insert(ctx context.Context, u User) (User, error)
	GetByID(ctx context.Context, id uuid.UUID) (User, error)
	AvailableTechnicians(ctx context.Context) ([]User, error)
	SetAvailability(ctx context.Context, id uuid.UUID, available bool) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	UpdateLocation(ctx context.Context, id uuid.UUID, lat, lng float64) error
	List(ctx context.Context, role *Role, skip, limit int) ([]User, error)
	CountByRole(ctx context.Context, role Role) (int, error)
	AverageRating(ctx context.Context) (float64, error)
}

// PaymentRepository stores checkout transactions keyed by the external
// session identifier.
type PaymentRepository interface {
	Create(ctx context.Context, tx PaymentTransaction) (PaymentTransaction, error)
	GetBySessionID(ctx context.Context, sessionID string) (PaymentTransaction, error)
	UpdateStatus(ctx context.Context, sessionID string, status PaymentStatus, at time.Time) (PaymentTransaction, error)
	List(ctx context.Context, skip, limit int) ([]PaymentTransaction, error)
	ListByStatus(ctx context.Context, status PaymentStatus) ([]PaymentTransaction, error)
}

// MessageRepository is an append-only per-intervention log.
type MessageRepository interface {
	Append(ctx context.Context, msg Message) (Message, error)
	ListByIntervention(ctx context.Context, interventionID uuid.UUID) ([]Message, error)
}

// NotificationRepository stores per-user notifications.
type NotificationRepository interface {
	Create(ctx context.Context, n Notification) (Notification, error)
	ListByUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit int) ([]Notification, error)
	MarkRead(ctx context.Context, id, userID uuid.UUID) error
}

// IdempotencyRepository remembers which intervention a creation key
// produced so retried requests return the original record instead of
// opening a duplicate.
type IdempotencyRepository interface {
	GetID(ctx context.Context, key string) (uuid.UUID, bool, error)
	PutID(ctx context.Context, key string, id uuid.UUID) error
}

// EventPublisher pushes lifecycle events to interested consumers.
type EventPublisher interface {
	Publish(ctx context.Context, event InterventionEvent) error
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }
