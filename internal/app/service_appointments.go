package app

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"nyaysakhi/api/internal/email"
	"nyaysakhi/api/internal/rbac"
	"nyaysakhi/api/internal/store"
	"nyaysakhi/api/internal/util"
)

const (
	defaultAppointmentMinutes = 30
	minAppointmentMinutes     = 15
	maxAppointmentMinutes     = 240
)

var appointmentModes = map[string]bool{"in_person": true, "video": true, "phone": true}

// appointmentTransitions lists the statuses reachable from each status.
var appointmentTransitions = map[string][]string{
	store.AppointmentPending:   {store.AppointmentConfirmed, store.AppointmentCancelled},
	store.AppointmentConfirmed: {store.AppointmentCompleted, store.AppointmentCancelled},
}

type AppointmentInput struct {
	LawyerID        string    `json:"lawyerId"`
	ScheduledAt     time.Time `json:"scheduledAt"`
	DurationMinutes int       `json:"durationMinutes"`
	Mode            string    `json:"mode"`
	DocumentID      string    `json:"documentId"`
	Notes           string    `json:"notes"`
}

func (s *Service) BookAppointment(ctx context.Context, session Session, input AppointmentInput, meta ClientMeta) (map[string]any, error) {
	if !s.Can(session.Role, rbac.ActionBook) {
		return nil, errForbidden()
	}

	fields := map[string]string{}
	if strings.TrimSpace(input.LawyerID) == "" {
		fields["lawyerId"] = "is required"
	}
	if input.ScheduledAt.IsZero() {
		fields["scheduledAt"] = "is required"
	} else if !input.ScheduledAt.After(s.now()) {
		fields["scheduledAt"] = "must be in the future"
	}
	if input.DurationMinutes == 0 {
		input.DurationMinutes = defaultAppointmentMinutes
	}
	if input.DurationMinutes < minAppointmentMinutes || input.DurationMinutes > maxAppointmentMinutes {
		fields["durationMinutes"] = "must be between 15 and 240"
	}
	mode := strings.ToLower(strings.TrimSpace(input.Mode))
	if !appointmentModes[mode] {
		fields["mode"] = "must be in_person, video or phone"
	}
	if len(fields) > 0 {
		return nil, errValidation(fields)
	}

	lawyer, err := s.store.GetLawyer(ctx, strings.TrimSpace(input.LawyerID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errNotFound("Lawyer")
		}
		return nil, err
	}
	if !lawyer.Available {
		return nil, domainError(http.StatusConflict, "LAWYER_UNAVAILABLE", "This lawyer is not accepting appointments", nil)
	}

	documentID := strings.TrimSpace(input.DocumentID)
	if documentID != "" {
		document, err := s.store.GetDocument(ctx, documentID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		if err != nil || document.OwnerID != session.UserID {
			return nil, errValidation(map[string]string{"documentId": "must be one of your documents"})
		}
	}

	appointment := store.Appointment{
		ID:              util.NewID("apt"),
		UserID:          session.UserID,
		LawyerID:        lawyer.ID,
		DocumentID:      documentID,
		ScheduledAt:     input.ScheduledAt.UTC(),
		DurationMinutes: input.DurationMinutes,
		Mode:            mode,
		Status:          store.AppointmentPending,
		Notes:           strings.TrimSpace(input.Notes),
	}
	if err := s.store.InsertAppointment(ctx, appointment); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, domainError(http.StatusConflict, "SLOT_UNAVAILABLE", "The lawyer already has an appointment at that time", nil)
		}
		return nil, err
	}

	s.audit(ctx, session.UserID, "appointment.book", "appointment", appointment.ID, meta, map[string]any{
		"lawyerId":    lawyer.ID,
		"scheduledAt": appointment.ScheduledAt,
	})
	s.notifyAppointment(session.Email, session.UserName, lawyer.Name, appointment)

	now := s.now()
	appointment.CreatedAt, appointment.UpdatedAt = now, now
	return appointmentView(appointment, lawyer.Name), nil
}

func (s *Service) notifyAppointment(to, userName, lawyerName string, appointment store.Appointment) {
	if strings.TrimSpace(to) == "" {
		return
	}
	data := email.AppointmentData{
		UserName:    userName,
		LawyerName:  lawyerName,
		ScheduledAt: appointment.ScheduledAt,
		Duration:    appointment.DurationMinutes,
		Mode:        appointment.Mode,
		Status:      appointment.Status,
	}
	s.sendMail("appointment", func(m mailer) error {
		return m.SendAppointmentEmail(to, data)
	})
}

// ListAppointments returns the caller's bookings, or for a lawyer the
// bookings made with them.
func (s *Service) ListAppointments(ctx context.Context, session Session) ([]map[string]any, error) {
	userID, lawyerID := session.UserID, ""
	if rbac.Normalize(session.Role) == rbac.RoleLawyer {
		profile, err := s.store.GetLawyerByUserID(ctx, session.UserID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		if err == nil {
			userID, lawyerID = "", profile.ID
		}
	}
	appointments, err := s.store.ListAppointments(ctx, userID, lawyerID)
	if err != nil {
		return nil, err
	}

	names := map[string]string{}
	clients := map[string]map[string]any{}
	items := make([]map[string]any, 0, len(appointments))
	for _, appointment := range appointments {
		name, ok := names[appointment.LawyerID]
		if !ok {
			if lawyer, err := s.store.GetLawyer(ctx, appointment.LawyerID); err == nil {
				name = lawyer.Name
			}
			names[appointment.LawyerID] = name
		}
		view := appointmentView(appointment, name)
		if lawyerID != "" {
			client, ok := clients[appointment.UserID]
			if !ok {
				client = s.clientContact(ctx, appointment.UserID)
				clients[appointment.UserID] = client
			}
			view["client"] = client
		}
		items = append(items, view)
	}
	return items, nil
}

// clientContact is what a lawyer sees of a client. The email is left out
// unless the client allows lawyer contact.
func (s *Service) clientContact(ctx context.Context, userID string) map[string]any {
	contact := map[string]any{"name": ""}
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return contact
	}
	contact["name"] = user.DisplayName
	settings, err := s.store.GetPrivacySettings(ctx, userID)
	if err != nil {
		s.log.Warn("load client privacy", zap.String("user_id", userID), zap.Error(err))
		return contact
	}
	if settings.AllowLawyerContact {
		contact["email"] = user.Email
	}
	return contact
}

// appointmentParty loads an appointment and reports whether the caller is
// its client and whether they are its lawyer.
func (s *Service) appointmentParty(ctx context.Context, session Session, id string) (store.Appointment, bool, bool, error) {
	appointment, err := s.store.GetAppointment(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Appointment{}, false, false, errNotFound("Appointment")
		}
		return store.Appointment{}, false, false, err
	}
	isClient := appointment.UserID == session.UserID
	isLawyer := false
	if rbac.Normalize(session.Role) == rbac.RoleLawyer {
		profile, err := s.store.GetLawyerByUserID(ctx, session.UserID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return store.Appointment{}, false, false, err
		}
		isLawyer = err == nil && profile.ID == appointment.LawyerID
	}
	return appointment, isClient, isLawyer, nil
}

func (s *Service) CancelAppointment(ctx context.Context, session Session, id string, meta ClientMeta) (map[string]any, error) {
	appointment, isClient, isLawyer, err := s.appointmentParty(ctx, session, id)
	if err != nil {
		return nil, err
	}
	if !isClient && !isLawyer {
		return nil, errNotFound("Appointment")
	}
	return s.transitionAppointment(ctx, session, appointment, store.AppointmentCancelled, meta)
}

// SetAppointmentStatus is used by the appointment's lawyer or an admin.
func (s *Service) SetAppointmentStatus(ctx context.Context, session Session, id, status string, meta ClientMeta) (map[string]any, error) {
	appointment, _, isLawyer, err := s.appointmentParty(ctx, session, id)
	if err != nil {
		return nil, err
	}
	if !isLawyer && !s.Can(session.Role, rbac.ActionAdmin) {
		return nil, errForbidden()
	}
	return s.transitionAppointment(ctx, session, appointment, strings.ToLower(strings.TrimSpace(status)), meta)
}

func (s *Service) transitionAppointment(ctx context.Context, session Session, appointment store.Appointment, to string, meta ClientMeta) (map[string]any, error) {
	if !canTransition(appointment.Status, to) {
		return nil, domainError(http.StatusConflict, "INVALID_TRANSITION",
			"Cannot change appointment from "+appointment.Status+" to "+to,
			map[string]any{"from": appointment.Status, "to": to})
	}
	changed, err := s.store.UpdateAppointmentStatus(ctx, appointment.ID, appointment.Status, to)
	if err != nil {
		return nil, err
	}
	if !changed {
		return nil, domainError(http.StatusConflict, "INVALID_TRANSITION", "Appointment was changed by someone else", nil)
	}
	from := appointment.Status
	appointment.Status = to
	appointment.UpdatedAt = s.now()

	action := "appointment.status"
	if to == store.AppointmentCancelled {
		action = "appointment.cancel"
	}
	s.audit(ctx, session.UserID, action, "appointment", appointment.ID, meta, map[string]any{"from": from, "to": to})

	lawyerName := ""
	if lawyer, err := s.store.GetLawyer(ctx, appointment.LawyerID); err == nil {
		lawyerName = lawyer.Name
	}
	if client, err := s.store.GetUserByID(ctx, appointment.UserID); err == nil {
		s.notifyAppointment(client.Email, client.DisplayName, lawyerName, appointment)
	}
	return appointmentView(appointment, lawyerName), nil
}

func canTransition(from, to string) bool {
	for _, next := range appointmentTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func appointmentView(appointment store.Appointment, lawyerName string) map[string]any {
	return map[string]any{
		"id":              appointment.ID,
		"userId":          appointment.UserID,
		"lawyerId":        appointment.LawyerID,
		"lawyerName":      lawyerName,
		"documentId":      appointment.DocumentID,
		"scheduledAt":     appointment.ScheduledAt,
		"endsAt":          appointment.EndsAt(),
		"durationMinutes": appointment.DurationMinutes,
		"mode":            appointment.Mode,
		"status":          appointment.Status,
		"notes":           appointment.Notes,
		"createdAt":       appointment.CreatedAt,
		"updatedAt":       appointment.UpdatedAt,
	}
}
