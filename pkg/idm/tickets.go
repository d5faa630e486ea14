package idm

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"
)

// CreateEmailVerificationTicket returns a one-time link that verifies the
// user's email and then redirects to resultURL.
func (c *Connector) CreateEmailVerificationTicket(ctx context.Context, userID, resultURL string) (string, error) {
	if userID == "" {
		return "", errors.New("idm: user ID is required")
	}

	payload := map[string]string{"user_id": userID}
	if resultURL != "" {
		payload["result_url"] = resultURL
	}

	var resp struct {
		Ticket string `json:"ticket"`
	}
	err := c.management(ctx, request{
		op:     "create_verification_ticket",
		method: http.MethodPost,
		path:   "/tickets/email-verification",
		json:   payload,
	}, &resp)
	if err != nil {
		return "", err
	}
	if resp.Ticket == "" {
		return "", errors.New("idm: create_verification_ticket: response carries no ticket")
	}
	return resp.Ticket, nil
}

// SendPasswordResetEmail asks the provider to mail a reset link. A 429 is
// reported as ErrTooManyRequests through errors.Is.
func (c *Connector) SendPasswordResetEmail(ctx context.Context, email string) error {
	if email == "" {
		return errors.New("idm: email is required")
	}
	return c.do(ctx, request{
		op:     "change_password",
		method: http.MethodPost,
		path:   "/dbconnections/change_password",
		json: map[string]string{
			"email":      email,
			"client_id":  c.clientID,
			"connection": c.realm,
		},
	}, nil)
}

// Enrollment is one enrolled MFA factor of a user.
type Enrollment struct {
	ID         string     `json:"id"`
	Status     string     `json:"status"`
	Type       string     `json:"type"`
	Name       string     `json:"name,omitempty"`
	Phone      string     `json:"phone_number,omitempty"`
	EnrolledAt *time.Time `json:"enrolled_at,omitempty"`
}

// ListEnrollments lists a user's MFA enrollments.
func (c *Connector) ListEnrollments(ctx context.Context, userID string) ([]Enrollment, error) {
	if userID == "" {
		return nil, errors.New("idm: user ID is required")
	}
	var out []Enrollment
	err := c.management(ctx, request{op: "list_enrollments", method: http.MethodGet, path: userPath(userID, "enrollments")}, &out)
	return out, err
}

// DeleteEnrollment removes one MFA enrollment.
func (c *Connector) DeleteEnrollment(ctx context.Context, enrollmentID string) error {
	if enrollmentID == "" {
		return errors.New("idm: enrollment ID is required")
	}
	return c.management(ctx, request{
		op:     "delete_enrollment",
		method: http.MethodDelete,
		path:   "/guardian/enrollments/" + url.PathEscape(enrollmentID),
	}, nil)
}
