// Package flights wraps the flight booking endpoints. Pure pass-through: the
// backend owns all booking state.
package flights

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/zippy-pay/zippy_mobile/internal/api"
)

// Service exposes the flight operations.
type Service struct {
	api *api.Client
}

// NewService builds a flight service.
func NewService(client *api.Client) *Service {
	return &Service{api: client}
}

// Airport is one searchable departure or arrival point.
type Airport struct {
	Code string `json:"code"`
	Name string `json:"name"`
	City string `json:"city"`
}

// Airports lists the supported airports.
func (s *Service) Airports(ctx context.Context) ([]Airport, error) {
	var res struct {
		Airports []Airport `json:"airports"`
	}
	if err := s.api.Get(ctx, "/flights/airports", &res, "Failed to fetch airports"); err != nil {
		return nil, err
	}
	return res.Airports, nil
}

// SearchInput captures a flight search request.
type SearchInput struct {
	Origin        string `json:"origin"`
	Destination   string `json:"destination"`
	DepartureDate string `json:"departure_date"`
	ReturnDate    string `json:"return_date,omitempty"`
	Adults        int    `json:"adults"`
}

// Search runs a flight search. The result shape is aggregator-specific, so it
// is returned raw for the display layer to interpret.
func (s *Service) Search(ctx context.Context, input SearchInput) (json.RawMessage, error) {
	var res json.RawMessage
	if err := s.api.Post(ctx, "/flights/search", input, &res, "Flight search failed"); err != nil {
		return nil, err
	}
	return res, nil
}

// Select pins a fare option from a prior search.
func (s *Service) Select(ctx context.Context, selection map[string]any) (json.RawMessage, error) {
	var res json.RawMessage
	if err := s.api.Post(ctx, "/flights/select", selection, &res, "Flight selection failed"); err != nil {
		return nil, err
	}
	return res, nil
}

// Book books the selected flight.
func (s *Service) Book(ctx context.Context, booking map[string]any) (json.RawMessage, error) {
	var res json.RawMessage
	if err := s.api.Post(ctx, "/flights/book", booking, &res, "Flight booking failed"); err != nil {
		return nil, err
	}
	return res, nil
}

// IssueTicket issues the ticket for a completed booking.
func (s *Service) IssueTicket(ctx context.Context, ticket map[string]any) (json.RawMessage, error) {
	var res json.RawMessage
	if err := s.api.Post(ctx, "/flights/ticket", ticket, &res, "Ticket issuance failed"); err != nil {
		return nil, err
	}
	return res, nil
}

// BookingDetails fetches a booking by identifier.
func (s *Service) BookingDetails(ctx context.Context, bookingID string) (json.RawMessage, error) {
	var res json.RawMessage
	if err := s.api.Get(ctx, fmt.Sprintf("/flights/details/%s", bookingID), &res, "Failed to fetch booking details"); err != nil {
		return nil, err
	}
	return res, nil
}
