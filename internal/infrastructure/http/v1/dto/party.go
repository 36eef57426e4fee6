package dto

import (
	"time"

	"stockledger/internal/domain/party"
)

// --- Request DTOs ---

// UpsertPartyRequest is the request body for creating or updating a party.
type UpsertPartyRequest struct {
	Name string `json:"name" binding:"required"`
	Type string `json:"type"`
}

// RenamePartyRequest is the request body for renaming a party.
type RenamePartyRequest struct {
	NewName string `json:"newName" binding:"required"`
}

// PartyListQuery holds party list query parameters.
type PartyListQuery struct {
	Type            string `form:"type"`
	IncludeInactive bool   `form:"includeInactive"`
}

// ToFilter converts query parameters to a domain filter.
func (q *PartyListQuery) ToFilter() party.Filter {
	return party.Filter{
		Type:            party.Type(q.Type),
		IncludeInactive: q.IncludeInactive,
	}
}

// --- Response DTOs ---

// PartyResponse is the response body for a party.
type PartyResponse struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Type      party.Type `json:"type"`
	Active    bool       `json:"active"`
	CreatedAt time.Time  `json:"createdAt"`
}

// FromParty creates response DTO from domain party.
func FromParty(p *party.Party) *PartyResponse {
	return &PartyResponse{
		ID:        p.ID.String(),
		Name:      p.Name,
		Type:      p.Type,
		Active:    p.Active,
		CreatedAt: p.CreatedAt,
	}
}

// FromParties maps a party slice to response DTOs.
func FromParties(items []party.Party) []*PartyResponse {
	out := make([]*PartyResponse, len(items))
	for i := range items {
		out[i] = FromParty(&items[i])
	}
	return out
}
