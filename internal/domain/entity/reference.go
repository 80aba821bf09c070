package entity

import (
	"fmt"
	"strings"
	"time"
)

// Kind of entity a query can target.
type Kind string

const (
	KindAdvisor Kind = "advisor"
	KindStore   Kind = "store"
	KindMarket  Kind = "market"
)

// Role of the requesting user.
type Role string

const (
	RoleAdvisor Role = "advisor"
	RoleManager Role = "manager"
	RoleAdmin   Role = "admin"
)

// Period is a reporting month. Zero fields mean "not specified".
type Period struct {
	Month int `json:"month,omitempty"`
	Year  int `json:"year,omitempty"`
}

// IsZero reports whether neither month nor year is set.
func (p Period) IsZero() bool { return p.Month == 0 && p.Year == 0 }

func (p Period) String() string {
	if p.Month == 0 {
		return fmt.Sprintf("%04d", p.Year)
	}
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
}

// Label renders the period for humans, e.g. "August 2025".
func (p Period) Label() string {
	if p.Month < 1 || p.Month > 12 {
		return fmt.Sprintf("%d", p.Year)
	}
	return fmt.Sprintf("%s %d", time.Month(p.Month), p.Year)
}

// Reference points at the advisor, store or market a query is about.
// It is created per query and never persisted.
type Reference struct {
	Kind        Kind   `json:"kind"`
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Period      Period `json:"period"`
	// Source describes how the reference was obtained (self, pattern name, fallback).
	Source string `json:"source,omitempty"`
}

// User is a directory user.
type User struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      Role   `json:"role"`
	StoreID   string `json:"store_id,omitempty"`
	MarketID  string `json:"market_id,omitempty"`
	Active    bool   `json:"active"`
}

// FullName joins first and last name.
func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Unit is a store or a market.
type Unit struct {
	ID   string `json:"id"`
	Kind Kind   `json:"kind"`
	Name string `json:"name"`
	// ParentID is the market of a store; empty for markets.
	ParentID string `json:"parent_id,omitempty"`
}
