// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// Profile status values
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// Profile is a user's account and financial record as kept by the profile store.
type Profile struct {
	ID                string     `json:"id,omitempty"`
	Username          string     `json:"username"`
	Name              string     `json:"name"`
	Email             string     `json:"email"`
	Phone             *string    `json:"phone"`
	CPF               *string    `json:"cpf"`
	Balance           Amount     `json:"balance"`
	MonthlyProfit     Amount     `json:"monthly_profit"`
	AccumulatedProfit Amount     `json:"accumulated_profit"`
	IsAdmin           bool       `json:"is_admin"`
	Status            string     `json:"status"`
	CreatedAt         *time.Time `json:"created_at,omitempty"`
}

// NewProfile returns a profile with zeroed financial fields and active status.
// Username and name default to the email.
func NewProfile(id, email string) Profile {
	return Profile{
		ID:       id,
		Username: email,
		Name:     email,
		Email:    email,
		Status:   StatusActive,
	}
}

// Amount is a monetary or percentage value.
//
// Stores keep these as arbitrary precision decimals and may deliver them as JSON
// numbers or as numeric strings. Amount accepts both, plus null, and always
// marshals as a JSON number.
type Amount float64

// MarshalJSON implements json.Marshaler
func (a Amount) MarshalJSON() ([]byte, error) {
	return strconv.AppendFloat(nil, float64(a), 'f', -1, 64), nil
}

// UnmarshalJSON implements json.Unmarshaler
func (a *Amount) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" || s == "" {
		*a = 0
		return nil
	}
	if unquoted, err := strconv.Unquote(s); err == nil {
		s = unquoted
	}
	v, err := ParseAmount(s)
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// ParseAmount parses a decimal string. The empty string is zero.
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	return Amount(f), nil
}

// AmountFrom coerces a decoded JSON value to an Amount
func AmountFrom(v interface{}) (Amount, error) {
	switch x := v.(type) {
	case nil:
		return 0, nil
	case Amount:
		return x, nil
	case float64:
		return Amount(x), nil
	case float32:
		return Amount(x), nil
	case int:
		return Amount(x), nil
	case int64:
		return Amount(x), nil
	case json.Number:
		return ParseAmount(string(x))
	case string:
		return ParseAmount(x)
	}
	return 0, fmt.Errorf("invalid amount of type %T", v)
}

// Document is a decoded JSON request object
type Document map[string]interface{}

// ProfileFields is a set of profile columns to write, keyed by their JSON name.
//
// Values are already coerced: string for username, name and status, *string for
// phone and cpf, Amount for the monetary fields and bool for is_admin.
type ProfileFields map[string]interface{}

// Apply writes fields into the profile
func (p *Profile) Apply(fields ProfileFields) error {
	for key, value := range fields {
		var ok bool
		switch key {
		case "username":
			p.Username, ok = value.(string)
		case "name":
			p.Name, ok = value.(string)
		case "status":
			p.Status, ok = value.(string)
		case "email":
			p.Email, ok = value.(string)
		case "phone":
			p.Phone, ok = value.(*string)
		case "cpf":
			p.CPF, ok = value.(*string)
		case "balance":
			p.Balance, ok = value.(Amount)
		case "monthly_profit":
			p.MonthlyProfit, ok = value.(Amount)
		case "accumulated_profit":
			p.AccumulatedProfit, ok = value.(Amount)
		case "is_admin":
			p.IsAdmin, ok = value.(bool)
		default:
			return fmt.Errorf("unknown profile field %s", key)
		}
		if !ok {
			return fmt.Errorf("invalid value of type %T for profile field %s", value, key)
		}
	}
	return nil
}

// Stats is an aggregate over all profiles
type Stats struct {
	TotalUsers    int    `json:"total_users"`
	ActiveUsers   int    `json:"active_users"`
	AdminUsers    int    `json:"admin_users"`
	TotalBalance  Amount `json:"total_balance"`
	InactiveUsers int    `json:"inactive_users"`
}
