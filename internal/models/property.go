package models

// Property represents a managed building or unit
type Property struct {
	ID      string `json:"id"`
	TeamID  string `json:"team_id"`
	Address string `json:"address"`
}

// Team represents a tenant workspace of the SaaS
type Team struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	BillingEmail string `json:"billing_email"`
}
