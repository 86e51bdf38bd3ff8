package model

import "time"

// MaxRandomClientID bounds the random candidate ids handed out to new clients.
const MaxRandomClientID = 999999

// Client mirrors the `clients` table.  CoachUsername is nil while the client
// is unassigned.
type Client struct {
	ID              uint64    `json:"id"`
	CoachUsername   *string   `json:"coach_username"`
	FirstName       string    `json:"first_name"`
	LastName        string    `json:"last_name"`
	Email           string    `json:"email"`
	MobilePhone     string    `json:"mobile_phone"`
	Sex             string    `json:"sex"`
	Age             int       `json:"age"`
	CurrentLocation string    `json:"current_location"`
	Disabled        bool      `json:"disabled"`
	CreatedBy       *string   `json:"created_by,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// CoachedBy reports whether username is the client's assigned coach.
func (c Client) CoachedBy(username string) bool {
	return c.CoachUsername != nil && *c.CoachUsername == username
}

// ClientName is the short form used in listings.
type ClientName struct {
	ID        uint64 `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// CoachName carries the display name of a coach.
type CoachName struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// UnassignedCoach is reported when a client has no coach.
var UnassignedCoach = CoachName{FirstName: "UNASSIGNED", LastName: ""}

// ClientCoachView pairs a client with the name of its coach.
type ClientCoachView struct {
	Client Client    `json:"client_details"`
	Coach  CoachName `json:"coach_details"`
}

// DiscoveryQuestionnaire mirrors `client_discovery_questionnaire`.  Data is a
// grid of text cells (question in column 0, answer in column 1) stored as-is.
type DiscoveryQuestionnaire struct {
	ID        uint64     `json:"id"`
	ClientID  uint64     `json:"client_id"`
	Version   string     `json:"version"`
	Data      [][]string `json:"data"`
	CreatedAt time.Time  `json:"created_at"`
}

// CurrentQuestionnaireVersion is written on every new questionnaire.
const CurrentQuestionnaireVersion = "1.1"
