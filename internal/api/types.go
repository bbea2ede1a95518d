package api

// APITeam from GET /team/{id}
type APITeam struct {
	UUID string `json:"uuid"`
	Name string `json:"name"`
}

// APIRole is a role nested in a user.
type APIRole struct {
	UUID  string `json:"uuid"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// APIUser is a team member as the API returns it.
type APIUser struct {
	UUID      string   `json:"uuid"`
	FirstName string   `json:"first_name"`
	LastName  string   `json:"last_name"`
	Initials  string   `json:"initials"`
	Role      *APIRole `json:"role"`
}

// APIPair from GET /team/{id}/pairs
type APIPair struct {
	UUID  string    `json:"uuid"`
	Info  string    `json:"info"`
	Users []APIUser `json:"users"`
}
