package api

import (
	"time"

	"github.com/rickgao/pairamid-live/internal/model"
)

// NowMicro returns current time as µs since epoch.
func NowMicro() int64 {
	return time.Now().UnixMicro()
}

// ToModel converts an APITeam to model.Team.
func (t *APITeam) ToModel() model.Team {
	return model.Team{ID: t.UUID, Name: t.Name}
}

// ToModel converts an APIUser to model.User.
func (u *APIUser) ToModel() model.User {
	user := model.User{
		ID:        u.UUID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Initials:  u.Initials,
	}
	if u.Role != nil {
		user.Role = &model.Role{ID: u.Role.UUID, Name: u.Role.Name, Color: u.Role.Color}
	}
	return user
}

// ToModel converts an APIPair to model.Pair.
func (p *APIPair) ToModel() model.Pair {
	return model.Pair{ID: p.UUID, Info: p.Info, Users: UsersToModel(p.Users)}
}

// UsersToModel converts a user list. A nil input yields an empty slice.
func UsersToModel(users []APIUser) []model.User {
	out := make([]model.User, 0, len(users))
	for i := range users {
		out = append(out, users[i].ToModel())
	}
	return out
}

// PairsToModel converts a pair list. A nil input yields an empty slice.
func PairsToModel(pairs []APIPair) []model.Pair {
	out := make([]model.Pair, 0, len(pairs))
	for i := range pairs {
		out = append(out, pairs[i].ToModel())
	}
	return out
}
