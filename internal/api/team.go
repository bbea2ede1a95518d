package api

import (
	"context"
	"fmt"
	"net/url"

	"golang.org/x/sync/errgroup"

	"github.com/rickgao/pairamid-live/internal/model"
)

// GetTeam fetches a team by id.
func (c *Client) GetTeam(ctx context.Context, teamID string) (*APITeam, error) {
	var resp APITeam
	if err := c.get(ctx, "/team/"+url.PathEscape(teamID), nil, &resp); err != nil {
		return nil, fmt.Errorf("get team %s: %w", teamID, err)
	}
	return &resp, nil
}

// GetPairs fetches today's pairs for a team.
func (c *Client) GetPairs(ctx context.Context, teamID string) ([]APIPair, error) {
	var resp []APIPair
	if err := c.get(ctx, "/team/"+url.PathEscape(teamID)+"/pairs", nil, &resp); err != nil {
		return nil, fmt.Errorf("get pairs for team %s: %w", teamID, err)
	}
	return resp, nil
}

// GetUsers fetches the members of a team.
func (c *Client) GetUsers(ctx context.Context, teamID string) ([]APIUser, error) {
	var resp []APIUser
	if err := c.get(ctx, "/team/"+url.PathEscape(teamID)+"/users", nil, &resp); err != nil {
		return nil, fmt.Errorf("get users for team %s: %w", teamID, err)
	}
	return resp, nil
}

// GetSnapshot fetches team, pairs and users concurrently and assembles them.
// Any failing request fails the whole snapshot.
func (c *Client) GetSnapshot(ctx context.Context, teamID string) (model.Snapshot, error) {
	var (
		team  *APITeam
		pairs []APIPair
		users []APIUser
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		team, err = c.GetTeam(gctx, teamID)
		return err
	})
	g.Go(func() error {
		var err error
		pairs, err = c.GetPairs(gctx, teamID)
		return err
	})
	g.Go(func() error {
		var err error
		users, err = c.GetUsers(gctx, teamID)
		return err
	})
	if err := g.Wait(); err != nil {
		return model.Snapshot{}, err
	}

	return model.Snapshot{
		Team:      team.ToModel(),
		Pairs:     PairsToModel(pairs),
		Users:     UsersToModel(users),
		UpdatedAt: NowMicro(),
		Source:    "rest",
	}, nil
}
