package models

import "time"

// FlagNone is the value every account carries after a flag pass found
// nothing suspicious about it. An empty string means the engine has not
// run against this row yet.
const FlagNone = "no_flag"

// Account is one tracked profile from the social network. Rows are keyed
// by Username, case-sensitive as the source reports it.
type Account struct {
	Username           string    `json:"username"`
	Name               string    `json:"name"`
	ID                 string    `json:"id"`
	CreatedAt          time.Time `json:"created_at"`
	Description        string    `json:"description"`
	Location           string    `json:"location"`
	FollowersCount     int       `json:"followers_count"`
	FriendsCount       int       `json:"friends_count"`
	StatusesCount      int       `json:"statuses_count"`
	FavouritesCount    int       `json:"favourites_count"`
	SubscriptionsCount int       `json:"subscriptions_count"`
	Protected          bool      `json:"protected"`
	Verified           bool      `json:"verified"`

	// Followings holds plain username references, never embedded rows.
	// Entries may point at accounts the store has no full row for.
	Followings []string `json:"followings"`

	Flags string `json:"flags"`
}

// FollowingSnapshot is one row of the derived followings collection:
// a compact capture of an account seen in someone's followings list,
// written once per crawl pass as reference data.
type FollowingSnapshot struct {
	Username           string `json:"username"`
	ID                 string `json:"id"`
	Description        string `json:"description"`
	Location           string `json:"location"`
	StatusesCount      int    `json:"statuses_count"`
	FollowersCount     int    `json:"followers_count"`
	FriendsCount       int    `json:"friends_count"`
	Protected          bool   `json:"protected"`
	Verified           bool   `json:"verified"`
	FollowedByUsername string `json:"followed_by_username"`
}

// GraphNode is a positioned node of the similarity graph.
type GraphNode struct {
	ID string  `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

// GraphEdge connects two nodes whose followings overlap enough.
type GraphEdge struct {
	Source string  `json:"source"`
	Target string  `json:"target"`
	Weight float64 `json:"weight"`
}

// SimilarityGraph is the render-agnostic output of a graph build.
type SimilarityGraph struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}
