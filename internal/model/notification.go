// Package model contains domain types for the unified notification feed.
// These types are independent of any provider library.
package model

import "time"

// Provider identifies which platform a notification came from.
// Notifications are namespaced per provider; ids never collide across them.
type Provider string

const (
	ProviderGitHub Provider = "github"
	ProviderGitLab Provider = "gitlab"
)

// Status is the mutually-exclusive display state of a notification.
// It is carried over from the previous snapshot by id, except that a fresh
// unread signal from the provider always wins.
type Status string

const (
	StatusUnread Status = "unread"
	StatusRead   Status = "read"
	StatusPinned Status = "pinned"
	StatusDone   Status = "done"
)

// NotificationType classifies the subject of a notification.
type NotificationType string

const (
	TypeIssue       NotificationType = "issue"
	TypePullRequest NotificationType = "pr"
	TypeCommit      NotificationType = "commit"
	TypeRelease     NotificationType = "release"
	TypeDiscussion  NotificationType = "discussion"
	TypeWorkflow    NotificationType = "workflow"
)

// User is the author or creator attached to a notification.
type User struct {
	Login  string `json:"login"`
	Name   string `json:"name,omitempty"`
	Avatar string `json:"avatar,omitempty"`
	Bot    bool   `json:"bot,omitempty"`
}

// Label is a denormalized issue/PR label projection.
type Label struct {
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// Repo identifies the repository a notification belongs to.
type Repo struct {
	ID     string `json:"id"`
	Owner  string `json:"owner"`
	Name   string `json:"name"`
	Domain string `json:"domain"`
}

// Previously holds the immediately-prior headline of a notification. It is
// exactly one level deep: replaced whenever the description changes, chained
// forward unchanged otherwise.
type Previously struct {
	Author      *User  `json:"author,omitempty"`
	Description string `json:"description"`
}

// PriorityValue is the computed priority attached to a notification.
// Absent when no rules are configured or the net score is zero.
type PriorityValue struct {
	Label string `json:"label"`
	Value int    `json:"value"`
}

// Notification is the unified output record of one poll cycle. It is built
// fresh every cycle from the raw provider payload, the previous snapshot,
// any supplementary resource and the configured priority rules. This
// subsystem never persists it; callers own persistence.
type Notification struct {
	ID          string           `json:"id"`
	From        Provider         `json:"from"`
	Status      Status           `json:"status"`
	Muted       bool             `json:"muted,omitempty"`
	IsNew       bool             `json:"isNew,omitempty"`
	Time        time.Time        `json:"time"`
	Title       string           `json:"title"`
	Type        NotificationType `json:"type"`
	Repo        Repo             `json:"repo"`
	OwnerAvatar string           `json:"ownerAvatar,omitempty"`

	// Author is who performed the latest event; Creator is who opened the
	// underlying resource. They frequently differ on busy threads.
	Author  *User `json:"author,omitempty"`
	Creator *User `json:"creator,omitempty"`

	Description string         `json:"description"`
	Previously  *Previously    `json:"previously,omitempty"`
	Priority    *PriorityValue `json:"priority,omitempty"`

	Icon        Icon    `json:"icon"`
	Opened      bool    `json:"opened,omitempty"`
	Number      int     `json:"number,omitempty"`
	Labels      []Label `json:"labels,omitempty"`
	URL         string  `json:"url,omitempty"`
	Ref         string  `json:"ref,omitempty"`
	NotInvolved bool    `json:"notInvolved,omitempty"`
}

// Snapshot is the subset of a notification the caller persists between polls.
// The builders look snapshots up by id to diff descriptions and carry state.
type Snapshot struct {
	ID          string         `json:"id"`
	Author      *User          `json:"author,omitempty"`
	Description string         `json:"description"`
	Status      Status         `json:"status"`
	Muted       bool           `json:"muted,omitempty"`
	Time        time.Time      `json:"time"`
	Previously  *Previously    `json:"previously,omitempty"`
	Priority    *PriorityValue `json:"priority,omitempty"`
}

// Snapshots indexes previous-poll snapshots by notification id.
type Snapshots map[string]Snapshot

// MakeSnapshots builds a Snapshots index from a persisted list.
func MakeSnapshots(list []Snapshot) Snapshots {
	m := make(Snapshots, len(list))
	for _, s := range list {
		m[s.ID] = s
	}
	return m
}

// ToSnapshot projects a built notification down to its persisted subset.
func (n *Notification) ToSnapshot() Snapshot {
	return Snapshot{
		ID:          n.ID,
		Author:      n.Author,
		Description: n.Description,
		Status:      n.Status,
		Muted:       n.Muted,
		Time:        n.Time,
		Previously:  n.Previously,
		Priority:    n.Priority,
	}
}

// CarryPreviously computes the previously field for a rebuilt notification:
// the prior snapshot when the description changed, the snapshot's own
// previously otherwise. Never deeper than one level.
func CarryPreviously(prev *Snapshot, description string) *Previously {
	if prev == nil {
		return nil
	}
	if prev.Description != description {
		return &Previously{Author: prev.Author, Description: prev.Description}
	}
	return prev.Previously
}
