package github

import (
	"context"
	"fmt"
	"strconv"
	"time"

	gh "github.com/google/go-github/v57/github"
	"github.com/pvannes/gitpulse/internal/model"
)

// Discussion notifications carry no subject URL, so the discussion has to be
// located through the GraphQL search API by title and repository.

type gqlActor struct {
	Login     string `json:"login"`
	AvatarURL string `json:"avatarUrl"`
}

func (a gqlActor) user() *model.User {
	if a.Login == "" {
		return nil
	}
	return &model.User{Login: a.Login, Avatar: a.AvatarURL}
}

type discussionComment struct {
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"createdAt"`
	DatabaseID int64     `json:"databaseId"`
	Author     gqlActor  `json:"author"`
	Replies    struct {
		Nodes []discussionComment `json:"nodes"`
	} `json:"replies"`
}

type discussion struct {
	Title              string   `json:"title"`
	URL                string   `json:"url"`
	ViewerSubscription string   `json:"viewerSubscription"`
	Author             gqlActor `json:"author"`
	Comments           struct {
		Nodes []discussionComment `json:"nodes"`
	} `json:"comments"`
}

func (b *Builder) buildDiscussion(ctx context.Context, n *model.Notification, raw *gh.Notification) error {
	n.Type = model.TypeDiscussion
	n.Icon = model.IconDiscussion

	d, err := b.findDiscussion(ctx, raw)
	if err != nil {
		return err
	}
	if d == nil {
		n.Description = "*posted* in this discussion"
		return nil
	}

	n.URL = d.URL
	if c := latestDiscussionComment(d); c != nil {
		n.Author = c.Author.user()
		n.Description = commentDescription(c.Body)
		n.URL = d.URL + "#discussioncomment-" + strconv.FormatInt(c.DatabaseID, 10)
	} else {
		n.Author = d.Author.user()
		n.Description = "*started* this discussion"
	}
	n.Creator = d.Author.user()
	return nil
}

// findDiscussion searches for the notification's discussion by exact title.
// The updated:> clause keeps the search small; two hours of slack absorbs the
// delay between the discussion activity and the notification delivery. When
// several discussions share the title, the subscribed one is the one that
// produced the notification.
func (b *Builder) findDiscussion(ctx context.Context, raw *gh.Notification) (*discussion, error) {
	title := raw.GetSubject().GetTitle()
	updated := raw.GetUpdatedAt().Time

	search := fmt.Sprintf("%q in:title repo:%s updated:>%s",
		title,
		raw.GetRepository().GetFullName(),
		updated.Add(-2*time.Hour).UTC().Format(time.RFC3339))

	query := fmt.Sprintf(`{
	  search(query: %s, type: DISCUSSION, first: 10) {
	    nodes {
	      ... on Discussion {
	        title
	        url
	        viewerSubscription
	        author { login avatarUrl }
	        comments(last: 100) {
	          nodes {
	            body
	            createdAt
	            databaseId
	            author { login avatarUrl }
	            replies(last: 100) {
	              nodes {
	                body
	                createdAt
	                databaseId
	                author { login avatarUrl }
	              }
	            }
	          }
	        }
	      }
	    }
	  }
	}`, strconv.Quote(search))

	var result struct {
		Search struct {
			Nodes []discussion `json:"nodes"`
		} `json:"search"`
	}
	if err := b.client.GraphQL(ctx, query, &result); err != nil {
		return nil, err
	}

	var matches []discussion
	for _, d := range result.Search.Nodes {
		if d.Title == title {
			matches = append(matches, d)
		}
	}
	if len(matches) > 1 {
		subscribed := matches[:0]
		for _, d := range matches {
			if d.ViewerSubscription == "SUBSCRIBED" {
				subscribed = append(subscribed, d)
			}
		}
		matches = subscribed
	}
	if len(matches) == 0 {
		return nil, nil
	}
	return &matches[0], nil
}

// latestDiscussionComment walks comments and their replies and returns the
// most recent one.
func latestDiscussionComment(d *discussion) *discussionComment {
	var best *discussionComment
	consider := func(c *discussionComment) {
		if best == nil || c.CreatedAt.After(best.CreatedAt) {
			best = c
		}
	}
	for i := range d.Comments.Nodes {
		c := &d.Comments.Nodes[i]
		consider(c)
		for j := range c.Replies.Nodes {
			consider(&c.Replies.Nodes[j])
		}
	}
	return best
}
