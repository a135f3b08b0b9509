// Package github turns raw GitHub notifications into unified feed records.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	gh "github.com/google/go-github/v57/github"
	"github.com/pvannes/gitpulse/internal/log"
	"github.com/pvannes/gitpulse/internal/model"
	"golang.org/x/oauth2"
)

const graphqlEndpoint = "https://api.github.com/graphql"

// PAT is a personal access token scoped to one repository owner, used to
// read private repositories the primary token cannot see.
type PAT struct {
	Owner string
	Token string
}

// Fetcher fetches one provider URL and decodes the JSON response.
// Implementations classify failures as *FetchError.
type Fetcher interface {
	GetJSON(ctx context.Context, url string, v any) error
}

// Client wraps the GitHub API client.
type Client struct {
	client *gh.Client
	// token is intentionally unexported. NEVER add String(), MarshalJSON(),
	// or any method that could expose this value in logs or serialized output.
	token string
	pats  map[string]string

	mu         sync.Mutex
	patClients map[string]*gh.Client

	httpClient *http.Client
}

// NewClient creates a GitHub client from a primary token plus optional
// per-owner personal access tokens.
func NewClient(ctx context.Context, token string, pats []PAT) (*Client, error) {
	if token == "" {
		token = os.Getenv("GITHUB_TOKEN")
	}
	if token == "" {
		return nil, fmt.Errorf("GitHub token not provided. Set the GITHUB_TOKEN environment variable")
	}

	byOwner := make(map[string]string, len(pats))
	for _, p := range pats {
		byOwner[p.Owner] = p.Token
	}

	return &Client{
		client:     newTokenClient(ctx, token),
		token:      token,
		pats:       byOwner,
		patClients: make(map[string]*gh.Client),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func newTokenClient(ctx context.Context, token string) *gh.Client {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	return gh.NewClient(oauth2.NewClient(ctx, ts))
}

// AuthenticatedUser returns the logged-in user.
func (c *Client) AuthenticatedUser(ctx context.Context) (model.User, error) {
	u, _, err := c.client.Users.Get(ctx, "")
	if err != nil {
		return model.User{}, fmt.Errorf("get authenticated user: %w", err)
	}
	return model.User{
		Login:  u.GetLogin(),
		Name:   u.GetName(),
		Avatar: u.GetAvatarURL(),
	}, nil
}

// ListNotifications fetches the user's notifications updated since the given
// time, following pagination.
func (c *Client) ListNotifications(ctx context.Context, since time.Time, all bool) ([]*gh.Notification, error) {
	opts := &gh.NotificationListOptions{
		All:         all,
		ListOptions: gh.ListOptions{PerPage: 100},
	}
	if !since.IsZero() {
		opts.Since = since
	}

	var out []*gh.Notification
	for {
		page, resp, err := c.client.Activity.ListNotifications(ctx, opts)
		if err != nil {
			return nil, fmt.Errorf("list notifications: %w", err)
		}
		out = append(out, page...)
		if resp.NextPage == 0 {
			return out, nil
		}
		opts.Page = resp.NextPage
	}
}

// FetcherFor returns the fetcher to use for one notification's repository:
// the owner's PAT client when the repository is private and a matching PAT
// is configured, the primary client otherwise.
func (c *Client) FetcherFor(owner string, private bool) Fetcher {
	if !private {
		return &clientFetcher{c.client}
	}
	token, ok := c.pats[owner]
	if !ok {
		return &clientFetcher{c.client}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	patClient, ok := c.patClients[owner]
	if !ok {
		log.Debug("using owner PAT", "owner", owner)
		patClient = newTokenClient(context.Background(), token)
		c.patClients[owner] = patClient
	}
	return &clientFetcher{patClient}
}

// clientFetcher adapts a go-github client to the Fetcher contract, fetching
// arbitrary API URLs from notification payloads.
type clientFetcher struct {
	gh *gh.Client
}

func (f *clientFetcher) GetJSON(ctx context.Context, url string, v any) error {
	req, err := f.gh.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return &FetchError{URL: url, Err: err}
	}
	resp, err := f.gh.Do(ctx, req, v)
	if err != nil {
		fe := &FetchError{URL: url, Err: err}
		if resp != nil {
			fe.Status = resp.StatusCode
		}
		return fe
	}
	return nil
}

// graphqlRequest is a GraphQL request payload.
type graphqlRequest struct {
	Query string `json:"query"`
}

type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"errors"`
}

// GraphQL issues a raw GraphQL query and decodes the data payload into out.
func (c *Client) GraphQL(ctx context.Context, query string, out any) error {
	body, err := json.Marshal(graphqlRequest{Query: query})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, graphqlEndpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &FetchError{URL: graphqlEndpoint, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return &FetchError{URL: graphqlEndpoint, Status: resp.StatusCode, Err: fmt.Errorf("graphql status %d", resp.StatusCode)}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var gqlResp graphqlResponse
	if err := json.Unmarshal(raw, &gqlResp); err != nil {
		return fmt.Errorf("decode graphql response: %w", err)
	}
	if len(gqlResp.Errors) > 0 {
		return fmt.Errorf("graphql: %s", gqlResp.Errors[0].Message)
	}
	return json.Unmarshal(gqlResp.Data, out)
}
