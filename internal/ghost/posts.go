package ghost

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/starford/ansuz/internal/publish"
)

var _ publish.Platform = (*Client)(nil)

type tag struct {
	Name string `json:"name"`
}

// post is the Admin API representation of a post sent on create and update.
type post struct {
	ID                 string `json:"id,omitempty"`
	UpdatedAt          string `json:"updated_at,omitempty"`
	Title              string `json:"title"`
	Slug               string `json:"slug"`
	Status             string `json:"status"`
	Tags               []tag  `json:"tags"`
	HTML               string `json:"html"`
	CustomExcerpt      string `json:"custom_excerpt,omitempty"`
	MetaTitle          string `json:"meta_title"`
	MetaDescription    string `json:"meta_description,omitempty"`
	OGTitle            string `json:"og_title"`
	OGDescription      string `json:"og_description,omitempty"`
	TwitterTitle       string `json:"twitter_title"`
	TwitterDescription string `json:"twitter_description,omitempty"`
	Visibility         string `json:"visibility"`
	Featured           bool   `json:"featured"`
	EmailOnly          bool   `json:"email_only"`
}

type postsEnvelope struct {
	Posts []post `json:"posts"`
}

type postsResponse struct {
	Posts []publish.RemotePost `json:"posts"`
}

func toPost(p publish.Post) post {
	tags := make([]tag, 0, len(p.Tags))
	for _, t := range p.Tags {
		tags = append(tags, tag{Name: t})
	}
	return post{
		ID:                 p.ID,
		UpdatedAt:          p.UpdatedAt,
		Title:              p.Title,
		Slug:               p.Slug,
		Status:             p.Status,
		Tags:               tags,
		HTML:               p.HTML,
		CustomExcerpt:      p.Excerpt,
		MetaTitle:          p.Title,
		MetaDescription:    p.Excerpt,
		OGTitle:            p.Title,
		OGDescription:      p.Excerpt,
		TwitterTitle:       p.Title,
		TwitterDescription: p.Excerpt,
		Visibility:         "public",
	}
}

// Create publishes a new post.
func (c *Client) Create(ctx context.Context, p publish.Post) (publish.RemotePost, error) {
	p.ID, p.UpdatedAt = "", ""
	return c.sendPost(ctx, http.MethodPost, "posts/?source=html", p)
}

// Update replaces an existing post. The post ID and the last known
// updated_at are required; Ghost rejects updates based on a stale updated_at.
func (c *Client) Update(ctx context.Context, p publish.Post) (publish.RemotePost, error) {
	if p.ID == "" {
		return publish.RemotePost{}, fmt.Errorf("ghost: update %q: missing post id", p.Slug)
	}
	return c.sendPost(ctx, http.MethodPut, "posts/"+url.PathEscape(p.ID)+"/?source=html", p)
}

func (c *Client) sendPost(ctx context.Context, method, path string, p publish.Post) (publish.RemotePost, error) {
	var resp postsResponse
	if err := c.doJSON(ctx, method, path, postsEnvelope{Posts: []post{toPost(p)}}, &resp); err != nil {
		return publish.RemotePost{}, err
	}
	if len(resp.Posts) == 0 {
		return publish.RemotePost{}, fmt.Errorf("ghost: %s %s: empty posts response", method, path)
	}
	return resp.Posts[0], nil
}
