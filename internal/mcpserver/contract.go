package mcpserver

// PublishContract describes the front matter a note needs to be published
// and what ansuz writes back after a successful run.
const PublishContract = `# ansuz Publishing Contract

A note is considered for publication when its YAML front matter carries a
valid ` + "`publish_status`" + `. Everything else in the vault is ignored.

## Keys read by ansuz

| Key | Required | Meaning |
|---|---|---|
| publish_status | yes | one of draft, published, scheduled (lowercase) |
| publish_slug | yes | lowercase letters and digits separated by single hyphens, e.g. my-first-post |
| publish_title | no | post title; defaults to the file name without .md |
| publish_excerpt | no | short summary used as excerpt and social description |
| publish_tags | no | list of tags; overrides the generic tags key |
| tags | no | generic tags; a leading # is stripped |

## Keys written by ansuz

After a post is created or updated, ansuz writes these keys back into the
note. Do not edit them by hand.

| Key | Meaning |
|---|---|
| ghost_id | remote post id |
| ghost_url | public post URL |
| ghost_updated_at | remote modification time, required for the next update |
| publish_hash | fingerprint of the published front matter, body and excerpt |

A note with both ghost_id and ghost_url is updated; otherwise a new post is
created.

## Links and embeds

- ` + "`[[Other Note]]`" + ` and ` + "`[text](Other%20Note.md)`" + ` become links to the
  other note's post when that note is published or scheduled and has a slug.
  Links to anything else are reduced to their text.
- ` + "`![[image.png]]`" + ` embeds are uploaded to the site when image upload is on.

## Batch rules

Every run checks all candidates together. Two candidates with the same slug,
or the same title, abort the whole run before anything is sent.

## Example

` + "```" + `markdown
---
publish_status: published
publish_slug: hello-world
publish_excerpt: A first post.
tags:
  - "#notes"
---

Hello! See also [[Second Post]].
` + "```" + `
`
