package topic

import (
	"strings"
)

// Builder constructs device-scoped topics of the form {root}/{segment}/{id}.
type Builder struct {
	// root is the namespace shared by all topics, e.g. "ven" or "site-a/ven".
	// An empty root yields {segment}/{id}.
	root string

	// group, when set, turns filters into shared subscriptions.
	group string
}

// NewBuilder returns a Builder for the given root namespace.
func NewBuilder(root string) *Builder {
	return &Builder{root: strings.Trim(root, "/")}
}

// Build returns the topic for segment and id.
func (b *Builder) Build(segment, id string) string {
	if b.root == "" {
		return segment + "/" + id
	}
	return b.root + "/" + segment + "/" + id
}

// Wildcard returns the filter matching segment for every device: {root}/{segment}/+.
// On a shared Builder the filter is $share/{group}/{root}/{segment}/+.
func (b *Builder) Wildcard(segment string) string {
	filter := b.Build(segment, Wildcard)
	if b.group == "" {
		return filter
	}
	return SharePrefix + "/" + b.group + "/" + filter
}

// Shared returns a Builder whose filters are consumed by the shared
// subscription group, so the broker balances messages across its members.
// An empty group returns b unchanged.
func (b *Builder) Shared(group string) *Builder {
	if group == "" {
		return b
	}
	return &Builder{root: b.root, group: group}
}

// Root returns the namespace.
func (b *Builder) Root() string {
	return b.root
}
