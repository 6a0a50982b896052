package topic

import "strings"

// DefaultShadowPrefix is the AWS IoT reserved namespace for thing shadows.
const DefaultShadowPrefix = "$aws/things"

// ShadowBuilder constructs device-shadow topics:
// {prefix}/{thing}/shadow/{operation}.
type ShadowBuilder struct {
	prefix string
}

// NewShadowBuilder returns a ShadowBuilder. An empty prefix uses DefaultShadowPrefix.
func NewShadowBuilder(prefix string) *ShadowBuilder {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		prefix = DefaultShadowPrefix
	}
	return &ShadowBuilder{prefix: prefix}
}

func (b *ShadowBuilder) build(thing, op string) string {
	return b.prefix + "/" + thing + "/shadow/" + op
}

// Update is where reported (and desired) state documents are published.
func (b *ShadowBuilder) Update(thing string) string { return b.build(thing, "update") }

// UpdateDelta carries desired/reported differences computed by the mirror.
func (b *ShadowBuilder) UpdateDelta(thing string) string { return b.build(thing, "update/delta") }

// UpdateRejected carries errors for rejected update documents.
func (b *ShadowBuilder) UpdateRejected(thing string) string { return b.build(thing, "update/rejected") }

// Get requests the full shadow document.
func (b *ShadowBuilder) Get(thing string) string { return b.build(thing, "get") }

// GetAccepted carries the full shadow document in response to Get.
func (b *ShadowBuilder) GetAccepted(thing string) string { return b.build(thing, "get/accepted") }

// GetRejected carries errors for rejected Get requests.
func (b *ShadowBuilder) GetRejected(thing string) string { return b.build(thing, "get/rejected") }
