// Copyright 2024 The httpbroker Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package broker

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOriginKey(t *testing.T) {
	u, _ := url.Parse("https://example.com:8443/a/b?x=1#frag")
	key := OriginKey(u)
	assert.Equal(t, "https", key.Scheme)
	assert.Equal(t, "example.com:8443", key.Host)
	assert.Empty(t, key.Path)
	assert.Empty(t, key.Fragment)
	assert.Empty(t, key.RawQuery)
}

func TestSameOrigin(t *testing.T) {
	a, _ := url.Parse("https://example.com/a")
	b, _ := url.Parse("https://example.com/b")
	c, _ := url.Parse("https://other.com/a")
	assert.True(t, SameOrigin(a, b))
	assert.False(t, SameOrigin(a, c))
}

func TestSameURI(t *testing.T) {
	a, _ := url.Parse("https://example.com/a")
	b, _ := url.Parse("https://example.com/a")
	c, _ := url.Parse("https://example.com/b")
	assert.True(t, SameURI(a, b))
	assert.False(t, SameURI(a, c))
	assert.True(t, SameURI(nil, nil))
	assert.False(t, SameURI(a, nil))
}

func TestStripAndRestoreAuthority(t *testing.T) {
	u, _ := url.Parse("https://example.com/a")
	stripped := StripAuthority(u)
	assert.False(t, HasAuthority(stripped))
	assert.Equal(t, "/a", stripped.Path)

	restored := RestoreAuthority(stripped, u)
	assert.True(t, HasAuthority(restored))
	assert.Equal(t, "https", restored.Scheme)
	assert.Equal(t, "example.com", restored.Host)
}

func TestResolveReference(t *testing.T) {
	base, _ := url.Parse("https://example.com/v1/resource")
	resolved, err := ResolveReference(base, "/v2")
	assert.NoError(t, err)
	assert.Equal(t, "https://example.com/v2", resolved.String())
}
