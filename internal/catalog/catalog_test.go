package catalog

import (
	"testing"

	"api-chain/internal/config"
	"api-chain/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := New(config.DefaultCatalog())
	require.NoError(t, err)
	return c
}

func TestNew(t *testing.T) {
	c := defaultCatalog(t)

	endpoints := c.Endpoints()
	require.Len(t, endpoints, 3)
	assert.Equal(t, model.Endpoint{Name: "Get Users List", URL: "https://jsonplaceholder.typicode.com/users", Method: "GET"}, endpoints[0])
	assert.Equal(t, "POST", endpoints[1].Method)
	assert.Equal(t, "Get Comments by Post", endpoints[2].Name)

	ep, ok := c.Lookup("Create New Post")
	require.True(t, ok)
	assert.Equal(t, "https://jsonplaceholder.typicode.com/posts", ep.URL)

	_, ok = c.Lookup("Nope")
	assert.False(t, ok)

	assert.Equal(t, []string{"id", "postId", "name", "email", "body"}, c.Fields("Get Comments by Post"))
	assert.Nil(t, c.Fields("Nope"))
	assert.Len(t, c.Entries(), 3)
}

func TestNew_ExpandsEnvAndNormalizesMethod(t *testing.T) {
	t.Setenv("CATALOG_TEST_HOST", "api.test")
	c, err := New([]config.EndpointConfig{{Name: "x", URL: "https://${CATALOG_TEST_HOST}/x", Method: "post"}})
	require.NoError(t, err)
	ep, ok := c.Lookup("x")
	require.True(t, ok)
	assert.Equal(t, "https://api.test/x", ep.URL)
	assert.Equal(t, model.MethodPost, ep.Method)
}

func TestNew_Duplicate(t *testing.T) {
	_, err := New([]config.EndpointConfig{{Name: "a"}, {Name: "a"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate catalog endpoint 'a'")
}

func TestPossibleFields(t *testing.T) {
	c := defaultCatalog(t)
	users, _ := c.Lookup("Get Users List")
	posts, _ := c.Lookup("Create New Post")
	chain := model.Chain{model.NewStep(users), model.NewStep(posts), model.NewStep(users)}

	assert.Empty(t, c.PossibleFields(chain, 0), "The first step has no earlier steps")

	options := c.PossibleFields(chain, 2)
	require.Len(t, options, 8)
	assert.Equal(t, FieldOption{Label: "Step 1: id", Value: "0.id"}, options[0])
	assert.Equal(t, FieldOption{Label: "Step 1: username", Value: "0.username"}, options[3])
	assert.Equal(t, FieldOption{Label: "Step 2: userId", Value: "1.userId"}, options[7])

	assert.Len(t, c.PossibleFields(chain, 10), 12, "Index past the end lists every step")
}

func TestPossibleFields_DiscoversUnknownEndpoints(t *testing.T) {
	c, err := New([]config.EndpointConfig{{Name: "Custom", URL: "https://a.test", Method: "GET"}})
	require.NoError(t, err)

	ep, _ := c.Lookup("Custom")
	withResponse := model.NewStep(ep)
	withResponse.Response = map[string]any{"token": "t", "expires": 10.0}
	withResponse.HasResponse = true
	chain := model.Chain{model.NewStep(ep), withResponse, model.NewStep(ep)}

	options := c.PossibleFields(chain, 2)
	assert.Equal(t, []FieldOption{
		{Label: "Step 2: expires", Value: "1.expires"},
		{Label: "Step 2: token", Value: "1.token"},
	}, options)
}

func TestParseFieldOption(t *testing.T) {
	idx, field, err := ParseFieldOption("0.id")
	require.NoError(t, err)
	assert.Equal(t, 0, idx)
	assert.Equal(t, "id", field)

	idx, field, err = ParseFieldOption("12.address.city")
	require.NoError(t, err)
	assert.Equal(t, 12, idx)
	assert.Equal(t, "address.city", field)

	for _, bad := range []string{"", "id", "x.id", "-1.id", "3."} {
		_, _, err := ParseFieldOption(bad)
		assert.ErrorIs(t, err, ErrInvalidFieldOption, bad)
	}
}

func TestDiscoverFields(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, DiscoverFields(map[string]any{"b": 1.0, "a": 2.0}))
	assert.Equal(t, []string{"0", "1", "length"}, DiscoverFields([]any{"x", "y"}))
	assert.Nil(t, DiscoverFields("scalar"))
	assert.Nil(t, DiscoverFields(nil))

	long := make([]any, 25)
	fields := DiscoverFields(long)
	assert.Len(t, fields, maxDiscoveredIndices+1)
	assert.Equal(t, "length", fields[len(fields)-1])
}
