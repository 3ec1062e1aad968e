package pagination

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromQueryDefaults(t *testing.T) {
	params := FromQuery(url.Values{})
	assert.Equal(t, DefaultPage, params.Page)
	assert.Equal(t, DefaultLimit, params.Limit)
	assert.Equal(t, int32(0), params.Offset)
	assert.Equal(t, DefaultSort, params.Sort)
}

func TestFromQueryParsesValues(t *testing.T) {
	params := FromQuery(url.Values{
		"page":  {"3"},
		"limit": {"25"},
		"sort":  {"oldest"},
	})
	assert.Equal(t, int32(3), params.Page)
	assert.Equal(t, int32(25), params.Limit)
	assert.Equal(t, int32(50), params.Offset)
	assert.Equal(t, "oldest", params.Sort)
}

func TestFromQueryRejectsGarbage(t *testing.T) {
	params := FromQuery(url.Values{
		"page":  {"-1"},
		"limit": {"abc"},
		"sort":  {"random"},
	})
	assert.Equal(t, DefaultPage, params.Page)
	assert.Equal(t, DefaultLimit, params.Limit)
	assert.Equal(t, DefaultSort, params.Sort)
}

func TestFromQueryCapsLimit(t *testing.T) {
	params := FromQuery(url.Values{"limit": {"5000"}})
	assert.Equal(t, MaxLimit, params.Limit)
}

func TestHasNext(t *testing.T) {
	assert.True(t, HasNext(0, 10, 11))
	assert.False(t, HasNext(0, 10, 10))
	assert.False(t, HasNext(10, 10, 10))
	assert.True(t, HasNext(10, 10, 21))
}
