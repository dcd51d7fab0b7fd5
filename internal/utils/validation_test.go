package utils

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateEmail(t *testing.T) {
	ok, err := ValidateEmail("farmer.one@example.co.in")
	require.NoError(t, err)
	assert.True(t, ok)

	for _, bad := range []string{"", "farmer", "farmer@", "@example.com", "a b@example.com"} {
		ok, err := ValidateEmail(bad)
		assert.False(t, ok, bad)
		assert.Error(t, err, bad)
	}
}

func TestGetQueryParamAsInt(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx := func(query string) *gin.Context {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest("GET", "/?"+query, nil)
		return c
	}

	v, err := GetQueryParamAsInt(ctx(""), "limit", 20)
	require.NoError(t, err)
	assert.Equal(t, 20, v)

	v, err = GetQueryParamAsInt(ctx("offset=0"), "offset", 5)
	require.NoError(t, err)
	assert.Zero(t, v)

	_, err = GetQueryParamAsInt(ctx("limit=-1"), "limit", 20)
	assert.EqualError(t, err, "invalid limit")
	_, err = GetQueryParamAsInt(ctx("limit=ten"), "limit", 20)
	assert.Error(t, err)
}

func TestCreatePageResponse(t *testing.T) {
	resp := CreatePageResponse([]string{"a"}, 7, 20, 0)

	assert.True(t, resp.Success)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, 7, *resp.Meta.Total)
	assert.Equal(t, 20, *resp.Meta.Limit)
	assert.Zero(t, *resp.Meta.Offset)
}
