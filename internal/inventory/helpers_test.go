package inventory

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"

	"ralph-api/internal/store"
)

func TestGenerateUID(t *testing.T) {
	uid := generateUID()
	assert.Regexp(t, regexp.MustCompile(`^sc-[0-9a-f]{8}$`), uid)
	assert.NotEqual(t, uid, generateUID())
}

func TestNormalizeTags(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, normalizeTags([]string{"b", " a", "a ", "", "b"}))
	assert.Empty(t, normalizeTags(nil))
}

func TestValidateVar(t *testing.T) {
	verr := &store.ValidationError{}
	validateVar("port", int64(70000), "min=0,max=65535", verr)
	validateVar("hostname", "ok", "max=255", verr)
	validateVar("imei", "123", "omitempty,numeric,len=15", verr)

	assert.Contains(t, verr.Fields, "port")
	assert.Contains(t, verr.Fields, "imei")
	assert.NotContains(t, verr.Fields, "hostname")
}

func TestSameRef(t *testing.T) {
	one, other := int64(1), int64(1)
	assert.True(t, sameRef(nil, nil))
	assert.True(t, sameRef(&one, &other))
	assert.False(t, sameRef(&one, nil))
}
