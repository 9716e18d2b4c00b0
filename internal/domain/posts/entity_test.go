package posts

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPermalink(t *testing.T) {
	assert.Equal(t, "https://x.com/aixbt_agent/status/1850000000000000000",
		Permalink("aixbt_agent", "1850000000000000000"))
}
