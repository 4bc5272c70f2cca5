package utils

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestMaskAPIKey(t *testing.T) {
	assert.Equal(t, "sk-ant-api...", MaskAPIKey("sk-ant-REDACTED"))
	assert.Equal(t, "short", MaskAPIKey("short"))
	assert.Equal(t, "exactly10!", MaskAPIKey("exactly10!"))
	assert.Equal(t, "", MaskAPIKey(""))
}

func TestGetDropletName(t *testing.T) {
	id := uuid.New()
	assert.Equal(t, "autoclawd-"+id.String(), GetDropletName(id))
}

func TestGetDeploymentTag(t *testing.T) {
	id := uuid.New()
	assert.Equal(t, "deployment:"+id.String(), GetDeploymentTag(id))
}
