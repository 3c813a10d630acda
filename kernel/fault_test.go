//go:build !debug

package kernel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnknownSVCIsIgnored(t *testing.T) {
	k, p := newTestKernel(t, false, 1)
	startTestKernel(t, k, p)
	k.HandleSVC(SVC(99))
	assert.Equal(t, TaskID(1), k.CurrentTID())
	assert.False(t, InFaultMode())
}
